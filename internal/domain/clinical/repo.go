package clinical

import (
	"context"
	"errors"
)

var ErrPatientNotFound = errors.New("patient not found")

// Dataset is the read-only view of the clinical records. Implementations
// return copies so callers cannot mutate shared state.
type Dataset interface {
	GetSummary(ctx context.Context, patientID string) (*PatientSummary, error)
	GetLabs(ctx context.Context, patientID string) ([]LabObservation, error)
}
