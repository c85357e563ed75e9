package medication

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/ehr/clinicalquery/internal/platform/idgen"
)

// ErrMissingFields is wrapped by every *MissingFieldsError.
var ErrMissingFields = errors.New("missing required fields")

// MissingFieldsError lists every required field that was absent, null or
// blank, sorted alphabetically.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// Service validates medication order intake. It does not check that the
// patient exists in the clinical dataset; intake accepts orders for any id.
type Service struct {
	ids idgen.Generator
}

func NewService(ids idgen.Generator) *Service {
	if ids == nil {
		ids = idgen.UUID{}
	}
	return &Service{ids: ids}
}

func (s *Service) CreateOrder(_ context.Context, req MedicationOrderRequest) (*MedicationOrderResult, error) {
	if missing := MissingFields(req); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return &MedicationOrderResult{
		OrderID: OrderIDPrefix + s.ids.NewID(),
		Status:  StatusDraftCreated,
	}, nil
}

// MissingFields checks the whole required set and returns the missing names
// in alphabetical order.
func MissingFields(req MedicationOrderRequest) []string {
	var missing []string
	for name, f := range req.requiredFields() {
		if f.Blank() {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
