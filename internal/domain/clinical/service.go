package clinical

import (
	"context"
	"errors"
	"slices"
	"strings"
)

var ErrInvalidLastN = errors.New("last_n must be greater than zero")

// LabQuery narrows a patient's lab history. A nil LastN means no truncation;
// an empty Names means no name filter.
type LabQuery struct {
	Names []string
	LastN *int
}

type Service struct {
	data Dataset
}

func NewService(data Dataset) *Service {
	return &Service{data: data}
}

func (s *Service) GetSummary(ctx context.Context, patientID string) (*PatientSummary, error) {
	return s.data.GetSummary(ctx, patientID)
}

// QueryLabs filters a patient's observations by name, orders them most recent
// first and keeps at most LastN of them. A patient with no observations is
// reported as ErrPatientNotFound, and that check precedes LastN validation.
func (s *Service) QueryLabs(ctx context.Context, patientID string, q LabQuery) ([]LabObservation, error) {
	labs, err := s.data.GetLabs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(labs) == 0 {
		return nil, ErrPatientNotFound
	}
	if q.LastN != nil && *q.LastN < 1 {
		return nil, ErrInvalidLastN
	}

	out := filterByName(labs, q.Names)
	slices.SortStableFunc(out, func(a, b LabObservation) int {
		return b.CollectedAt.Compare(a.CollectedAt)
	})
	if q.LastN != nil && *q.LastN < len(out) {
		out = out[:*q.LastN]
	}
	return out, nil
}

func filterByName(labs []LabObservation, names []string) []LabObservation {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			allowed[n] = struct{}{}
		}
	}

	out := make([]LabObservation, 0, len(labs))
	for _, lab := range labs {
		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToLower(lab.Name)]; !ok {
				continue
			}
		}
		out = append(out, lab)
	}
	return out
}

// ParseNames splits a comma-separated names parameter, dropping blanks.
func ParseNames(csv string) []string {
	var names []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
