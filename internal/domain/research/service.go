package research

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// MaxNearbyTrials caps how many trial candidates a search returns.
const MaxNearbyTrials = 2

var ErrInvalidRadius = errors.New("invalid or missing geo.radius_km")

type Service struct {
	catalog *Catalog
}

func NewService(catalog *Catalog) *Service {
	return &Service{catalog: catalog}
}

// Search returns the static guideline and RCT references together with the
// catalog trials inside the radius. Condition and comorbidity are accepted
// but do not narrow any of the lists.
func (s *Service) Search(_ context.Context, q EvidenceQuery) (*EvidenceSearchResult, error) {
	if !validRadius(q.RadiusKm) {
		return nil, ErrInvalidRadius
	}
	guidelines, rcts := s.catalog.references()
	return &EvidenceSearchResult{
		GuidelineIDs: guidelines,
		RCTIDs:       rcts,
		NearbyTrials: s.catalog.Within(q.RadiusKm, MaxNearbyTrials),
	}, nil
}

// ParseRadius accepts a JSON number or a JSON string holding a decimal
// number. The result must be finite and non-negative.
func ParseRadius(raw json.RawMessage) (float64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, ErrInvalidRadius
	}

	var r float64
	switch text[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidRadius
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, ErrInvalidRadius
		}
		r = v
	default:
		if err := json.Unmarshal(raw, &r); err != nil {
			return 0, ErrInvalidRadius
		}
	}
	if !validRadius(r) {
		return 0, ErrInvalidRadius
	}
	return r, nil
}

func validRadius(r float64) bool {
	return !math.IsNaN(r) && !math.IsInf(r, 0) && r >= 0
}
