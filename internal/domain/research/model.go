package research

import (
	"encoding/json"

	"github.com/ehr/clinicalquery/internal/platform/payload"
)

// TrialCandidate is a research study from the fixed catalog. DistanceKm is
// precomputed relative to the query origin.
type TrialCandidate struct {
	ID                 string  `json:"id" yaml:"id"`
	Name               string  `json:"name" yaml:"name"`
	DistanceKm         float64 `json:"distance_km" yaml:"distance_km"`
	EligibilitySummary string  `json:"eligibility_summary" yaml:"eligibility_summary"`
}

// EvidenceQuery is a validated search request.
type EvidenceQuery struct {
	Condition   string
	Comorbidity string
	RadiusKm    float64
}

type EvidenceSearchResult struct {
	GuidelineIDs []string         `json:"guideline_ids"`
	RCTIDs       []string         `json:"rct_ids"`
	NearbyTrials []TrialCandidate `json:"nearby_trials"`
}

// EvidenceSearchRequest is the body of POST /evidence/search.
type EvidenceSearchRequest struct {
	Condition   payload.Field `json:"condition"`
	Comorbidity payload.Field `json:"comorbidity"`
	Geo         *GeoFilter    `json:"geo"`
}

type GeoFilter struct {
	RadiusKm json.RawMessage `json:"radius_km"`
}

// Query validates the request and converts it to an EvidenceQuery.
func (r EvidenceSearchRequest) Query() (EvidenceQuery, error) {
	if r.Geo == nil {
		return EvidenceQuery{}, ErrInvalidRadius
	}
	radius, err := ParseRadius(r.Geo.RadiusKm)
	if err != nil {
		return EvidenceQuery{}, err
	}
	return EvidenceQuery{
		Condition:   r.Condition.Value,
		Comorbidity: r.Comorbidity.Value,
		RadiusKm:    radius,
	}, nil
}
