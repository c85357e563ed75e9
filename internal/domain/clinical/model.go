package clinical

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PatientSummary is the quick-display record for one patient. Field order
// matches the order fields are rendered in.
type PatientSummary struct {
	Demographics Demographics `json:"demographics" yaml:"demographics"`
	Problems     []string     `json:"problems" yaml:"problems"`
	Medications  []string     `json:"medications" yaml:"medications"`
	Vitals       Vitals       `json:"vitals" yaml:"vitals"`
	LastA1c      float64      `json:"last_a1c" yaml:"last_a1c"`
	LastEGFR     float64      `json:"last_egfr" yaml:"last_egfr"`
}

type Demographics struct {
	Name   string `json:"name" yaml:"name"`
	Age    int    `json:"age" yaml:"age"`
	Gender string `json:"gender" yaml:"gender"`
	MRN    string `json:"mrn" yaml:"mrn"`
}

// Vitals is the most recent vitals snapshot.
type Vitals struct {
	Systolic  int       `json:"systolic" yaml:"systolic"`
	Diastolic int       `json:"diastolic" yaml:"diastolic"`
	HeartRate int       `json:"heart_rate" yaml:"heart_rate"`
	WeightKg  float64   `json:"weight_kg" yaml:"weight_kg"`
	UpdatedAt Timestamp `json:"updated_at" yaml:"updated_at"`
}

// LabObservation is one point of a patient's lab time series.
type LabObservation struct {
	Name        string    `json:"name" yaml:"name"`
	Value       float64   `json:"value" yaml:"value"`
	Unit        string    `json:"unit" yaml:"unit"`
	CollectedAt Timestamp `json:"collected_at" yaml:"collected_at"`
}

func (s PatientSummary) clone() PatientSummary {
	s.Problems = slices.Clone(s.Problems)
	s.Medications = slices.Clone(s.Medications)
	return s
}

// TimestampLayout is ISO 8601 with second precision and no zone designator.
const TimestampLayout = "2006-01-02T15:04:05"

// Timestamp is a wall-clock date-time truncated to the second.
type Timestamp struct {
	t time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t.Truncate(time.Second)}
}

// ParseTimestamp accepts TimestampLayout, and RFC 3339 for inputs that carry
// a zone; fractional seconds are dropped.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return NewTimestamp(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: expected %s", s, TimestampLayout)
	}
	return NewTimestamp(t), nil
}

func (ts Timestamp) String() string { return ts.t.Format(TimestampLayout) }

// Compare returns -1, 0 or +1 like time.Time.Compare.
func (ts Timestamp) Compare(other Timestamp) int { return ts.t.Compare(other.t) }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (ts *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: timestamp must be a scalar", node.Line)
	}
	parsed, err := ParseTimestamp(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*ts = parsed
	return nil
}
