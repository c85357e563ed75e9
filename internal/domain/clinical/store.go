package clinical

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed/patients.yaml
var defaultSeed []byte

type patientRecord struct {
	ID      string           `yaml:"id"`
	Summary PatientSummary   `yaml:"summary"`
	Labs    []LabObservation `yaml:"labs"`
}

type seedDocument struct {
	Patients []patientRecord `yaml:"patients"`
}

// Store is an in-memory Dataset populated once and never written to
// afterwards, so it is safe for concurrent readers without locking.
type Store struct {
	summaries map[string]PatientSummary
	labs      map[string][]LabObservation
	ids       []string
}

var _ Dataset = (*Store)(nil)

// LoadStore reads a YAML dataset from path, or the embedded demo dataset when
// path is empty.
func LoadStore(path string) (*Store, error) {
	if path == "" {
		return ParseStore(defaultSeed)
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	s, err := ParseStore(content)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return s, nil
}

// ParseStore builds a Store from a YAML document. Every patient must have a
// unique id, and a demographics MRN, when given, must equal that id.
func ParseStore(content []byte) (*Store, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(doc.Patients) == 0 {
		return nil, fmt.Errorf("dataset contains no patients")
	}

	s := &Store{
		summaries: make(map[string]PatientSummary, len(doc.Patients)),
		labs:      make(map[string][]LabObservation, len(doc.Patients)),
	}
	for i, rec := range doc.Patients {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return nil, fmt.Errorf("patient #%d: id is required", i+1)
		}
		if _, dup := s.summaries[id]; dup {
			return nil, fmt.Errorf("patient %s: duplicate id", id)
		}
		summary := rec.Summary.clone()
		switch summary.Demographics.MRN {
		case "":
			summary.Demographics.MRN = id
		case id:
		default:
			return nil, fmt.Errorf("patient %s: mrn %q does not match id", id, summary.Demographics.MRN)
		}
		for j, lab := range rec.Labs {
			if strings.TrimSpace(lab.Name) == "" {
				return nil, fmt.Errorf("patient %s: lab #%d: name is required", id, j+1)
			}
		}
		s.summaries[id] = summary
		s.labs[id] = slices.Clone(rec.Labs)
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	return s, nil
}

func (s *Store) GetSummary(_ context.Context, patientID string) (*PatientSummary, error) {
	summary, ok := s.summaries[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := summary.clone()
	return &out, nil
}

// GetLabs returns the patient's observations in load order. A known patient
// without observations yields an empty slice.
func (s *Store) GetLabs(_ context.Context, patientID string) ([]LabObservation, error) {
	labs, ok := s.labs[patientID]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := make([]LabObservation, len(labs))
	copy(out, labs)
	return out, nil
}

// PatientIDs lists every patient id in ascending order.
func (s *Store) PatientIDs() []string {
	return slices.Clone(s.ids)
}

// LabCount reports how many observations are on file for a patient.
func (s *Store) LabCount(patientID string) int {
	return len(s.labs[patientID])
}
