package research

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

// Catalog holds the static guideline and RCT references and the trial list.
// It is read once at startup and never modified.
type Catalog struct {
	GuidelineIDs []string         `yaml:"guideline_ids"`
	RCTIDs       []string         `yaml:"rct_ids"`
	Trials       []TrialCandidate `yaml:"trials"`
}

// LoadCatalog reads a YAML catalog from path, or the embedded default when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read trial catalog: %w", err)
	}
	cat, err := ParseCatalog(content)
	if err != nil {
		return nil, fmt.Errorf("trial catalog %s: %w", path, err)
	}
	return cat, nil
}

func ParseCatalog(content []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return nil, fmt.Errorf("parse trial catalog: %w", err)
	}
	seen := make(map[string]bool, len(cat.Trials))
	for i, tr := range cat.Trials {
		id := strings.TrimSpace(tr.ID)
		if id == "" {
			return nil, fmt.Errorf("trial #%d: id is required", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("trial %s: duplicate id", id)
		}
		seen[id] = true
		if math.IsNaN(tr.DistanceKm) || math.IsInf(tr.DistanceKm, 0) || tr.DistanceKm < 0 {
			return nil, fmt.Errorf("trial %s: distance_km must be a finite non-negative number", id)
		}
	}
	if cat.GuidelineIDs == nil {
		cat.GuidelineIDs = []string{}
	}
	if cat.RCTIDs == nil {
		cat.RCTIDs = []string{}
	}
	return &cat, nil
}

// Within returns trials no farther than radiusKm, in catalog order, stopping
// after limit matches.
func (c *Catalog) Within(radiusKm float64, limit int) []TrialCandidate {
	if limit <= 0 {
		return []TrialCandidate{}
	}
	out := make([]TrialCandidate, 0, min(limit, len(c.Trials)))
	for _, tr := range c.Trials {
		if len(out) >= limit {
			break
		}
		if tr.DistanceKm <= radiusKm {
			out = append(out, tr)
		}
	}
	return out
}

func (c *Catalog) references() (guidelines, rcts []string) {
	return slices.Clone(c.GuidelineIDs), slices.Clone(c.RCTIDs)
}
