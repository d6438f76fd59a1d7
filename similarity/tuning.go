package similarity

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var embeddedTuning []byte

// HistogramTuning configures the histogram variant
type HistogramTuning struct {
	MaxDimension  int     `yaml:"max_dimension"`
	Buckets       int     `yaml:"buckets"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// DistanceMapping converts a mean Hamming distance to a similarity.
// 0 maps to 1, KneeDistance to KneeSimilarity, CutoffDistance to CutoffSimilarity
// and anything above CutoffDistance to 0.
type DistanceMapping struct {
	KneeDistance     float64 `yaml:"knee_distance"`
	KneeSimilarity   float64 `yaml:"knee_similarity"`
	CutoffDistance   float64 `yaml:"cutoff_distance"`
	CutoffSimilarity float64 `yaml:"cutoff_similarity"`
}

// BlendTuning mixes the histogram score into the feature score
type BlendTuning struct {
	Enabled         bool    `yaml:"enabled"`
	FeatureWeight   float64 `yaml:"feature_weight"`
	HistogramWeight float64 `yaml:"histogram_weight"`
}

// FeatureTuning configures the ORB feature variant
type FeatureTuning struct {
	MaxDimension  int             `yaml:"max_dimension"`
	Features      int             `yaml:"features"`
	ScaleFactor   float32         `yaml:"scale_factor"`
	Levels        int             `yaml:"levels"`
	EdgeThreshold int             `yaml:"edge_threshold"`
	PatchSize     int             `yaml:"patch_size"`
	FastThreshold int             `yaml:"fast_threshold"`
	MinSimilarity float64         `yaml:"min_similarity"`
	Mapping       DistanceMapping `yaml:"mapping"`
	Blend         BlendTuning     `yaml:"blend"`
}

// Tuning is one generation of algorithm parameters
type Tuning struct {
	Name      string          `yaml:"-"`
	Histogram HistogramTuning `yaml:"histogram"`
	Feature   FeatureTuning   `yaml:"feature"`
}

// TuningSet is the parsed tuning file
type TuningSet struct {
	Default  string            `yaml:"default"`
	Profiles map[string]Tuning `yaml:"profiles"`
}

// ParseTuningSet parses and validates a tuning file
func ParseTuningSet(data []byte) (*TuningSet, error) {
	var set TuningSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse tuning: %w", err)
	}
	if len(set.Profiles) == 0 {
		return nil, fmt.Errorf("tuning file has no profiles")
	}
	for name, p := range set.Profiles {
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		set.Profiles[name] = p
	}
	if _, ok := set.Profiles[set.Default]; !ok {
		return nil, fmt.Errorf("default profile %q not defined", set.Default)
	}
	return &set, nil
}

// LoadTuningSet reads path, or the embedded profiles when path is empty
func LoadTuningSet(path string) (*TuningSet, error) {
	if path == "" {
		return ParseTuningSet(embeddedTuning)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	return ParseTuningSet(data)
}

// Profile returns the named profile, or the default one for an empty name
func (s *TuningSet) Profile(name string) (Tuning, error) {
	if name == "" {
		name = s.Default
	}
	p, ok := s.Profiles[name]
	if !ok {
		return Tuning{}, fmt.Errorf("unknown tuning profile %q (have %v)", name, s.Names())
	}
	return p, nil
}

// Names lists the profile names in sorted order
func (s *TuningSet) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for n := range s.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultTuning returns the default embedded profile
func DefaultTuning() Tuning {
	set, err := ParseTuningSet(embeddedTuning)
	if err != nil {
		panic(fmt.Sprintf("embedded tuning is invalid: %v", err))
	}
	t, _ := set.Profile("")
	return t
}

// Validate checks the ranges the algorithms rely on
func (t Tuning) Validate() error {
	h := t.Histogram
	if h.MaxDimension <= 0 || h.Buckets <= 0 || h.Buckets > 256 {
		return fmt.Errorf("histogram: max_dimension and buckets (1..256) are required")
	}
	if h.MinSimilarity <= 0 || h.MinSimilarity > 1 {
		return fmt.Errorf("histogram: min_similarity must be in (0,1]")
	}

	f := t.Feature
	if f.MaxDimension <= 0 || f.Features <= 0 || f.Levels <= 0 {
		return fmt.Errorf("feature: max_dimension, features and levels are required")
	}
	if f.MinSimilarity <= 0 || f.MinSimilarity > 1 {
		return fmt.Errorf("feature: min_similarity must be in (0,1]")
	}
	m := f.Mapping
	if m.KneeDistance <= 0 || m.CutoffDistance <= m.KneeDistance {
		return fmt.Errorf("feature: mapping needs 0 < knee_distance < cutoff_distance")
	}
	if f.Blend.Enabled && f.Blend.FeatureWeight <= 0 {
		return fmt.Errorf("feature: blend needs a positive feature_weight")
	}
	return nil
}
