// Package similarity scores how alike two images are.
//
// An Algorithm is long-lived and owns the descriptor cache for one run. For each
// reference file it hands out a Checker that compares the reference against
// candidates and must be closed once the reference's sweep is over.
package similarity

import (
	"errors"
	"fmt"
	"strings"

	"dupfinder/imageprocessor"
	"dupfinder/types"
)

// Kind selects an algorithm
type Kind int

const (
	// Histogram compares colour distributions
	Histogram Kind = iota
	// Feature compares ORB keypoint descriptors
	Feature
)

func (k Kind) String() string {
	switch k {
	case Histogram:
		return "histogram"
	case Feature:
		return "feature"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "histogram" or "feature" (also "features")
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "histogram", "hist":
		return Histogram, nil
	case "feature", "features", "orb":
		return Feature, nil
	default:
		return 0, fmt.Errorf("unknown algorithm %q (use histogram or feature)", s)
	}
}

// ErrNoFeatures is returned when an image yields no descriptors or no matches
var ErrNoFeatures = errors.New("no usable features")

// Algorithm produces checkers for reference files and owns their descriptor cache
type Algorithm interface {
	Kind() Kind

	// MinSimilarity is the score at or above which a pair counts as duplicate
	MinSimilarity() float64

	// NewChecker prepares ref for comparisons. The error is a decode or
	// computation failure of the reference itself.
	NewChecker(ref *types.FileRecord) (Checker, error)

	// ClearCache drops every cached descriptor
	ClearCache()
}

// Checker compares one reference file against candidates. It is safe for
// concurrent use by the workers of one sweep.
type Checker interface {
	SimilarityTo(candidate *types.FileRecord) (float64, error)
	Close() error
}

// New creates the algorithm of the given kind. A nil loader uses the default registry.
func New(kind Kind, tuning Tuning, loader imageprocessor.ImageLoader, cacheCapacity int) (Algorithm, error) {
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		loader = imageprocessor.DefaultLoader()
	}

	switch kind {
	case Histogram:
		return NewHistogram(tuning.Histogram, loader, cacheCapacity), nil
	case Feature:
		return NewFeature(tuning, loader, cacheCapacity), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %s", kind)
	}
}

// Compare scores a single pair with a throwaway checker
func Compare(alg Algorithm, a, b *types.FileRecord) (float64, error) {
	checker, err := alg.NewChecker(a)
	if err != nil {
		return 0, err
	}
	defer checker.Close()
	return checker.SimilarityTo(b)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
