package similarity

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"dupfinder/descriptorcache"
	"dupfinder/imageprocessor"
	"dupfinder/logging"
	"dupfinder/types"
)

// FeatureDescriptor is a Go-owned copy of an ORB descriptor matrix, one row per keypoint
type FeatureDescriptor struct {
	Rows int
	Cols int
	Data []byte
}

// Empty reports whether no descriptors were found
func (d *FeatureDescriptor) Empty() bool {
	return d == nil || d.Rows == 0 || d.Cols == 0
}

// FeatureAlgorithm matches ORB descriptors, optionally blended with the histogram score
type FeatureAlgorithm struct {
	tuning    FeatureTuning
	loader    imageprocessor.ImageLoader
	cache     *descriptorcache.Cache[*FeatureDescriptor]
	histogram *HistogramAlgorithm
}

// NewFeature creates the feature algorithm. When the profile enables blending it
// also carries a histogram algorithm with a separate cache.
func NewFeature(tuning Tuning, loader imageprocessor.ImageLoader, cacheCapacity int) *FeatureAlgorithm {
	f := &FeatureAlgorithm{
		tuning: tuning.Feature,
		loader: loader,
		cache:  descriptorcache.New[*FeatureDescriptor]("feature", cacheCapacity),
	}
	if tuning.Feature.Blend.Enabled {
		f.histogram = NewHistogram(tuning.Histogram, loader, cacheCapacity)
	}
	return f
}

func (f *FeatureAlgorithm) Kind() Kind { return Feature }

func (f *FeatureAlgorithm) MinSimilarity() float64 { return f.tuning.MinSimilarity }

func (f *FeatureAlgorithm) ClearCache() {
	f.cache.Clear()
	if f.histogram != nil {
		f.histogram.ClearCache()
	}
}

// Describe returns the cached descriptors of rec, extracting them on a miss
func (f *FeatureAlgorithm) Describe(rec *types.FileRecord) (*FeatureDescriptor, error) {
	return f.cache.GetOrCompute(rec.Path, func() (*FeatureDescriptor, error) {
		buf, err := f.loader.Load(rec.Path, imageprocessor.ColorGray, f.tuning.MaxDimension)
		if err != nil {
			return nil, err
		}
		defer buf.Close()

		rec.SetDimensions(buf.SourceWidth, buf.SourceHeight)
		return ExtractFeatures(buf.Mat, f.tuning)
	})
}

// ExtractFeatures runs ORB with Harris corner scoring on a grayscale Mat
func ExtractFeatures(mat gocv.Mat, tuning FeatureTuning) (*FeatureDescriptor, error) {
	if mat.Empty() {
		return nil, errors.New("features of empty image")
	}

	orb := gocv.NewORBWithParams(
		tuning.Features,
		tuning.ScaleFactor,
		tuning.Levels,
		tuning.EdgeThreshold,
		0, // first level
		2, // WTA_K
		gocv.ORBScoreTypeHarris,
		tuning.PatchSize,
		tuning.FastThreshold,
	)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	_, desc := orb.DetectAndCompute(mat, mask)
	defer desc.Close()

	if desc.Empty() {
		return &FeatureDescriptor{}, nil
	}
	return &FeatureDescriptor{Rows: desc.Rows(), Cols: desc.Cols(), Data: desc.ToBytes()}, nil
}

// MeanMatchDistance cross-check matches a against b under Hamming distance and
// returns the mean distance of the matches
func MeanMatchDistance(a, b *FeatureDescriptor) (float64, error) {
	if a.Empty() || b.Empty() {
		return 0, ErrNoFeatures
	}

	query, err := gocv.NewMatFromBytes(a.Rows, a.Cols, gocv.MatTypeCV8UC1, a.Data)
	if err != nil {
		return 0, errors.Wrap(err, "query descriptors")
	}
	defer query.Close()

	train, err := gocv.NewMatFromBytes(b.Rows, b.Cols, gocv.MatTypeCV8UC1, b.Data)
	if err != nil {
		return 0, errors.Wrap(err, "train descriptors")
	}
	defer train.Close()

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	matches := matcher.Match(query, train)
	if len(matches) == 0 {
		return 0, ErrNoFeatures
	}

	var sum float64
	for _, m := range matches {
		sum += m.Distance
	}
	return sum / float64(len(matches)), nil
}

// MapDistance converts a mean match distance into a similarity with two linear segments
func MapDistance(mean float64, m DistanceMapping) float64 {
	switch {
	case mean > m.CutoffDistance:
		return 0
	case mean > m.KneeDistance:
		t := (mean - m.KneeDistance) / (m.CutoffDistance - m.KneeDistance)
		return m.KneeSimilarity + t*(m.CutoffSimilarity-m.KneeSimilarity)
	case mean <= 0:
		return 1
	default:
		t := mean / m.KneeDistance
		return 1 + t*(m.KneeSimilarity-1)
	}
}

// Blend mixes the feature and histogram scores, clamped to [0,1]
func Blend(feature, histogram float64, b BlendTuning) float64 {
	if !b.Enabled {
		return clamp01(feature)
	}
	return clamp01(feature*b.FeatureWeight + histogram*b.HistogramWeight)
}

// NewChecker implements Algorithm
func (f *FeatureAlgorithm) NewChecker(ref *types.FileRecord) (Checker, error) {
	d, err := f.Describe(ref)
	if err != nil {
		return nil, err
	}

	c := &featureChecker{alg: f, ref: d}
	if f.histogram != nil {
		c.histogram, err = f.histogram.NewChecker(ref)
		if err != nil {
			return nil, errors.Wrap(err, "histogram of reference")
		}
	}
	return c, nil
}

type featureChecker struct {
	alg       *FeatureAlgorithm
	ref       *FeatureDescriptor
	histogram Checker
}

func (c *featureChecker) SimilarityTo(candidate *types.FileRecord) (float64, error) {
	d, err := c.alg.Describe(candidate)
	if err != nil {
		return 0, err
	}

	mean, err := MeanMatchDistance(c.ref, d)
	if err != nil {
		return 0, err
	}
	score := MapDistance(mean, c.alg.tuning.Mapping)

	var hist float64
	if c.histogram != nil {
		hist, err = c.histogram.SimilarityTo(candidate)
		if err != nil {
			logging.DebugLog("histogram blend skipped for %s: %v", candidate.Path, err)
			hist = 0
		}
	}
	return Blend(score, hist, c.alg.tuning.Blend), nil
}

func (c *featureChecker) Close() error {
	c.ref = nil
	if c.histogram != nil {
		return c.histogram.Close()
	}
	return nil
}
