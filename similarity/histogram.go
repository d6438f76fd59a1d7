package similarity

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"dupfinder/descriptorcache"
	"dupfinder/imageprocessor"
	"dupfinder/types"
)

// HistogramDescriptor holds bucket counts per channel (B, G, R) and the pixel count
type HistogramDescriptor struct {
	Channels [3][]int
	Pixels   int
}

// HistogramAlgorithm compares per-channel colour histograms
type HistogramAlgorithm struct {
	tuning HistogramTuning
	loader imageprocessor.ImageLoader
	cache  *descriptorcache.Cache[*HistogramDescriptor]
}

// NewHistogram creates the histogram algorithm with its own cache
func NewHistogram(tuning HistogramTuning, loader imageprocessor.ImageLoader, cacheCapacity int) *HistogramAlgorithm {
	return &HistogramAlgorithm{
		tuning: tuning,
		loader: loader,
		cache:  descriptorcache.New[*HistogramDescriptor]("histogram", cacheCapacity),
	}
}

func (h *HistogramAlgorithm) Kind() Kind { return Histogram }

func (h *HistogramAlgorithm) MinSimilarity() float64 { return h.tuning.MinSimilarity }

func (h *HistogramAlgorithm) ClearCache() { h.cache.Clear() }

// Describe returns the cached histogram of f, decoding the file on a miss.
// The first decode records the file's true dimensions.
func (h *HistogramAlgorithm) Describe(f *types.FileRecord) (*HistogramDescriptor, error) {
	return h.cache.GetOrCompute(f.Path, func() (*HistogramDescriptor, error) {
		buf, err := h.loader.Load(f.Path, imageprocessor.ColorBGR, h.tuning.MaxDimension)
		if err != nil {
			return nil, err
		}
		defer buf.Close()

		f.SetDimensions(buf.SourceWidth, buf.SourceHeight)
		return ComputeHistogram(buf.Mat, h.tuning.Buckets)
	})
}

// NewChecker implements Algorithm
func (h *HistogramAlgorithm) NewChecker(ref *types.FileRecord) (Checker, error) {
	d, err := h.Describe(ref)
	if err != nil {
		return nil, err
	}
	return &histogramChecker{alg: h, ref: d}, nil
}

type histogramChecker struct {
	alg *HistogramAlgorithm
	ref *HistogramDescriptor
}

func (c *histogramChecker) SimilarityTo(candidate *types.FileRecord) (float64, error) {
	d, err := c.alg.Describe(candidate)
	if err != nil {
		return 0, err
	}
	return CompareHistograms(c.ref, d), nil
}

func (c *histogramChecker) Close() error {
	c.ref = nil
	return nil
}

// ComputeHistogram counts the pixels of a 3-channel 8-bit Mat into buckets per channel
func ComputeHistogram(mat gocv.Mat, buckets int) (*HistogramDescriptor, error) {
	if mat.Empty() {
		return nil, errors.New("histogram of empty image")
	}
	if mat.Channels() != 3 {
		return nil, errors.Errorf("histogram needs 3 channels, got %d", mat.Channels())
	}
	if !mat.IsContinuous() {
		c := mat.Clone()
		defer c.Close()
		mat = c
	}

	step := (256 + buckets - 1) / buckets
	d := &HistogramDescriptor{Pixels: mat.Rows() * mat.Cols()}
	for ch := range d.Channels {
		d.Channels[ch] = make([]int, buckets)
	}

	data := mat.ToBytes()
	for i := 0; i+2 < len(data); i += 3 {
		d.Channels[0][int(data[i])/step]++
		d.Channels[1][int(data[i+1])/step]++
		d.Channels[2][int(data[i+2])/step]++
	}
	return d, nil
}

// CompareHistograms returns the better of the two directional similarities,
// which makes the result symmetric
func CompareHistograms(a, b *HistogramDescriptor) float64 {
	return math.Max(directionalSimilarity(a, b), directionalSimilarity(b, a))
}

// directionalSimilarity normalises the bucket differences by from's pixel count
func directionalSimilarity(from, to *HistogramDescriptor) float64 {
	if from.Pixels == 0 {
		return 0
	}

	var total float64
	for ch := range from.Channels {
		for i := range from.Channels[ch] {
			var other int
			if i < len(to.Channels[ch]) {
				other = to.Channels[ch][i]
			}
			total += math.Abs(float64(other - from.Channels[ch][i]))
		}
	}

	meanChannelDiff := total / 3
	return clamp01(1 - meanChannelDiff/float64(from.Pixels))
}
