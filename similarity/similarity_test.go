package similarity

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"dupfinder/imageprocessor"
	"dupfinder/types"
)

func solidImage(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := imaging.New(w, h, c)
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func noiseImage(t *testing.T, dir, name string, w, h int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// blocks of random colour give ORB plenty of corners
	for by := 0; by < h; by += 8 {
		for bx := 0; bx < w; bx += 8 {
			c := color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			for y := by; y < by+8 && y < h; y++ {
				for x := bx; x < bx+8 && x < w; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func copyFile(t *testing.T, src, dst string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
	return dst
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Histogram")
	require.NoError(t, err)
	assert.Equal(t, Histogram, k)

	k, err = ParseKind("features")
	require.NoError(t, err)
	assert.Equal(t, Feature, k)
	assert.Equal(t, "feature", k.String())

	_, err = ParseKind("template")
	assert.Error(t, err)
}

func TestEmbeddedTuning(t *testing.T) {
	set, err := LoadTuningSet("")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen1", "gen2", "gen3"}, set.Names())

	def := DefaultTuning()
	assert.Equal(t, "gen3", def.Name)
	assert.Equal(t, 150, def.Histogram.MaxDimension)
	assert.Equal(t, 16, def.Histogram.Buckets)
	assert.Equal(t, 400, def.Feature.MaxDimension)
	assert.True(t, def.Feature.Blend.Enabled)
	assert.InDelta(t, 0.95, def.Feature.Blend.FeatureWeight, 1e-9)

	for _, name := range set.Names() {
		p, err := set.Profile(name)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Histogram.MinSimilarity, 0.77)
		assert.LessOrEqual(t, p.Histogram.MinSimilarity, 0.87)
		assert.GreaterOrEqual(t, p.Feature.MinSimilarity, 0.5)
		assert.LessOrEqual(t, p.Feature.MinSimilarity, 0.65)
	}

	_, err = set.Profile("gen9")
	assert.Error(t, err)
}

func TestParseTuningSetRejectsBadProfiles(t *testing.T) {
	_, err := ParseTuningSet([]byte("default: x\nprofiles: {}\n"))
	assert.Error(t, err)

	bad := `
default: broken
profiles:
  broken:
    histogram: {max_dimension: 150, buckets: 16, min_similarity: 0.8}
    feature:
      max_dimension: 400
      features: 500
      levels: 8
      min_similarity: 0.6
      mapping: {knee_distance: 90, cutoff_distance: 20}
`
	_, err = ParseTuningSet([]byte(bad))
	assert.Error(t, err)
}

func TestMapDistance(t *testing.T) {
	m := DefaultTuning().Feature.Mapping
	tests := []struct {
		mean float64
		want float64
	}{
		{0, 1.0},
		{10, 0.95},
		{20, 0.9},
		{55, 0.55},
		{90, 0.2},
		{90.5, 0},
		{200, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, MapDistance(tt.mean, m), 1e-9, "mean %v", tt.mean)
	}
}

func TestBlendClamps(t *testing.T) {
	b := BlendTuning{Enabled: true, FeatureWeight: 0.95, HistogramWeight: 0.1}
	assert.Equal(t, 1.0, Blend(1, 1, b))
	assert.InDelta(t, 0.95*0.6+0.1*0.5, Blend(0.6, 0.5, b), 1e-9)
	assert.Equal(t, 0.7, Blend(0.7, 1, BlendTuning{}))
}

func TestCompareHistogramsDirectional(t *testing.T) {
	buckets := func(b, g, r int) [3][]int {
		return [3][]int{{b, 0}, {g, 0}, {r, 0}}
	}
	small := &HistogramDescriptor{Channels: buckets(100, 100, 100), Pixels: 100}
	large := &HistogramDescriptor{Channels: buckets(150, 150, 150), Pixels: 150}

	// difference is 50 per channel: 1-50/100 from small, 1-50/150 from large
	assert.InDelta(t, 0.5, directionalSimilarity(small, large), 1e-9)
	assert.InDelta(t, 1-50.0/150, directionalSimilarity(large, small), 1e-9)
	assert.InDelta(t, 1-50.0/150, CompareHistograms(small, large), 1e-9)
	assert.Equal(t, CompareHistograms(small, large), CompareHistograms(large, small))
}

func TestComputeHistogramSolid(t *testing.T) {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 130, 255, 0), 4, 5, gocv.MatTypeCV8UC3)
	defer mat.Close()

	d, err := ComputeHistogram(mat, 16)
	require.NoError(t, err)
	assert.Equal(t, 20, d.Pixels)
	assert.Equal(t, 20, d.Channels[0][0])
	assert.Equal(t, 20, d.Channels[1][8])
	assert.Equal(t, 20, d.Channels[2][15])

	gray := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer gray.Close()
	_, err = ComputeHistogram(gray, 16)
	assert.Error(t, err)
}

func TestHistogramIdenticalImages(t *testing.T) {
	dir := t.TempDir()
	a := noiseImage(t, dir, "a.png", 640, 480, 1)
	b := copyFile(t, a, filepath.Join(dir, "b.png"))

	alg := NewHistogram(DefaultTuning().Histogram, imageprocessor.DefaultLoader(), 100)
	ra, rb := types.NewFileRecord(a), types.NewFileRecord(b)

	score, err := Compare(alg, ra, rb)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	self, err := Compare(alg, ra, ra)
	require.NoError(t, err)
	assert.Equal(t, 1.0, self)

	w, h := ra.Dimensions()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestHistogramBlackVersusWhite(t *testing.T) {
	dir := t.TempDir()
	black := solidImage(t, dir, "black.png", 200, 100, color.NRGBA{A: 255})
	white := solidImage(t, dir, "white.png", 200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	alg, err := New(Histogram, DefaultTuning(), nil, 100)
	require.NoError(t, err)

	score, err := Compare(alg, types.NewFileRecord(black), types.NewFileRecord(white))
	require.NoError(t, err)
	assert.InDelta(t, 0, score, 1e-9)
}

func TestHistogramSymmetricAndBounded(t *testing.T) {
	dir := t.TempDir()
	a := types.NewFileRecord(noiseImage(t, dir, "a.png", 300, 200, 7))
	b := types.NewFileRecord(noiseImage(t, dir, "b.png", 120, 260, 8))

	alg, err := New(Histogram, DefaultTuning(), nil, 100)
	require.NoError(t, err)

	ab, err := Compare(alg, a, b)
	require.NoError(t, err)
	ba, err := Compare(alg, b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.GreaterOrEqual(t, ab, 0.0)
	assert.LessOrEqual(t, ab, 1.0)
}

func TestHistogramUndecodableCandidate(t *testing.T) {
	dir := t.TempDir()
	a := types.NewFileRecord(noiseImage(t, dir, "a.png", 64, 64, 3))
	missing := types.NewFileRecord(filepath.Join(dir, "deleted.png"))

	alg, err := New(Histogram, DefaultTuning(), nil, 100)
	require.NoError(t, err)

	_, err = Compare(alg, a, missing)
	var decodeErr *imageprocessor.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestFeatureIdenticalImages(t *testing.T) {
	dir := t.TempDir()
	a := noiseImage(t, dir, "a.png", 500, 400, 11)
	b := copyFile(t, a, filepath.Join(dir, "b.png"))

	for _, profile := range []string{"gen2", "gen3"} {
		t.Run(profile, func(t *testing.T) {
			set, err := LoadTuningSet("")
			require.NoError(t, err)
			tuning, err := set.Profile(profile)
			require.NoError(t, err)

			alg, err := New(Feature, tuning, nil, 100)
			require.NoError(t, err)

			score, err := Compare(alg, types.NewFileRecord(a), types.NewFileRecord(b))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0.95)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestFeatureDifferentImagesScoreLow(t *testing.T) {
	dir := t.TempDir()
	a := types.NewFileRecord(noiseImage(t, dir, "a.png", 400, 400, 21))
	b := types.NewFileRecord(noiseImage(t, dir, "b.png", 400, 400, 22))

	alg, err := New(Feature, DefaultTuning(), nil, 100)
	require.NoError(t, err)

	score, err := Compare(alg, a, b)
	if err != nil {
		assert.ErrorIs(t, err, ErrNoFeatures)
		return
	}
	assert.Less(t, score, 0.9)
}

func TestFeatureTexturelessImage(t *testing.T) {
	dir := t.TempDir()
	a := types.NewFileRecord(solidImage(t, dir, "flat.png", 300, 300, color.NRGBA{R: 90, G: 90, B: 90, A: 255}))
	b := types.NewFileRecord(noiseImage(t, dir, "busy.png", 300, 300, 5))

	alg, err := New(Feature, DefaultTuning(), nil, 100)
	require.NoError(t, err)

	_, err = Compare(alg, a, b)
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestClearCacheRecomputes(t *testing.T) {
	dir := t.TempDir()
	path := noiseImage(t, dir, "a.png", 100, 100, 9)
	rec := types.NewFileRecord(path)

	alg := NewHistogram(DefaultTuning().Histogram, imageprocessor.DefaultLoader(), 100)
	_, err := alg.Describe(rec)
	require.NoError(t, err)
	assert.Equal(t, 1, alg.cache.Len())

	// replace the file; a cached descriptor would hide the change
	solidImage(t, dir, "a.png", 100, 100, color.NRGBA{A: 255})
	before, _ := alg.Describe(rec)
	alg.ClearCache()
	after, err := alg.Describe(rec)
	require.NoError(t, err)

	assert.NotEqual(t, before.Channels, after.Channels)
	assert.Equal(t, 10000, after.Channels[0][0])
}
