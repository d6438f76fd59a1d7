package imageprocessor

import (
	"errors"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestLimitSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 1000, 500, 150, 150, 75},
		{"portrait", 300, 1000, 150, 45, 150},
		{"square", 800, 800, 400, 400, 400},
		{"within bounds", 100, 80, 150, 100, 80},
		{"exact bound", 150, 20, 150, 150, 20},
		{"no limit", 5000, 4000, 0, 5000, 4000},
		{"thin strip", 10000, 3, 100, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := LimitSize(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestIsImageFile(t *testing.T) {
	for _, p := range []string{"a.jpg", "b.JPEG", "c.jfif", "d.png", "e.gif", "f.webp", "g.bmp", "h.tif", "i.TIFF"} {
		assert.True(t, IsImageFile(p), p)
	}
	for _, p := range []string{"a.txt", "b.cr2", "c", "d.heic", "e.mp4"} {
		assert.False(t, IsImageFile(p), p)
	}
	assert.Equal(t, FormatJPEG, GetFileFormat("x.JFIF"))
	assert.Equal(t, FormatUnknown, GetFileFormat("x.doc"))
	assert.Len(t, GetSupportedExtensions(), 9)
}

func TestLoadDownscalesColor(t *testing.T) {
	path := writeImage(t, "wide.png", 600, 300)

	buf, err := Load(path, ColorBGR, 150)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, 150, buf.Width())
	assert.Equal(t, 75, buf.Height())
	assert.Equal(t, 3, buf.Mat.Channels())
	assert.Equal(t, 600, buf.SourceWidth)
	assert.Equal(t, 300, buf.SourceHeight)
}

func TestLoadGrayNoUpscale(t *testing.T) {
	path := writeImage(t, "small.jpg", 64, 48)

	buf, err := Load(path, ColorGray, 400)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, 64, buf.Width())
	assert.Equal(t, 48, buf.Height())
	assert.Equal(t, 1, buf.Mat.Channels())
}

func TestLoadGIF(t *testing.T) {
	path := writeImage(t, "anim.gif", 40, 20)

	buf, err := Load(path, ColorBGR, 0)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, 40, buf.Width())
	assert.Equal(t, 3, buf.Mat.Channels())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "gone.jpg"), ColorBGR, 150)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0o644))

	_, err := Load(path, ColorGray, 150)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, path, decodeErr.Path)
}
