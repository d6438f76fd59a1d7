// Package imageprocessor decodes image files into OpenCV buffers for the similarity algorithms.
package imageprocessor

import "gocv.io/x/gocv"

// ColorMode selects the channel layout of a decoded buffer
type ColorMode int

const (
	// ColorGray decodes to a single 8-bit channel
	ColorGray ColorMode = iota
	// ColorBGR decodes to three 8-bit channels in OpenCV order
	ColorBGR
)

func (m ColorMode) String() string {
	if m == ColorGray {
		return "gray"
	}
	return "bgr"
}

func (m ColorMode) readFlag() gocv.IMReadFlag {
	if m == ColorGray {
		return gocv.IMReadGrayScale
	}
	return gocv.IMReadColor
}

// Buffer is a decoded image. The caller owns it and must Close it.
type Buffer struct {
	Mat gocv.Mat

	// size of the file's pixels before any downscaling
	SourceWidth  int
	SourceHeight int
}

// Width of the (possibly downscaled) pixel data
func (b *Buffer) Width() int { return b.Mat.Cols() }

// Height of the (possibly downscaled) pixel data
func (b *Buffer) Height() int { return b.Mat.Rows() }

// Pixels returns Width*Height
func (b *Buffer) Pixels() int { return b.Width() * b.Height() }

// Close releases the OpenCV memory
func (b *Buffer) Close() error {
	return b.Mat.Close()
}

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// Load decodes path in the given colour mode, downscaled so that the longer
	// side is at most maxDimension. A maxDimension of 0 keeps the source size.
	Load(path string, mode ColorMode, maxDimension int) (*Buffer, error)
}
