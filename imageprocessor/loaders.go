package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Decoder turns the raw bytes of one file into a pixel matrix
type Decoder interface {
	// Name identifies the decoder in logs and errors
	Name() string

	// CanDecode determines if this decoder handles the given format
	CanDecode(format FormatType) bool

	// Decode returns a non-empty matrix in the requested colour mode
	Decode(data []byte, mode ColorMode) (gocv.Mat, error)
}

// BaseDecoder provides common functionality for all decoders
type BaseDecoder struct {
	// Formats this decoder can handle
	SupportedFormats []FormatType
}

// CanDecode checks if this decoder supports the format
func (d *BaseDecoder) CanDecode(format FormatType) bool {
	for _, supported := range d.SupportedFormats {
		if format == supported {
			return true
		}
	}
	return false
}

// DecodeError reports a file that is missing, unreadable or not a decodable image
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LimitSize fits width x height into maxDimension keeping the aspect ratio.
// The longer side becomes exactly maxDimension; smaller images are returned unchanged.
func LimitSize(width, height, maxDimension int) (int, int) {
	if maxDimension <= 0 || (width <= maxDimension && height <= maxDimension) {
		return width, height
	}

	if width >= height {
		h := height * maxDimension / width
		if h < 1 {
			h = 1
		}
		return maxDimension, h
	}

	w := width * maxDimension / height
	if w < 1 {
		w = 1
	}
	return w, maxDimension
}

// downscale replaces src with a resized copy when it exceeds maxDimension
func downscale(src gocv.Mat, maxDimension int) gocv.Mat {
	w, h := LimitSize(src.Cols(), src.Rows(), maxDimension)
	if w == src.Cols() && h == src.Rows() {
		return src
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	src.Close()
	return dst
}
