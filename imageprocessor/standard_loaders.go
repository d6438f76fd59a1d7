package imageprocessor

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	// extra decoders for the Go fallback path
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// OpenCVDecoder decodes through OpenCV's imgcodecs
type OpenCVDecoder struct {
	BaseDecoder
}

// NewOpenCVDecoder creates a decoder for the formats OpenCV reads natively
func NewOpenCVDecoder() *OpenCVDecoder {
	return &OpenCVDecoder{
		BaseDecoder: BaseDecoder{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// Name implements Decoder
func (d *OpenCVDecoder) Name() string { return "opencv" }

// Decode implements Decoder
func (d *OpenCVDecoder) Decode(data []byte, mode ColorMode) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, mode.readFlag())
	if err != nil {
		return mat, errors.Wrap(err, "opencv decode")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.New("opencv could not decode image")
	}
	return mat, nil
}

// GoImageDecoder decodes with the Go image packages and converts to a Mat.
// It covers GIF and files OpenCV rejects.
type GoImageDecoder struct {
	BaseDecoder
}

// NewGoImageDecoder creates the fallback decoder
func NewGoImageDecoder() *GoImageDecoder {
	return &GoImageDecoder{
		BaseDecoder: BaseDecoder{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// Name implements Decoder
func (d *GoImageDecoder) Name() string { return "goimage" }

// Decode implements Decoder
func (d *GoImageDecoder) Decode(data []byte, mode ColorMode) (gocv.Mat, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "go image decode")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "convert to mat")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.New("decoded image is empty")
	}

	if mode == ColorGray {
		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
		mat.Close()
		return gray, nil
	}
	return mat, nil
}
