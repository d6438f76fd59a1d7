package imageprocessor

import (
	"fmt"
	"os"
	"sync"

	"dupfinder/logging"
)

// ImageLoaderRegistry loads images by trying the decoders registered for the
// file's format in order
type ImageLoaderRegistry struct {
	decoders []Decoder
	mutex    sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with OpenCV first and the Go decoder as fallback
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{}
	registry.RegisterDecoder(NewOpenCVDecoder())
	registry.RegisterDecoder(NewGoImageDecoder())
	return registry
}

// RegisterDecoder appends a decoder to the chain
func (r *ImageLoaderRegistry) RegisterDecoder(d Decoder) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.decoders = append(r.decoders, d)
}

// decodersFor returns the decoders able to read format, in registration order
func (r *ImageLoaderRegistry) decodersFor(format FormatType) []Decoder {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []Decoder
	for _, d := range r.decoders {
		if format == FormatUnknown || d.CanDecode(format) {
			out = append(out, d)
		}
	}
	return out
}

// Load implements ImageLoader. Every failure is returned as *DecodeError.
func (r *ImageLoaderRegistry) Load(path string, mode ColorMode, maxDimension int) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("empty file")}
	}

	decoders := r.decodersFor(GetFileFormat(path))
	if len(decoders) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("no decoder for format %s", GetFileFormat(path))}
	}

	var lastErr error
	for _, d := range decoders {
		mat, err := d.Decode(data, mode)
		if err != nil {
			logging.DebugLog("%s decoder failed for %s: %v", d.Name(), path, err)
			lastErr = err
			continue
		}

		buf := &Buffer{SourceWidth: mat.Cols(), SourceHeight: mat.Rows()}
		buf.Mat = downscale(mat, maxDimension)
		return buf, nil
	}

	return nil, &DecodeError{Path: path, Err: lastErr}
}

var defaultRegistry = NewImageLoaderRegistry()

// Load decodes path with the default registry
func Load(path string, mode ColorMode, maxDimension int) (*Buffer, error) {
	return defaultRegistry.Load(path, mode, maxDimension)
}

// DefaultLoader returns the shared registry as an ImageLoader
func DefaultLoader() ImageLoader {
	return defaultRegistry
}
