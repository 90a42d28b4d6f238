//go:build !linux || !cgo

package preview

import (
	"errors"
	"image"
	"io"
)

// decodeHEIC is a stub where the cgo HEIC decoder is not built
func decodeHEIC(r io.Reader) (image.Image, error) {
	return nil, errors.New("HEIC decoding not supported on this platform")
}

// heicSupported returns whether HEIC decoding is available on this platform
func heicSupported() bool {
	return false
}
