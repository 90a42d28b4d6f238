package preview

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var extensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"webp": true, "bmp": true, "tif": true, "tiff": true,
	"heic": true, "heif": true,
}

// Supported reports whether name has an image extension this package can
// decode on the current platform.
func Supported(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "heic" || ext == "heif" {
		return heicSupported()
	}
	return extensions[ext]
}

// decodeFile opens and decodes the image at path.
func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "heic" || ext == "heif" {
		if !heicSupported() {
			return nil, fmt.Errorf("%w: HEIC on this platform", ErrUnsupported)
		}
		return decodeHEIC(file)
	}

	img, _, err := image.Decode(file)
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	return img, err
}

// scale shrinks src to fit within maxPixels on its longest side.
func scale(src image.Image, maxPixels int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxPixels <= 0 || (width <= maxPixels && height <= maxPixels) {
		return src
	}

	var factor float64
	if width > height {
		factor = float64(maxPixels) / float64(width)
	} else {
		factor = float64(maxPixels) / float64(height)
	}

	newWidth := max(1, int(float64(width)*factor))
	newHeight := max(1, int(float64(height)*factor))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
