// Package imgio provides image loading and saving for the proxy pipeline.
package imgio

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	xwebp "golang.org/x/image/webp"

	"github.com/deepteams/webp"
	"github.com/disintegration/imaging"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileNotFound      = errors.New("file not found")
)

// Supported reports whether the file extension is a format the pipeline
// accepts.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".tiff", ".bmp":
		return true
	}
	return false
}

// Load decodes an image file. WebP files go through two independent
// decoders; the other formats use the stdlib decoder registry.
func Load(path string) (image.Image, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return loadWebP(f, path)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return img, nil
}

// loadWebP tries the full-spec decoder first (it handles extended and
// animated containers) and falls back to the x/image implementation,
// failing only when both reject the file.
func loadWebP(f *os.File, path string) (image.Image, error) {
	img, err := webp.Decode(f)
	if err == nil {
		return img, nil
	}

	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	img, err2 := xwebp.Decode(f)
	if err2 != nil {
		return nil, fmt.Errorf("decode %s: %w (fallback: %v)", path, err, err2)
	}

	return img, nil
}

// LoadRGB decodes an image file into an 8-bit RGB buffer.
func LoadRGB(path string) (*image.NRGBA, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return imaging.Clone(img), nil
}

// SavePNG writes an image as PNG. 16-bit buffers are encoded directly so
// their precision survives; everything else goes through imaging.Save.
func SavePNG(path string, img image.Image) error {
	switch img.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		defer f.Close()

		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return nil
	}

	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
