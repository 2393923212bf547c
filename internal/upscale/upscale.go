// Package upscale provides pluggable strategies for resizing delta images
// back to full resolution.
package upscale

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/twardoch/twat-image/internal/platform/logger"
)

// Upscaler resizes an image to an exact target size.
type Upscaler interface {
	Upscale(ctx context.Context, img image.Image, width, height int) (image.Image, error)
}

// Basic upscales with the same high-quality filter used for downsampling.
type Basic struct{}

// Upscale resamples img to width x height with a Lanczos filter. An image
// that already has the target size is returned unchanged, which keeps
// 16-bit deltas at full precision when no resampling is needed.
func (Basic) Upscale(ctx context.Context, img image.Image, width, height int) (image.Image, error) {
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img, nil
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

var ErrBadTemplate = errors.New("command template must contain exactly one %i and one %o")

// ParseMethod turns a method spec from the command line into an Upscaler:
// "basic" selects the built-in filter, "cmd(<template>)" an external tool.
func ParseMethod(spec string, log logger.Logger) (Upscaler, error) {
	if spec == "basic" {
		return Basic{}, nil
	}

	if strings.HasPrefix(spec, "cmd(") && strings.HasSuffix(spec, ")") {
		return NewExternal(spec[len("cmd("):len(spec)-1], log)
	}

	return nil, fmt.Errorf("unknown upscale method %q", spec)
}
