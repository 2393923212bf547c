package upscale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/twardoch/twat-image/internal/platform/imgio"
	"github.com/twardoch/twat-image/internal/platform/logger"
)

var ErrExternalTool = errors.New("external upscaler failed")

// External runs a command-line upscaler. The template is invoked through a
// shell with %i replaced by the input path and %o by the output path.
type External struct {
	template string
	log      logger.Logger
}

// NewExternal validates the command template and returns the adapter.
func NewExternal(template string, log logger.Logger) (*External, error) {
	if strings.Count(template, "%i") != 1 || strings.Count(template, "%o") != 1 {
		return nil, fmt.Errorf("%w: %q", ErrBadTemplate, template)
	}
	if log == nil {
		log = logger.Discard()
	}

	return &External{template: template, log: log}, nil
}

// Upscale writes img to a temporary file, runs the external tool on it and
// reads the result back. If the tool produced a different size than
// requested, a corrective Basic resize is applied. Temporary files are
// removed on every exit path.
func (e *External) Upscale(ctx context.Context, img image.Image, width, height int) (image.Image, error) {
	dir, err := os.MkdirTemp("", "twat-upscale-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.png")
	outPath := filepath.Join(dir, "output.png")

	if err := imgio.SavePNG(inPath, img); err != nil {
		return nil, fmt.Errorf("write tool input: %w", err)
	}

	cmdLine := strings.ReplaceAll(e.template, "%i", inPath)
	cmdLine = strings.ReplaceAll(cmdLine, "%o", outPath)
	e.log(ctx, "running external upscaler", "cmd", cmdLine)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrExternalTool, err, strings.TrimSpace(stderr.String()))
	}

	out, err := imgio.Load(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading output: %v", ErrExternalTool, err)
	}

	if out.Bounds().Dx() != width || out.Bounds().Dy() != height {
		e.log(ctx, "correcting external output size",
			"got", fmt.Sprintf("%dx%d", out.Bounds().Dx(), out.Bounds().Dy()),
			"want", fmt.Sprintf("%dx%d", width, height),
		)
		return Basic{}.Upscale(ctx, out, width, height)
	}

	return out, nil
}
