package upscale

import (
	"context"
	"errors"
	"image"
	"runtime"
	"testing"

	"github.com/twardoch/twat-image/internal/platform/logger"
)

func constant(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
		img.Pix[i+3] = 0xff
	}
	return img
}

func TestBasicUpscale(t *testing.T) {
	ctx := context.Background()

	out, err := Basic{}.Upscale(ctx, constant(10, 5, 127), 40, 20)
	if err != nil {
		t.Fatalf("upscale: %v", err)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
		t.Fatalf("got %dx%d, want 40x20", out.Bounds().Dx(), out.Bounds().Dy())
	}

	// A neutral delta must stay neutral through resampling.
	nrgba := out.(*image.NRGBA)
	for i := 0; i < len(nrgba.Pix); i += 4 {
		if nrgba.Pix[i] != 127 {
			t.Fatalf("pixel byte %d = %d, want 127", i, nrgba.Pix[i])
		}
	}
}

func TestBasicUpscaleNoop(t *testing.T) {
	src := constant(8, 8, 42)

	out, err := Basic{}.Upscale(context.Background(), src, 8, 8)
	if err != nil {
		t.Fatalf("upscale: %v", err)
	}
	if out != image.Image(src) {
		t.Error("expected the source image back when sizes already match")
	}
}

func TestParseMethod(t *testing.T) {
	log := logger.Discard()

	if up, err := ParseMethod("basic", log); err != nil {
		t.Errorf("basic: %v", err)
	} else if _, ok := up.(Basic); !ok {
		t.Errorf("basic: got %T", up)
	}

	if up, err := ParseMethod("cmd(upscayl -i %i -o %o)", log); err != nil {
		t.Errorf("cmd: %v", err)
	} else if _, ok := up.(*External); !ok {
		t.Errorf("cmd: got %T", up)
	}

	if _, err := ParseMethod("fancy", log); err == nil {
		t.Error("expected error for unknown method")
	}
	if _, err := ParseMethod("cmd(tool %i)", log); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("missing %%o: expected ErrBadTemplate, got %v", err)
	}
	if _, err := ParseMethod("cmd(tool %i %i %o)", log); !errors.Is(err, ErrBadTemplate) {
		t.Errorf("duplicate %%i: expected ErrBadTemplate, got %v", err)
	}
}

func TestExternalUpscale(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("external upscaler test needs sh")
	}

	// cp produces output at the input size, forcing the corrective resize.
	ext, err := NewExternal("cp %i %o", logger.Discard())
	if err != nil {
		t.Fatalf("new external: %v", err)
	}

	out, err := ext.Upscale(context.Background(), constant(10, 10, 127), 30, 30)
	if err != nil {
		t.Fatalf("upscale: %v", err)
	}
	if out.Bounds().Dx() != 30 || out.Bounds().Dy() != 30 {
		t.Fatalf("got %dx%d, want 30x30", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestExternalUpscaleFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("external upscaler test needs sh")
	}

	ext, err := NewExternal("false %i %o", logger.Discard())
	if err != nil {
		t.Fatalf("new external: %v", err)
	}

	if _, err := ext.Upscale(context.Background(), constant(4, 4, 0), 8, 8); !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestExternalUpscaleNoOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("external upscaler test needs sh")
	}

	// The tool exits zero but never writes the output file.
	ext, err := NewExternal("true %i %o", logger.Discard())
	if err != nil {
		t.Fatalf("new external: %v", err)
	}

	if _, err := ext.Upscale(context.Background(), constant(4, 4, 0), 8, 8); !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}
