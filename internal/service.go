// Package internal provides the operation orchestrator for the proxy
// pipeline: split, compose, merge and their batch driver.
package internal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/twardoch/twat-image/internal/delta"
	"github.com/twardoch/twat-image/internal/geometry"
	"github.com/twardoch/twat-image/internal/platform/imgio"
	"github.com/twardoch/twat-image/internal/platform/logger"
	"github.com/twardoch/twat-image/internal/platform/sysmon"
	"github.com/twardoch/twat-image/internal/upscale"
)

var ErrInsufficientResources = errors.New("insufficient disk space")

// largeUpscaleSide is the edge length above which merge announces that an
// upscale may take a while.
const largeUpscaleSide = 2000

// Service orchestrates split, compose and merge operations.
type Service struct {
	log   logger.Logger
	debug logger.Logger
}

// Config holds configuration for creating a Service.
type Config struct {
	Log   logger.Logger
	Debug logger.Logger
}

// New creates a Service with the given configuration.
func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = logger.Discard()
	}
	if cfg.Debug == nil {
		cfg.Debug = logger.Discard()
	}

	return &Service{
		log:   cfg.Log,
		debug: cfg.Debug,
	}
}

// SplitRequest describes a split operation. Width and Height are dimension
// specs: absolute pixels ("960") or percentages of the source ("50%").
type SplitRequest struct {
	Input     string
	Width     string
	Height    string
	ProxyPath string // optional; default <stem>_proxy.png beside the input
}

// SplitResult reports where the proxy and its sidecar were written.
type SplitResult struct {
	ProxyPath    string
	MetadataPath string
	Meta         geometry.Metadata
	Padded       bool
}

// Split downsamples the input to an aspect-preserving fit of the target
// box, pads with black to the exact box if needed, and writes the proxy
// plus its geometry sidecar.
func (s *Service) Split(ctx context.Context, req SplitRequest) (SplitResult, error) {
	s.log(ctx, "split", "input", req.Input)

	img, err := imgio.LoadRGB(req.Input)
	if err != nil {
		return SplitResult{}, fmt.Errorf("split: %w", err)
	}

	origW := img.Bounds().Dx()
	origH := img.Bounds().Dy()
	s.debug(ctx, "loaded image", "size", fmt.Sprintf("%dx%d", origW, origH))

	if err := preflight(req.Input, origW, origH); err != nil {
		return SplitResult{}, fmt.Errorf("split: %w", err)
	}

	targetW, err := geometry.ParseDimension(req.Width, origW)
	if err != nil {
		return SplitResult{}, fmt.Errorf("split: width: %w", err)
	}
	targetH, err := geometry.ParseDimension(req.Height, origH)
	if err != nil {
		return SplitResult{}, fmt.Errorf("split: height: %w", err)
	}
	s.debug(ctx, "target box", "size", fmt.Sprintf("%dx%d", targetW, targetH))

	contentW, contentH := geometry.Fit(origW, origH, targetW, targetH)
	proxy := imaging.Resize(img, contentW, contentH, imaging.Lanczos)
	s.log(ctx, "downsampled", "size", fmt.Sprintf("%dx%d", contentW, contentH))

	padded := contentW != targetW || contentH != targetH
	if padded {
		bg := imaging.New(targetW, targetH, color.NRGBA{0, 0, 0, 255})
		proxy = imaging.PasteCenter(bg, proxy)
		s.log(ctx, "padded", "size", fmt.Sprintf("%dx%d", targetW, targetH))
	}

	proxyPath := req.ProxyPath
	if proxyPath == "" {
		proxyPath = stemPath(req.Input, "_proxy.png")
	}
	if err := imgio.SavePNG(proxyPath, proxy); err != nil {
		return SplitResult{}, fmt.Errorf("split: save proxy: %w", err)
	}

	meta := geometry.Metadata{
		OriginalPath:   req.Input,
		OriginalWidth:  origW,
		OriginalHeight: origH,
		ProxyWidth:     targetW,
		ProxyHeight:    targetH,
		ProxyPath:      proxyPath,
	}
	metaPath := geometry.SidecarPath(proxyPath)
	if err := meta.WriteFile(metaPath); err != nil {
		return SplitResult{}, fmt.Errorf("split: %w", err)
	}

	s.log(ctx, "proxy ready", "proxy", proxyPath, "metadata", metaPath)
	s.log(ctx, "process the proxy with your model, then run merge with the result")

	return SplitResult{
		ProxyPath:    proxyPath,
		MetadataPath: metaPath,
		Meta:         meta,
		Padded:       padded,
	}, nil
}

// ComposeRequest describes a delta composition between a proxy and its
// externally processed counterpart.
type ComposeRequest struct {
	ProxyPath     string
	ProcessedPath string
	DeltaPath     string // optional; default <proxy stem>_delta.png
	Refine        bool
	Depth         delta.Depth // zero value selects 8-bit
}

// ComposeResult reports where the delta images were written.
type ComposeResult struct {
	DeltaPath   string
	RefinedPath string
}

// Compose encodes the delta between the proxy and the processed image, and
// optionally a refined delta capturing the residual quantization error.
func (s *Service) Compose(ctx context.Context, req ComposeRequest) (ComposeResult, error) {
	s.log(ctx, "compose", "proxy", req.ProxyPath, "processed", req.ProcessedPath)

	proxy, err := imgio.LoadRGB(req.ProxyPath)
	if err != nil {
		return ComposeResult{}, fmt.Errorf("compose: %w", err)
	}
	processed, err := imgio.LoadRGB(req.ProcessedPath)
	if err != nil {
		return ComposeResult{}, fmt.Errorf("compose: %w", err)
	}

	depth := req.Depth
	if depth == 0 {
		depth = delta.Depth8
	}

	primary, refined, err := delta.Compose(proxy, processed, req.Refine, depth)
	if err != nil {
		return ComposeResult{}, fmt.Errorf("compose: %w", err)
	}

	deltaPath := req.DeltaPath
	if deltaPath == "" {
		deltaPath = stemPath(req.ProxyPath, "_delta.png")
	}
	if err := imgio.SavePNG(deltaPath, primary); err != nil {
		return ComposeResult{}, fmt.Errorf("compose: save delta: %w", err)
	}
	s.log(ctx, "delta written", "path", deltaPath, "depth", int(depth))

	result := ComposeResult{DeltaPath: deltaPath}

	if refined != nil {
		result.RefinedPath = stemPath(deltaPath, "_refined.png")
		if err := imgio.SavePNG(result.RefinedPath, refined); err != nil {
			return ComposeResult{}, fmt.Errorf("compose: save refined delta: %w", err)
		}
		s.log(ctx, "refined delta written", "path", result.RefinedPath)
	}

	return result, nil
}

// SplitWithProcessed runs Split and then composes the delta against an
// already processed low-resolution image.
func (s *Service) SplitWithProcessed(ctx context.Context, req SplitRequest, processedPath string, refine bool, depth delta.Depth) (SplitResult, ComposeResult, error) {
	split, err := s.Split(ctx, req)
	if err != nil {
		return SplitResult{}, ComposeResult{}, err
	}

	composed, err := s.Compose(ctx, ComposeRequest{
		ProxyPath:     split.ProxyPath,
		ProcessedPath: processedPath,
		Refine:        refine,
		Depth:         depth,
	})
	if err != nil {
		return SplitResult{}, ComposeResult{}, err
	}

	return split, composed, nil
}

// MergeRequest describes a merge operation.
type MergeRequest struct {
	Input            string
	DeltaPath        string
	OutputPath       string // optional; default <stem>_merged.png beside the input
	RefinedDeltaPath string // optional second corrective pass
	MetadataPath     string // optional; default sidecar convention beside the input
	Upscaler         upscale.Upscaler
	RefinedUpscaler  upscale.Upscaler // defaults to Upscaler
}

// MergeResult reports where the reconstructed image was written.
type MergeResult struct {
	OutputPath string
	Width      int
	Height     int
}

// Merge upscales the delta back to the original resolution, undoes any
// padding recorded in the sidecar, and applies the delta (and optional
// refined delta) onto the original image.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	s.log(ctx, "merge", "input", req.Input, "delta", req.DeltaPath)

	original, err := imgio.LoadRGB(req.Input)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}
	origW := original.Bounds().Dx()
	origH := original.Bounds().Dy()

	if err := preflight(req.Input, origW, origH); err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}

	deltaImg, err := imgio.Load(req.DeltaPath)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}
	deltaW := deltaImg.Bounds().Dx()
	deltaH := deltaImg.Bounds().Dy()
	s.debug(ctx, "loaded delta",
		"size", fmt.Sprintf("%dx%d", deltaW, deltaH),
		"depth", int(delta.DetectDepth(deltaImg)),
	)

	needsCrop, contentW, err := s.detectPadding(ctx, req, origW, origH, deltaW, deltaH)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}

	// When the proxy was padded, upscaling by the content scale keeps the
	// padding ratio intact so the center crop below lands exactly on the
	// original's position. Rounded integer arithmetic, like geometry.Fit:
	// a float factor can land one pixel short and leave nothing to crop.
	targetW, targetH := origW, origH
	if needsCrop {
		targetW = (deltaW*origW + contentW/2) / contentW
		targetH = (deltaH*origW + contentW/2) / contentW
	}

	if targetW > largeUpscaleSide || targetH > largeUpscaleSide {
		s.log(ctx, "upscaling, this may take a while", "target", fmt.Sprintf("%dx%d", targetW, targetH))
	}

	upscaler := req.Upscaler
	if upscaler == nil {
		upscaler = upscale.Basic{}
	}

	applied, err := s.applyDelta(ctx, original, deltaImg, upscaler, targetW, targetH, needsCrop)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}

	if req.RefinedDeltaPath != "" {
		refinedImg, err := imgio.Load(req.RefinedDeltaPath)
		if err != nil {
			return MergeResult{}, fmt.Errorf("merge: refined delta: %w", err)
		}

		refinedUpscaler := req.RefinedUpscaler
		if refinedUpscaler == nil {
			refinedUpscaler = upscaler
		}

		s.log(ctx, "applying refined delta", "path", req.RefinedDeltaPath)
		applied, err = s.applyDelta(ctx, applied, refinedImg, refinedUpscaler, targetW, targetH, needsCrop)
		if err != nil {
			return MergeResult{}, fmt.Errorf("merge: refined delta: %w", err)
		}
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = stemPath(req.Input, "_merged.png")
	}
	if err := imgio.SavePNG(outputPath, applied); err != nil {
		return MergeResult{}, fmt.Errorf("merge: save output: %w", err)
	}
	s.log(ctx, "merged image written", "path", outputPath)

	return MergeResult{OutputPath: outputPath, Width: origW, Height: origH}, nil
}

// detectPadding reads the geometry sidecar, validates the delta against it,
// and reports whether split padded the proxy, along with the pre-padding
// content width used to derive the upscale factor. A missing sidecar means
// no padding is assumed.
func (s *Service) detectPadding(ctx context.Context, req MergeRequest, origW, origH, deltaW, deltaH int) (bool, int, error) {
	metaPath := req.MetadataPath
	if metaPath == "" {
		metaPath = geometry.SidecarPathForOriginal(req.Input)
	}

	if _, err := os.Stat(metaPath); err != nil {
		s.debug(ctx, "no sidecar found, assuming no padding", "path", metaPath)
		return false, 0, nil
	}

	meta, err := geometry.ReadMetadata(metaPath)
	if err != nil {
		return false, 0, err
	}
	if !meta.HasProxyDims() {
		s.debug(ctx, "sidecar has no proxy dimensions, assuming no padding", "path", metaPath)
		return false, 0, nil
	}

	if meta.ProxyWidth != deltaW || meta.ProxyHeight != deltaH {
		return false, 0, fmt.Errorf("delta %dx%d vs recorded proxy %dx%d: %w",
			deltaW, deltaH, meta.ProxyWidth, meta.ProxyHeight, delta.ErrSizeMismatch)
	}

	contentW, contentH := geometry.Fit(origW, origH, meta.ProxyWidth, meta.ProxyHeight)
	if meta.ProxyWidth > contentW || meta.ProxyHeight > contentH {
		s.log(ctx, "delta was padded at split time",
			"proxy", fmt.Sprintf("%dx%d", meta.ProxyWidth, meta.ProxyHeight),
			"content", fmt.Sprintf("%dx%d", contentW, contentH),
		)
		return true, contentW, nil
	}

	return false, contentW, nil
}

// applyDelta upscales one delta image to the target size, undoes padding if
// required, and decodes it against the base image.
func (s *Service) applyDelta(ctx context.Context, base *image.NRGBA, deltaImg image.Image, up upscale.Upscaler, targetW, targetH int, needsCrop bool) (*image.NRGBA, error) {
	resized := deltaImg.Bounds().Dx() != targetW || deltaImg.Bounds().Dy() != targetH
	if (resized || needsCrop) && delta.DetectDepth(deltaImg) == delta.Depth16 {
		// Resampling and cropping work on 8-bit buffers; re-center the
		// 16-bit delta first so the neutral value survives.
		deltaImg = delta.To8Bit(deltaImg)
	}

	upscaled, err := up.Upscale(ctx, deltaImg, targetW, targetH)
	if err != nil {
		return nil, fmt.Errorf("upscale delta: %w", err)
	}

	if needsCrop {
		origW := base.Bounds().Dx()
		origH := base.Bounds().Dy()
		s.debug(ctx, "cropping padding",
			"from", fmt.Sprintf("%dx%d", upscaled.Bounds().Dx(), upscaled.Bounds().Dy()),
			"to", fmt.Sprintf("%dx%d", origW, origH),
		)
		upscaled = imaging.CropCenter(upscaled, origW, origH)
	}

	out, err := delta.Decode(base, upscaled)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	return out, nil
}

// BatchOutcome records the result for one file of a batch run.
type BatchOutcome struct {
	Input string
	Proxy string
	Err   error
}

// BatchResult aggregates per-file outcomes of a batch split.
type BatchResult struct {
	Outcomes  []BatchOutcome
	Succeeded int
	Failed    int
}

// BatchSplit runs Split over every file matching the glob pattern. A
// failure on one file is logged and recorded without aborting the rest.
func (s *Service) BatchSplit(ctx context.Context, pattern, width, height string) (BatchResult, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return BatchResult{}, fmt.Errorf("batch split: bad pattern %q: %w", pattern, err)
	}

	s.log(ctx, "batch split", "pattern", pattern, "files", len(files))

	var result BatchResult
	for _, file := range files {
		split, err := s.Split(ctx, SplitRequest{Input: file, Width: width, Height: height})
		if err != nil {
			s.log(ctx, "split failed", "file", file, "error", err)
			result.Outcomes = append(result.Outcomes, BatchOutcome{Input: file, Err: err})
			result.Failed++
			continue
		}

		result.Outcomes = append(result.Outcomes, BatchOutcome{Input: file, Proxy: split.ProxyPath})
		result.Succeeded++
	}

	s.log(ctx, "batch complete", "succeeded", result.Succeeded, "failed", result.Failed)

	return result, nil
}

// preflight estimates the space a full-size operation needs (three RGB
// working copies with a 2x safety factor) and rejects the operation early
// when the target volume cannot hold it. Advisory only; a capture failure
// skips the check.
func preflight(path string, width, height int) error {
	need := uint64(width) * uint64(height) * 3 * 3 * 2

	snap := sysmon.Capture(filepath.Dir(path))
	if snap.FreeDiskBytes == 0 {
		return nil
	}

	if need > snap.FreeDiskBytes {
		return fmt.Errorf("%w: need ~%dMB, have %dMB free",
			ErrInsufficientResources, need/(1024*1024), snap.FreeDiskBytes/(1024*1024))
	}

	return nil
}

func stemPath(path, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), stem+suffix)
}
