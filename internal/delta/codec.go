// Package delta encodes signed per-channel pixel differences as unsigned
// images centered at a neutral midpoint, so that a transform applied to a
// low-resolution proxy can be carried back onto the full-resolution source.
package delta

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

var ErrSizeMismatch = errors.New("image sizes do not match")

// Depth selects the storage precision of a delta image.
type Depth int

const (
	Depth8  Depth = 8
	Depth16 Depth = 16
)

const (
	neutral8  = 127
	neutral16 = 32768
	scale16   = 256
)

// Neutral returns the pixel value representing "no change" for the depth.
func (d Depth) Neutral() int {
	if d == Depth16 {
		return neutral16
	}
	return neutral8
}

// DetectDepth reports the storage depth of a decoded delta image.
func DetectDepth(img image.Image) Depth {
	switch img.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		return Depth16
	}
	return Depth8
}

// Encode computes processed−reference per channel and stores it centered at
// the neutral value. Differences beyond the representable range saturate;
// that loss is the defined behavior, not an error.
func Encode(reference, processed *image.NRGBA, depth Depth) (image.Image, error) {
	if !reference.Bounds().Size().Eq(processed.Bounds().Size()) {
		return nil, fmt.Errorf("reference %v vs processed %v: %w",
			reference.Bounds().Size(), processed.Bounds().Size(), ErrSizeMismatch)
	}
	if depth == Depth16 {
		return encode16(reference, processed), nil
	}
	return encode8(reference, processed), nil
}

func encode8(reference, processed *image.NRGBA) *image.NRGBA {
	w, h := reference.Bounds().Dx(), reference.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		ri := reference.PixOffset(reference.Bounds().Min.X, reference.Bounds().Min.Y+y)
		pi := processed.PixOffset(processed.Bounds().Min.X, processed.Bounds().Min.Y+y)
		oi := out.PixOffset(0, y)

		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				d := int(processed.Pix[pi+c]) - int(reference.Pix[ri+c]) + neutral8
				out.Pix[oi+c] = clamp8(d)
			}
			out.Pix[oi+3] = 0xff

			ri += 4
			pi += 4
			oi += 4
		}
	}

	return out
}

func encode16(reference, processed *image.NRGBA) *image.NRGBA64 {
	w, h := reference.Bounds().Dx(), reference.Bounds().Dy()
	out := image.NewNRGBA64(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		ri := reference.PixOffset(reference.Bounds().Min.X, reference.Bounds().Min.Y+y)
		pi := processed.PixOffset(processed.Bounds().Min.X, processed.Bounds().Min.Y+y)
		oi := out.PixOffset(0, y)

		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				d := (int(processed.Pix[pi+c])-int(reference.Pix[ri+c]))*scale16 + neutral16
				v := clamp16(d)
				out.Pix[oi+2*c] = uint8(v >> 8)
				out.Pix[oi+2*c+1] = uint8(v)
			}
			out.Pix[oi+6] = 0xff
			out.Pix[oi+7] = 0xff

			ri += 4
			pi += 4
			oi += 8
		}
	}

	return out
}

// Decode applies a delta to a reference image, clamping each channel to the
// displayable range. The delta's depth is detected from its pixel format.
func Decode(reference *image.NRGBA, delta image.Image) (*image.NRGBA, error) {
	if !reference.Bounds().Size().Eq(delta.Bounds().Size()) {
		return nil, fmt.Errorf("reference %v vs delta %v: %w",
			reference.Bounds().Size(), delta.Bounds().Size(), ErrSizeMismatch)
	}
	if DetectDepth(delta) == Depth16 {
		return decode16(reference, delta), nil
	}
	return decode8(reference, imaging.Clone(delta)), nil
}

func decode8(reference, delta *image.NRGBA) *image.NRGBA {
	w, h := reference.Bounds().Dx(), reference.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		ri := reference.PixOffset(reference.Bounds().Min.X, reference.Bounds().Min.Y+y)
		di := delta.PixOffset(0, y)
		oi := out.PixOffset(0, y)

		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := int(reference.Pix[ri+c]) + int(delta.Pix[di+c]) - neutral8
				out.Pix[oi+c] = clamp8(v)
			}
			out.Pix[oi+3] = 0xff

			ri += 4
			di += 4
			oi += 4
		}
	}

	return out
}

func decode16(reference *image.NRGBA, delta image.Image) *image.NRGBA {
	w, h := reference.Bounds().Dx(), reference.Bounds().Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	min := delta.Bounds().Min

	for y := 0; y < h; y++ {
		ri := reference.PixOffset(reference.Bounds().Min.X, reference.Bounds().Min.Y+y)
		oi := out.PixOffset(0, y)

		for x := 0; x < w; x++ {
			// Alpha is always opaque in this pipeline, so the premultiplied
			// values from RGBA() are the straight channel values.
			dr, dg, db, _ := delta.At(min.X+x, min.Y+y).RGBA()

			for c, d := range [3]uint32{dr, dg, db} {
				diff := int(math.Round(float64(int(d)-neutral16) / scale16))
				out.Pix[oi+c] = clamp8(int(reference.Pix[ri+c]) + diff)
			}
			out.Pix[oi+3] = 0xff

			ri += 4
			oi += 4
		}
	}

	return out
}

// To8Bit re-centers a delta onto the 8-bit neutral. Resampling and cropping
// collapse 16-bit buffers to their high bytes, which would move the neutral
// from 32768 to 128; converting explicitly first keeps it at 127.
func To8Bit(img image.Image) *image.NRGBA {
	if DetectDepth(img) == Depth8 {
		return imaging.Clone(img)
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		oi := out.PixOffset(0, y)
		for x := 0; x < b.Dx(); x++ {
			dr, dg, db, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()

			for c, d := range [3]uint32{dr, dg, db} {
				diff := int(math.Round(float64(int(d)-neutral16) / scale16))
				out.Pix[oi+c] = clamp8(diff + neutral8)
			}
			out.Pix[oi+3] = 0xff

			oi += 4
		}
	}

	return out
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clamp16(v int) int {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return v
}
