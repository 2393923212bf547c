package delta

import (
	"errors"
	"image"
	"testing"
)

func uniform(w, h int, r, g, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 0xff
	}
	return img
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8((x * 7) % 200)
			img.Pix[i+1] = uint8((y * 11) % 200)
			img.Pix[i+2] = uint8((x + y) % 200)
			img.Pix[i+3] = 0xff
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip8(t *testing.T) {
	reference := gradient(17, 13)

	// Shift every channel by +50 and -50, both well inside the
	// representable +/-127 range.
	for _, shift := range []int{50, -50, 0, 127, -127} {
		processed := image.NewNRGBA(reference.Rect)
		copy(processed.Pix, reference.Pix)
		for i := 0; i < len(processed.Pix); i += 4 {
			for c := 0; c < 3; c++ {
				v := int(processed.Pix[i+c]) + shift
				if v < 0 {
					v = 0
				}
				if v > 255 {
					v = 255
				}
				processed.Pix[i+c] = uint8(v)
			}
		}

		d, err := Encode(reference, processed, Depth8)
		if err != nil {
			t.Fatalf("encode shift %d: %v", shift, err)
		}

		decoded, err := Decode(reference, d)
		if err != nil {
			t.Fatalf("decode shift %d: %v", shift, err)
		}

		for i := range processed.Pix {
			if decoded.Pix[i] != processed.Pix[i] {
				t.Fatalf("shift %d: pixel byte %d: got %d, want %d", shift, i, decoded.Pix[i], processed.Pix[i])
			}
		}
	}
}

func TestEncodeSaturation(t *testing.T) {
	// A +255 difference cannot be represented: the stored delta clamps at
	// 255 and decoding recovers the largest representable excursion, +128.
	reference := uniform(4, 4, 0, 0, 0)
	processed := uniform(4, 4, 255, 255, 255)

	d, err := Encode(reference, processed, Depth8)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	nrgba := d.(*image.NRGBA)
	if nrgba.Pix[0] != 255 {
		t.Errorf("stored delta = %d, want saturated 255", nrgba.Pix[0])
	}

	decoded, err := Decode(reference, d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 0 + (255 - 127): the stored delta was clamped, so decoding recovers
	// +128, not the unrepresentable +255. Do not "fix" this to 255.
	if decoded.Pix[0] != 128 {
		t.Errorf("decoded = %d, want deterministic saturated 128", decoded.Pix[0])
	}

	// And the negative direction clamps to 0.
	d, err = Encode(processed, reference, Depth8)
	if err != nil {
		t.Fatalf("encode negative: %v", err)
	}
	if d.(*image.NRGBA).Pix[0] != 0 {
		t.Errorf("stored negative delta = %d, want saturated 0", d.(*image.NRGBA).Pix[0])
	}

	decoded, err = Decode(processed, d)
	if err != nil {
		t.Fatalf("decode negative: %v", err)
	}
	if decoded.Pix[0] != 128 {
		t.Errorf("decoded negative = %d, want 255-127 = 128", decoded.Pix[0])
	}
}

func TestEncodeIdentity(t *testing.T) {
	reference := gradient(9, 9)

	d, err := Encode(reference, reference, Depth8)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	nrgba := d.(*image.NRGBA)
	for i := 0; i < len(nrgba.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			if nrgba.Pix[i+c] != 127 {
				t.Fatalf("identity delta byte %d = %d, want neutral 127", i+c, nrgba.Pix[i+c])
			}
		}
	}
}

func TestEncodeDecodeRoundTrip16(t *testing.T) {
	reference := gradient(11, 7)
	processed := gradient(11, 7)
	for i := 0; i < len(processed.Pix); i += 4 {
		processed.Pix[i] += 33
		processed.Pix[i+1] += 5
	}

	d, err := Encode(reference, processed, Depth16)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if DetectDepth(d) != Depth16 {
		t.Fatalf("expected 16-bit delta, got %T", d)
	}

	decoded, err := Decode(reference, d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := range processed.Pix {
		if decoded.Pix[i] != processed.Pix[i] {
			t.Fatalf("pixel byte %d: got %d, want %d", i, decoded.Pix[i], processed.Pix[i])
		}
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	reference := uniform(8, 8, 10, 10, 10)
	d := uniform(4, 4, 127, 127, 127)

	if _, err := Decode(reference, d); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestTo8Bit(t *testing.T) {
	reference := gradient(8, 8)
	processed := shiftAll(reference, 30)

	d16, err := Encode(reference, processed, Depth16)
	if err != nil {
		t.Fatalf("encode 16: %v", err)
	}
	d8, err := Encode(reference, processed, Depth8)
	if err != nil {
		t.Fatalf("encode 8: %v", err)
	}

	flattened := To8Bit(d16)
	want := d8.(*image.NRGBA)
	for i := range want.Pix {
		if flattened.Pix[i] != want.Pix[i] {
			t.Fatalf("pixel byte %d: got %d, want %d", i, flattened.Pix[i], want.Pix[i])
		}
	}

	// The 16-bit neutral must land on the 8-bit neutral, not its high byte.
	neutral := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	for c := 0; c < 3; c++ {
		neutral.Pix[2*c] = uint8(neutral16 >> 8)
		neutral.Pix[2*c+1] = uint8(neutral16 & 0xff)
	}
	neutral.Pix[6] = 0xff
	neutral.Pix[7] = 0xff
	if got := To8Bit(neutral).Pix[0]; got != 127 {
		t.Errorf("neutral converted to %d, want 127", got)
	}
}

func shiftAll(img *image.NRGBA, by int) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(out.Pix[i+c]) + by
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			out.Pix[i+c] = uint8(v)
		}
	}
	return out
}

func TestDetectDepth(t *testing.T) {
	if got := DetectDepth(image.NewNRGBA(image.Rect(0, 0, 1, 1))); got != Depth8 {
		t.Errorf("NRGBA: got %d", got)
	}
	if got := DetectDepth(image.NewNRGBA64(image.Rect(0, 0, 1, 1))); got != Depth16 {
		t.Errorf("NRGBA64: got %d", got)
	}
	if got := DetectDepth(image.NewRGBA64(image.Rect(0, 0, 1, 1))); got != Depth16 {
		t.Errorf("RGBA64: got %d", got)
	}
}
