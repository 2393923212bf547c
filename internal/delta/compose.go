package delta

import (
	"fmt"
	"image"
)

// Compose encodes the primary delta between a proxy and its externally
// processed counterpart. With refine set, it additionally decodes the
// primary delta back onto the proxy and encodes the residual left by
// quantization, enabling a second corrective pass at merge time.
//
// The processed image must have been produced from exactly the proxy; a
// size difference is a hard contract violation.
func Compose(proxy, processed *image.NRGBA, refine bool, depth Depth) (primary, refined image.Image, err error) {
	if !proxy.Bounds().Size().Eq(processed.Bounds().Size()) {
		return nil, nil, fmt.Errorf("proxy %v vs processed %v: %w",
			proxy.Bounds().Size(), processed.Bounds().Size(), ErrSizeMismatch)
	}

	primary, err = Encode(proxy, processed, depth)
	if err != nil {
		return nil, nil, fmt.Errorf("encode delta: %w", err)
	}

	if !refine {
		return primary, nil, nil
	}

	// What merge will reconstruct at proxy resolution, including any
	// saturation loss from the primary encoding.
	intermediate, err := Decode(proxy, primary)
	if err != nil {
		return nil, nil, fmt.Errorf("decode intermediate: %w", err)
	}

	refined, err = Encode(intermediate, processed, depth)
	if err != nil {
		return nil, nil, fmt.Errorf("encode refined delta: %w", err)
	}

	return primary, refined, nil
}
