// Package geometry provides dimension parsing and aspect-ratio fitting for
// the proxy pipeline.
package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDimension = errors.New("invalid dimension")

// ParseDimension resolves a dimension spec against a reference size. The
// spec is either an absolute pixel count ("960") or a percentage of the
// reference ("50%"). Percentages must lie in (0, 1000].
func ParseDimension(spec string, reference int) (int, error) {
	spec = strings.TrimSpace(spec)

	if strings.HasSuffix(spec, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(spec, "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, spec)
		}
		if pct <= 0 || pct > 1000 {
			return 0, fmt.Errorf("%w: percentage must be in (0, 1000]: %q", ErrInvalidDimension, spec)
		}

		n := int(float64(reference) * pct / 100)
		if n < 1 {
			return 0, fmt.Errorf("%w: %q of %d resolves to zero", ErrInvalidDimension, spec, reference)
		}
		return n, nil
	}

	n, err := strconv.Atoi(spec)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive integer or percentage", ErrInvalidDimension, spec)
	}
	return n, nil
}

// Fit returns the largest dimensions with the source's aspect ratio that
// fit inside the target box. The fit is tight on the binding axis and the
// other axis is floored. Integer arithmetic keeps split and merge in exact
// agreement; a float scale can land one pixel short of the box.
func Fit(srcW, srcH, targetW, targetH int) (int, int) {
	// Width binds when targetW/srcW <= targetH/srcH.
	if srcH*targetW <= srcW*targetH {
		return targetW, max(1, srcH*targetW/srcW)
	}
	return max(1, srcW*targetH/srcH), targetH
}
