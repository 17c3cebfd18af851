// Package scale converts survey ratings on arbitrary numeric ranges onto a
// common 0–100 basis.
package scale

import (
	"errors"
	"fmt"
)

// Default bounds for questions that do not declare their own range.
const (
	DefaultMin = 1.0
	DefaultMax = 10.0
)

// ErrDegenerateScale is returned when a question's upper bound is not
// above its lower bound.
var ErrDegenerateScale = errors.New("scale: degenerate range")

// Normalize maps raw from [min, max] onto [0, 100]. The common 1–10 survey
// scale takes the raw*10 shortcut. Results outside the target range are
// clamped.
func Normalize(raw, min, max float64) (float64, error) {
	if max <= min {
		return 0, fmt.Errorf("%w: min %g, max %g", ErrDegenerateScale, min, max)
	}

	var v float64
	if min == DefaultMin && max == DefaultMax {
		v = raw * 10
	} else {
		v = (raw - min) / (max - min) * 100
	}
	return clamp(v), nil
}

// QuestionBounds resolves a question's optional bounds, defaulting to 1–10.
func QuestionBounds(min, max *float64) (float64, float64) {
	lo, hi := DefaultMin, DefaultMax
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	return lo, hi
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
