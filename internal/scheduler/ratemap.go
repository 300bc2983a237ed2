package scheduler

import (
	"fmt"
	"math"

	"github.com/framewise/rife-interpolation-service/internal/domain/entity"
)

// ConversionRate is the fixed multiplier/divisor pair of one conversion.
// The output stream runs at source rate * Multiplier / Divisor.
type ConversionRate struct {
	Multiplier int
	Divisor    int
}

// Map resolves an output frame index to its source frame index and the
// remainder of the division. remainder == 0 means the output frame aligns
// exactly with the source frame; otherwise it falls at normalized position
// remainder/Multiplier between sourceIndex and sourceIndex+1.
func (r ConversionRate) Map(outputIndex int) (sourceIndex, remainder int) {
	return outputIndex * r.Divisor / r.Multiplier, outputIndex * r.Divisor % r.Multiplier
}

// Timestep converts a Map remainder into the blend factor handed to the
// interpolator.
func (r ConversionRate) Timestep(remainder int) float64 {
	return float64(remainder) / float64(r.Multiplier)
}

// OutputFrames is the converted stream's frame count.
func (r ConversionRate) OutputFrames(sourceFrames int) int {
	return sourceFrames * r.Multiplier / r.Divisor
}

// checkOverflow rejects source lengths whose converted frame count would
// not fit in an int.
func (r ConversionRate) checkOverflow(sourceFrames int) error {
	if sourceFrames/r.Divisor > math.MaxInt/r.Multiplier {
		return fmt.Errorf("resulting stream is too long: %d frames at %d/%d", sourceFrames, r.Multiplier, r.Divisor)
	}
	return nil
}

// RescaleDuration rewrites a frame duration for the converted rate:
// duration * Divisor / Multiplier, reduced to lowest terms.
func (r ConversionRate) RescaleDuration(d entity.Rational) entity.Rational {
	return entity.Rational{
		Num: d.Num * int64(r.Divisor),
		Den: d.Den * int64(r.Multiplier),
	}.Reduce()
}

// RescaleRate rewrites a nominal frame rate for the converted stream:
// rate * Multiplier / Divisor, reduced to lowest terms.
func (r ConversionRate) RescaleRate(fps entity.Rational) entity.Rational {
	return entity.Rational{
		Num: fps.Num * int64(r.Multiplier),
		Den: fps.Den * int64(r.Divisor),
	}.Reduce()
}
