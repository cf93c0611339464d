// Package errorstat computes pointwise error statistics between an input
// buffer and its decompressed reconstruction.
package errorstat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats follows the usual lossy-compression definitions: difference is
// input minus output, error is its absolute value.
type Stats struct {
	PSNR              float64
	MSE               float64
	RMSE              float64
	ValueMean         float64
	ValueStd          float64
	ValueMin          float64
	ValueMax          float64
	ValueRange        float64
	MinError          float64
	MaxError          float64
	MinRelError       float64
	MaxRelError       float64
	AverageDifference float64
	AverageError      float64
	DifferenceRange   float64
	ErrorRange        float64
}

var ErrEmpty = errors.New("no elements to compare")

// Compute compares input and output elementwise. Relative errors and PSNR
// are scaled by the input's value range, so a constant input gives NaN or
// infinite values for them.
func Compute(input, output []float64) (Stats, error) {
	if len(input) != len(output) {
		return Stats{}, fmt.Errorf("length mismatch: input has %d elements, output %d", len(input), len(output))
	}
	if len(input) == 0 {
		return Stats{}, ErrEmpty
	}
	n := float64(len(input))

	diff := make([]float64, len(input))
	floats.SubTo(diff, input, output)
	errs := make([]float64, len(diff))
	for i, d := range diff {
		errs[i] = math.Abs(d)
	}

	var s Stats
	s.ValueMin = floats.Min(input)
	s.ValueMax = floats.Max(input)
	s.ValueRange = s.ValueMax - s.ValueMin
	s.ValueMean, s.ValueStd = stat.PopMeanStdDev(input, nil)

	s.MSE = floats.Dot(diff, diff) / n
	s.RMSE = math.Sqrt(s.MSE)
	s.AverageDifference = floats.Sum(diff) / n
	s.AverageError = floats.Sum(errs) / n
	s.DifferenceRange = floats.Max(diff) - floats.Min(diff)
	s.MinError = floats.Min(errs)
	s.MaxError = floats.Max(errs)
	s.ErrorRange = s.MaxError - s.MinError
	s.MinRelError = s.MinError / s.ValueRange
	s.MaxRelError = s.MaxError / s.ValueRange
	s.PSNR = -20 * math.Log10(s.RMSE/s.ValueRange)
	return s, nil
}

// fields lists every statistic with its result key suffix.
func (s Stats) fields() []struct {
	name  string
	value float64
} {
	return []struct {
		name  string
		value float64
	}{
		{"psnr", s.PSNR},
		{"mse", s.MSE},
		{"rmse", s.RMSE},
		{"value_mean", s.ValueMean},
		{"value_std", s.ValueStd},
		{"value_min", s.ValueMin},
		{"value_max", s.ValueMax},
		{"value_range", s.ValueRange},
		{"min_error", s.MinError},
		{"max_error", s.MaxError},
		{"min_rel_error", s.MinRelError},
		{"max_rel_error", s.MaxRelError},
		{"average_difference", s.AverageDifference},
		{"average_error", s.AverageError},
		{"difference_range", s.DifferenceRange},
		{"error_range", s.ErrorRange},
	}
}
