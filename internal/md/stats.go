package md

import (
	"errors"
	"math"
)

// ErrUnavailable is returned when the data source cannot supply a usable
// price or enough history to compute statistics.
var ErrUnavailable = errors.New("market data unavailable")

func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values for mean")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// SampleStdev computes the sample standard deviation (n-1 denominator).
// At least two values are required.
func SampleStdev(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("need at least 2 values for stdev")
	}
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1)), nil
}
