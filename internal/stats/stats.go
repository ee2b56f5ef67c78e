// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stats

import (
	"fmt"
	"math"

	"github.com/mlnoga/nightmorph/internal/qsort"
	"gonum.org/v1/gonum/stat"
)

// Estimates the location of a sample. Must not modify the sample.
type CenterFunc func(xs []float64) float64

// Arithmetic mean, NaN for an empty sample
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Median, NaN for an empty sample. Does not change the data.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	tmp := append([]float64(nil), xs...)
	return qsort.QSelectMedianFloat64(tmp)
}

// Mode estimate for a moderately skewed distribution, 2.5·median - 1.5·mean
func Mode(xs []float64) float64 {
	return 2.5*Median(xs) - 1.5*Mean(xs)
}

// Mean and population standard deviation, NaN for an empty sample
func MeanStdDev(xs []float64) (mean, stdDev float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(xs, nil)
}

// Returns element floor(q·n) of an ascending sample, or the last element for q == 1.
// Panics for q outside [0,1] or an empty sample.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 || q < 0 || q > 1 {
		panic(fmt.Sprintf("stats: quantile %g of %d values", q, len(sorted)))
	}
	if q == 1 {
		return sorted[len(sorted)-1]
	}
	return sorted[int(q*float64(len(sorted)))]
}

// Location and scale of a sigma-clipped sample
type Clipped struct {
	Mean   float64
	Median float64
	StdDev float64 // population standard deviation
	N      int     // number of values kept
}

func (c Clipped) String() string {
	return fmt.Sprintf("mean %.4g median %.4g stddev %.4g n %d", c.Mean, c.Median, c.StdDev, c.N)
}

// Iteratively rejects values further than sigma standard deviations from the center estimate
// until no more values are rejected, or maxIters rounds have passed if maxIters > 0.
// Returns mean, median and standard deviation of the kept values. Does not change the data.
func SigmaClippedStats(data []float64, sigma float64, maxIters int, center CenterFunc) Clipped {
	remaining := append([]float64(nil), data...)
	for iter := 0; maxIters <= 0 || iter < maxIters; iter++ {
		if len(remaining) == 0 {
			break
		}
		c := center(remaining)
		_, std := MeanStdDev(remaining)

		// reject outliers based on sigma
		lowBound, highBound := c-sigma*std, c+sigma*std
		kept := 0
		for _, r := range remaining {
			if r >= lowBound && r <= highBound {
				remaining[kept] = r
				kept++
			}
		}
		rejected := len(remaining) - kept
		remaining = remaining[:kept]
		if rejected == 0 {
			break
		}
	}

	mean, std := MeanStdDev(remaining)
	return Clipped{Mean: mean, Median: Median(remaining), StdDev: std, N: len(remaining)}
}
