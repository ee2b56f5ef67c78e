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

package optim

import (
	"fmt"
	"math"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/optimize"
)

// Derivative-free local minimization with the gonum Nelder-Mead simplex.
// The initial simplex extends 5% of the largest coordinate of x0 along each axis,
// or 0.00025 if x0 is zero.
type NelderMead struct {
	MaxEvals  int     // function evaluation budget, default 200 per dimension
	Tolerance float64 // absolute improvement below which iterations count as stalled, default 1e-10
	Stalls    int     // stalled iterations before convergence, default 30
}

func (nm NelderMead) Minimize(f func([]float64) float64, x0 []float64) (x []float64, fx float64, err error) {
	maxEvals, tol, stalls := nm.MaxEvals, nm.Tolerance, nm.Stalls
	if maxEvals <= 0 {
		maxEvals = 200 * len(x0)
	}
	if tol <= 0 {
		tol = 1e-10
	}
	if stalls <= 0 {
		stalls = 30
	}

	size := 0.0
	for _, v := range x0 {
		size = math.Max(size, math.Abs(v))
	}
	size *= 0.05
	if size == 0 {
		size = 0.00025
	}

	problem := optimize.Problem{Func: f}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger:       &optimize.FunctionConverge{Absolute: tol, Iterations: stalls},
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{SimplexSize: size})
	if result == nil {
		return append([]float64(nil), x0...), f(x0), err
	}
	if err == nil {
		switch result.Status {
		case optimize.FunctionEvaluationLimit, optimize.IterationLimit, optimize.RuntimeLimit:
			err = fmt.Errorf("%w: %v after %d evaluations", ErrNoConvergence, result.Status, result.Stats.FuncEvaluations)
		}
	}
	return result.X, result.F, err
}

// Settings for a basin-hopping run
type HopSettings struct {
	NIter       int     // number of hops
	Temperature float64 // Metropolis temperature, > 0
	StepSize    float64 // initial half-width of the uniform displacement
	Interval    float64 // hops between step size adjustments, may be fractional, 0 disables
	Seed        uint32
}

// Basin-hopping global minimizer: random displacement, local minimization, Metropolis acceptance.
// The step size adapts towards an acceptance rate of 50% by a factor of 0.9.
type BasinHopping struct {
	Local interface {
		Minimize(f func([]float64) float64, x0 []float64) ([]float64, float64, error)
	}
}

const (
	hopTargetAcceptRate = 0.5
	hopStepFactor       = 0.9
)

// Reports whether the step size is adjusted before hop number total. A fractional interval
// is not rounded: 2.5 adjusts at hops 5, 10 and so on.
func adjustsStep(total int, interval float64) bool {
	return interval > 0 && math.Mod(float64(total), interval) == 0
}

func (bh BasinHopping) GlobalMinimize(f func([]float64) float64, x0 []float64, s HopSettings) ([]float64, float64) {
	local := bh.Local
	if local == nil {
		local = NelderMead{}
	}
	rng := fastrand.RNG{}
	rng.Seed(s.Seed)
	uniform := func() float64 { return float64(rng.Uint32()) / (1 << 32) }

	x, fx, _ := local.Minimize(f, x0)
	best, fbest := append([]float64(nil), x...), fx
	step := s.StepSize
	accepted, total := 0, 0

	for i := 0; i < s.NIter; i++ {
		trial := make([]float64, len(x))
		for j := range x {
			trial[j] = x[j] + step*(2*uniform()-1)
		}
		total++
		if adjustsStep(total, s.Interval) {
			if float64(accepted)/float64(total) > hopTargetAcceptRate {
				step /= hopStepFactor
			} else {
				step *= hopStepFactor
			}
		}

		xn, fn, _ := local.Minimize(f, trial)
		w := math.Exp(math.Min(0, -(fn-fx)/s.Temperature))
		if w >= uniform() {
			accepted++
			x, fx = xn, fn
		}
		if fn < fbest {
			best, fbest = append([]float64(nil), xn...), fn
		}
	}
	return best, fbest
}
