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
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoBracket     = errors.New("optim: f(a) and f(b) must have opposite signs")
	ErrNoConvergence = errors.New("optim: did not converge")
)

const (
	defaultRTol        = 4 * 2.220446049250313e-16
	defaultMaxIterRoot = 100
)

// Brent's method for a root of f in a bracket [a,b] with f(a)·f(b) <= 0.
// Converges when the bracket half-width drops below (xtol + RTol·|x|)/2.
type Brent struct {
	RTol    float64 // relative tolerance, default 4 machine epsilons
	MaxIter int     // default 100
}

func (br Brent) FindRoot(f func(float64) float64, a, b, xtol float64) (float64, error) {
	rtol, maxIter := br.RTol, br.MaxIter
	if rtol <= 0 {
		rtol = defaultRTol
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIterRoot
	}

	xpre, xcur := a, b
	fpre, fcur := f(xpre), f(xcur)
	if fpre*fcur > 0 {
		return math.NaN(), fmt.Errorf("%w: f(%g)=%g f(%g)=%g", ErrNoBracket, a, fpre, b, fcur)
	}
	if fpre == 0 {
		return xpre, nil
	}
	if fcur == 0 {
		return xcur, nil
	}

	xblk, fblk, spre, scur := 0.0, 0.0, 0.0, 0.0
	for i := 0; i < maxIter; i++ {
		if fpre != 0 && fcur != 0 && math.Signbit(fpre) != math.Signbit(fcur) {
			xblk, fblk = xpre, fpre
			spre = xcur - xpre
			scur = spre
		}
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}

		delta := (xtol + rtol*math.Abs(xcur)) / 2
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			return xcur, nil
		}

		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else {
				// inverse quadratic
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) / (dblk * dpre * (fblk - fpre))
			}
			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre, scur = scur, stry
			} else {
				spre, scur = sbis, sbis
			}
		} else {
			spre, scur = sbis, sbis
		}

		xpre, fpre = xcur, fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}
		fcur = f(xcur)
	}
	return xcur, ErrNoConvergence
}

// Outcome of a coarse scan for a sign change
type Bracket struct {
	Lo, Hi      float64
	Found       bool // Lo and Hi bracket a sign change
	Exact       bool // f(Lo) is exactly zero
	Premature   int  // points of the target sign seen before any point of the starting sign
	LastScanned float64
}

// Evaluates f at n evenly spaced points from lo to hi inclusive, looking for the first point
// of sign -from that follows a point of sign from. Lo is the last point of sign from, Hi the
// first point of opposite sign after it. Points of the opposite sign before any point of
// sign from are counted in Premature and skipped. Stops at an exact zero.
func ScanBracket(f func(float64) float64, lo, hi float64, n int, from float64) Bracket {
	b := Bracket{}
	haveLo := false
	step := 0.0
	if n > 1 {
		step = (hi - lo) / float64(n-1)
	}
	for i := 0; i < n; i++ {
		r := lo + float64(i)*step
		if i == n-1 {
			r = hi
		}
		b.LastScanned = r
		v := f(r)
		switch {
		case v == 0:
			b.Lo, b.Hi, b.Exact, b.Found = r, r, true, true
			return b
		case (v > 0) == (from > 0):
			b.Lo, haveLo = r, true
		case !haveLo:
			b.Premature++
		default:
			b.Hi, b.Found = r, true
			return b
		}
	}
	return b
}
