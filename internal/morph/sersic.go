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

package morph

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

const (
	sersicInvalidCost = 1e300
	sersicMinIndex    = 0.1 // physically plausible index range
	sersicMaxIndex    = 10
)

// Elliptical Sersic surface brightness profile, parametrized by the amplitude at the effective radius
type sersicModel struct {
	Amplitude, Reff, N float64
	X, Y               float64
	Ellipticity, Theta float64
}

func sersicFromParams(p []float64) sersicModel {
	return sersicModel{Amplitude: p[0], Reff: p[1], N: p[2], X: p[3], Y: p[4], Ellipticity: p[5], Theta: p[6]}
}

func (s sersicModel) valid() bool {
	return s.Reff > 0 && s.N > 0.05 && s.N <= 20 && s.Ellipticity < 1
}

// Profile constant b_n such that the effective radius holds half of the total flux
func sersicBn(n float64) float64 {
	return mathext.GammaIncRegInv(2*n, 0.5)
}

// Evaluates the profile at (x, y) given the precomputed b_n
func (s sersicModel) at(x, y, bn float64) float64 {
	a, b := s.Reff, (1-s.Ellipticity)*s.Reff
	sin, cos := math.Sincos(s.Theta)
	dx, dy := x-s.X, y-s.Y
	major, minor := dx*cos+dy*sin, -dx*sin+dy*cos
	z := math.Sqrt((major/a)*(major/a) + (minor/b)*(minor/b))
	return s.Amplitude * math.Exp(-bn*(math.Pow(z, 1/s.N)-1))
}

// Least-squares fit of an elliptical Sersic profile to the unmasked stamp, seeded with the half light
// radius and the centroid shape. Returns the index, or Invalid with flag_sersic raised.
func (m *measurement) fitSersic() float64 {
	if math.IsNaN(m.halfLightRadius) || m.halfLightRadius <= 0 {
		m.flags.RaiseSersic("half light radius %g is not positive", m.halfLightRadius)
		return Invalid
	}
	img := m.maskZeroed
	idx := make([]int, 0, len(img.Data))
	for i, masked := range m.maskStamp.Data {
		if !masked {
			idx = append(idx, i)
		}
	}
	w := img.Width

	cost := func(p []float64) float64 {
		s := sersicFromParams(p)
		if !s.valid() {
			return sersicInvalidCost
		}
		bn := sersicBn(s.N)
		sum := 0.0
		for _, i := range idx {
			d := s.at(float64(i%w), float64(i/w), bn) - img.Data[i]
			sum += d * d
		}
		if math.IsNaN(sum) {
			return sersicInvalidCost
		}
		return sum
	}

	x0 := []float64{
		img.At(int(m.xc), int(m.yc)), m.halfLightRadius, 2.5,
		m.xc, m.yc, m.props.Shape.Ellipticity, m.props.Shape.Orientation,
	}
	p, _, err := m.ctx.Minimizer.Minimize(cost, x0)
	if err != nil {
		m.flags.RaiseSersic("fit did not converge: %v", err)
	}
	s := sersicFromParams(p)
	if !s.valid() || math.IsNaN(s.N) {
		m.flags.RaiseSersic("fit returned invalid parameters")
		return Invalid
	}
	if s.N < sersicMinIndex || s.N > sersicMaxIndex || math.IsInf(s.Reff, 0) || s.Reff > m.diagonal {
		m.flags.RaiseSersic("unphysical fit with index %g and effective radius %g", s.N, s.Reff)
	}
	return s.N
}
