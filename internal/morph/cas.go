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

	"github.com/mlnoga/nightmorph/internal/aperture"
	"github.com/mlnoga/nightmorph/internal/grid"
)

// Radius about the asymmetry center holding the given fraction of the flux within the CAS aperture
func (m *measurement) casRadius(fraction float64) float64 {
	rUpper := m.cfg.PetroExtentCirc * m.rpetroCirc
	r := m.radiusAtFraction("concentration", m.maskZeroed, m.asymX, m.asymY, rUpper, fraction)
	if math.IsNaN(r) || r <= 0 {
		m.flags.Raise("concentration", "radius at fraction %g is undefined", fraction)
		return Invalid
	}
	return r
}

// Concentration 5·log10(r80/r20), invalid if either radius is
func concentration(r20, r80 float64) float64 {
	if r20 == Invalid || r80 == Invalid {
		return Invalid
	}
	return 5 * math.Log10(r80/r20)
}

// Smoothness: flux in the difference to a boxcar-smoothed stamp over the CAS aperture,
// less the background smoothness, relative to the absolute flux
func (m *measurement) smoothness() float64 {
	ap := aperture.Circle{X: m.asymX, Y: m.asymY, R: m.cfg.PetroExtentCirc * m.rpetroCirc}
	boxcar := int(m.cfg.PetroFractionCAS * m.rpetroCirc)
	smooth := grid.UniformFilter2D(m.maskZeroed, boxcar)

	absFlux, absDiff := 0.0, 0.0
	for _, w := range ap.Weights(m.width(), m.height()) {
		v := m.maskZeroed.Data[w.Index]
		absFlux += w.W * math.Abs(v)
		absDiff += w.W * math.Abs(smooth.Data[w.Index]-v)
	}
	if math.IsNaN(m.sky.Smooth) || math.IsInf(m.sky.Smooth, 0) {
		return Invalid
	}
	s := (absDiff - ap.Area()*m.sky.Smooth) / absFlux
	if math.IsNaN(s) || math.IsInf(s, 0) {
		m.flags.Raise("smoothness", "smoothness is not finite")
		return Invalid
	}
	return s
}
