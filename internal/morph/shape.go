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
	"github.com/mlnoga/nightmorph/internal/stats"
)

const shapeClipSigma = 3.0

// Binary detection mask for shape asymmetry: the boxcar-smoothed stamp above a robust
// background level, estimated in an annulus well outside the source or in the skybox
func (m *measurement) shapeSegmap() *grid.Mask {
	w, h := m.width(), m.height()
	cx, cy := math.Floor(m.asymX)+0.5, math.Floor(m.asymY)+0.5
	rIn := m.cfg.PetroExtentEllip * m.rpetroEllip
	annulus := aperture.CenterMask(aperture.CircularAnnulus{X: cx, Y: cy, RIn: rIn, ROut: 2 * rIn}, w, h)
	background := annulus.And(m.maskStamp.Not())

	if background.Count() < m.sky.Size*m.sky.Size {
		m.flags.Note("shape_asymmetry", "using skybox for background")
		background = grid.NewMask(w, h)
		b := m.sky.Box
		for y := b.Y0; y < b.Y1; y++ {
			for x := b.X0; x < b.X1; x++ {
				background.Set(x, y, true)
			}
		}
		if background.Count() == 0 {
			m.flags.Raise("shape_asymmetry", "background undefined, using the original segmap")
			return m.maskStampNoBg.Not()
		}
	}

	clipped := stats.SigmaClippedStats(m.maskZeroed.Values(background), shapeClipSigma, 0, stats.Mode)
	threshold := 2.5*clipped.Median - 1.5*clipped.Mean + clipped.StdDev

	smooth := grid.UniformFilter2D(m.maskZeroed, int(m.cfg.BoxcarSizeShapeAsym))
	above := smooth.AtLeast(threshold)
	x, y := smooth.ArgMax()
	if !above.At(x, y) {
		m.flags.Raise("shape_asymmetry", "adding brightest pixel to segmap")
		above.Set(x, y, true)
	}
	res, _ := grid.ComponentAt(above, x, y)
	return res
}

// Largest distance from the center of the asymmetry center pixel to any pixel center of the shape segmap
func (m *measurement) measureRmax() float64 {
	cx, cy := math.Floor(m.asymX)+0.5, math.Floor(m.asymY)+0.5
	rmax, found := 0.0, false
	w := m.segShape.Width
	for i, sel := range m.segShape.Data {
		if !sel {
			continue
		}
		found = true
		x, y := float64(i%w)+0.5, float64(i/w)+0.5
		rmax = math.Max(rmax, math.Hypot(x-cx, y-cy))
	}
	if !found {
		m.flags.Raise("rmax", "shape segmap is empty")
		return 0
	}
	if rmax < 1 {
		if rmax != 0 {
			m.fail("rmax", "rmax %g is neither zero nor at least one pixel", rmax)
		}
		m.flags.Raise("rmax", "rmax is zero")
	}
	return rmax
}

// Radius about the asymmetry center holding half of the flux within rmax
func (m *measurement) measureHalfLightRadius() float64 {
	if m.rmax == 0 {
		return 0
	}
	return m.radiusAtFraction("half_light_radius", m.maskZeroed, m.asymX, m.asymY, m.rmax, 0.5)
}
