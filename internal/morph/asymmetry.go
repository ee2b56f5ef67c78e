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

// Returned for centers outside the stamp, to keep the minimizer in range
const outOfBoundsAsymmetry = 100.0

// A flavor of the asymmetry statistic: how its aperture is built and whether the
// background asymmetry is subtracted
type asymVariant struct {
	name         string
	aperture     func(m *measurement, xc, yc float64) (aperture.Aperture, bool)
	skyCorrected bool
}

var (
	// classic CAS asymmetry, a circle scaled from the centroid-based Petrosian radius
	casAsymmetry = asymVariant{
		name: "asymmetry",
		aperture: func(m *measurement, xc, yc float64) (aperture.Aperture, bool) {
			return aperture.Circle{X: xc, Y: yc, R: m.cfg.PetroExtentCirc * m.rpetroCircCentroid}, true
		},
		skyCorrected: true,
	}

	// outer asymmetry, an annulus from the half-light radius to rmax
	outerAsymmetry = asymVariant{
		name: "outer_asymmetry",
		aperture: func(m *measurement, xc, yc float64) (aperture.Aperture, bool) {
			rIn, rOut := m.halfLightRadius, m.rmax
			if math.IsNaN(rIn) || math.IsNaN(rOut) || rIn <= 0 || rOut <= 0 {
				return nil, false
			}
			return aperture.CircularAnnulus{X: xc, Y: yc, RIn: rIn, ROut: rOut}, true
		},
		skyCorrected: true,
	}

	// shape asymmetry of the binary shape segmap, a circle of radius rmax
	shapeAsymmetry = asymVariant{
		name: "shape_asymmetry",
		aperture: func(m *measurement, xc, yc float64) (aperture.Aperture, bool) {
			if math.IsNaN(m.rmax) || m.rmax <= 0 {
				return nil, false
			}
			return aperture.Circle{X: xc, Y: yc, R: m.rmax}, true
		},
		skyCorrected: false,
	}
)

// Asymmetry of img under a 180° rotation about (xc,yc). Pixels masked in either orientation
// are excluded from both images.
func (m *measurement) asymmetryAt(v asymVariant, img *grid.Image, xc, yc float64) float64 {
	w, h := img.Width, img.Height
	if !(xc >= 0 && xc < float64(w) && yc >= 0 && yc < float64(h)) {
		m.flags.Raise(v.name, "minimizer tried to leave the stamp")
		return outOfBoundsAsymmetry
	}
	ap, ok := v.aperture(m, xc, yc)
	if !ok {
		m.flags.Raise(v.name, "aperture radii are undefined")
		return Invalid
	}

	absSum, absDiff, area := 0.0, 0.0, 0.0
	for _, wt := range ap.Weights(w, h) {
		x, y := wt.Index%w, wt.Index/w
		if m.maskStamp.Data[wt.Index] || m.maskStampImg.Rotated180At(x, y, xc, yc) >= 0.5 {
			continue
		}
		val := img.Data[wt.Index]
		rot := img.Rotated180At(x, y, xc, yc)
		absSum += wt.W * math.Abs(val)
		absDiff += wt.W * math.Abs(rot-val)
		area += wt.W
	}
	if absSum == 0 {
		m.flags.Raise(v.name, "total absolute flux in the aperture is zero")
		return Invalid
	}
	if v.skyCorrected && !math.IsNaN(m.sky.Asym) && !math.IsInf(m.sky.Asym, 0) {
		return (absDiff - area*m.sky.Asym) / absSum
	}
	return absDiff / absSum
}

// Minimizes the asymmetry variant over the center, starting from (x0,y0)
func (m *measurement) asymmetryCenter(v asymVariant, img *grid.Image, x0, y0 float64) (float64, float64) {
	f := func(p []float64) float64 { return m.asymmetryAt(v, img, p[0], p[1]) }
	x, _, err := m.ctx.Minimizer.Minimize(f, []float64{x0, y0})
	if err != nil {
		m.flags.Note(v.name, "center search: %v", err)
	}
	return x[0], x[1]
}
