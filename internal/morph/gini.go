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
	"sort"

	"github.com/mlnoga/nightmorph/internal/aperture"
	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/mlnoga/nightmorph/internal/stats"
	"gonum.org/v1/gonum/floats"
)

// Segmap for Gini and M20: the smoothed stamp at or above its mean surface brightness at the
// elliptical Petrosian radius, reduced to the component holding the smoothed maximum
func (m *measurement) giniSegmap() *grid.Mask {
	smooth := grid.GaussFilter2D(m.maskZeroed, m.cfg.PetroFractionGini*m.rpetroEllip)
	if m.props.ShapeErr != nil {
		m.flags.Raise("segmap_gini", "source shape undefined: %v", m.props.ShapeErr)
		return grid.NewMask(m.width(), m.height())
	}

	w := m.cfg.AnnulusWidth
	aOut := m.rpetroEllip + 0.5*w
	ann := aperture.EllipticalAnnulus{
		X: m.xc, Y: m.yc,
		AIn: m.rpetroEllip - 0.5*w, AOut: aOut, BOut: aOut / m.props.Shape.Elongation,
		Theta: m.props.Shape.Orientation,
	}
	threshold := apertureMean(ann, smooth)
	above := smooth.AtLeast(threshold)

	labels, n := grid.Label8(above)
	if n == 0 {
		m.flags.Raise("segmap_gini", "empty Gini segmap")
		return above
	}
	if n == 1 {
		return above
	}
	m.flags.Raise("segmap_gini", "Gini segmap has %d components", n)
	x, y := smooth.ArgMax()
	l := labels.At(x, y)
	if l == 0 {
		m.fail("segmap_gini", "smoothed maximum at (%d,%d) is not part of the segmap", x, y)
	}
	return labels.Equal(l)
}

// Gini coefficient of the absolute pixel values in the Gini segmap
func (m *measurement) gini() float64 {
	vals := m.maskZeroed.Abs().SortedValues(m.segGini)
	g, ok := giniCoefficient(vals)
	if !ok {
		m.flags.Raise("gini", "fewer than two pixels or zero flux")
		return Invalid
	}
	return g
}

// Gini coefficient of an ascending non-negative sample. False for fewer than two values or a zero sum.
func giniCoefficient(sorted []float64) (float64, bool) {
	n := len(sorted)
	sum := floats.Sum(sorted)
	if n <= 1 || sum == 0 {
		return 0, false
	}
	weighted := 0.0
	for i, v := range sorted {
		weighted += float64(2*(i+1)-n-1) * v
	}
	return weighted / (float64(n-1) * sum), true
}

// Log ratio of the second moment of the brightest 20% of the flux to the total second moment
func (m *measurement) m20() float64 {
	if m.segGini.Count() == 0 {
		return Invalid
	}
	img := m.maskZeroed.MaskZeroed(m.segGini.Not())
	xc, yc, _ := grid.Centroid(img)
	mu20, mu02, _, _ := grid.CentralMoments2(img, xc, yc)
	secondMoment := mu20 + mu02

	// threshold at the first value where the ascending cumulative flux reaches 80%
	sorted := append([]float64(nil), img.Data...)
	sort.Float64s(sorted)
	total := floats.Sum(sorted)
	cum := floats.CumSum(make([]float64, len(sorted)), sorted)
	idx := -1
	for i, c := range cum {
		if c/total >= 0.8 {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.flags.Raise("m20", "brightest 20%% of the flux is empty")
		return Invalid
	}
	threshold := sorted[idx]

	img20 := img.Clone()
	for i, v := range img20.Data {
		if v < threshold {
			img20.Data[i] = 0
		}
	}
	mu20b, mu02b, _, _ := grid.CentralMoments2(img20, xc, yc)
	if secondMoment == 0 {
		m.flags.Raise("m20", "second moment is zero")
		return Invalid
	}
	return math.Log10((mu20b + mu02b) / secondMoment)
}

// Mean signal to noise per pixel over the non-negative pixels of the Gini segmap
func (m *measurement) snPerPixel() float64 {
	variance := m.variance
	if variance != nil {
		for _, v := range variance.Data {
			if v < 0 {
				m.flags.Raise("sn_per_pixel", "negative variance values")
				variance = variance.Abs()
				break
			}
		}
	}

	skyVar := m.sky.Sigma * m.sky.Sigma
	ratios := make([]float64, 0, m.segGini.Count())
	for i, sel := range m.segGini.Data {
		v := m.maskZeroed.Data[i]
		if !sel || v < 0 {
			continue
		}
		pixVar := 0.0
		if variance != nil {
			pixVar = variance.Data[i]
		}
		ratios = append(ratios, v/math.Sqrt(pixVar+skyVar))
	}
	snp := stats.Mean(ratios)
	if math.IsNaN(snp) || math.IsInf(snp, 0) {
		m.flags.Raise("sn_per_pixel", "signal to noise is not finite")
		return Invalid
	}
	return snp
}
