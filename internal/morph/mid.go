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

	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/mlnoga/nightmorph/internal/optim"
	"github.com/mlnoga/nightmorph/internal/stats"
)

const (
	midInitialStep = 0.02 // quantile step of the coarse multimode scan
	midMinStep     = 1e-3
	midRelTemp     = 0.5 // basin-hopping temperature relative to the coarse optimum
)

// Pixels at or above quantile q of the source that are connected to its brightest pixel
func (m *measurement) mainClump(q float64) *grid.Mask {
	threshold := stats.Quantile(m.sortedNoBg, q)
	clump, ok := grid.ComponentAt(m.nonNegNoBg.AtLeast(threshold), m.xMax, m.yMax)
	if !ok {
		m.fail("segmap_mid", "brightest pixel (%d,%d) is below quantile %g", m.xMax, m.yMax, q)
	}
	return clump
}

// Flux at quantile q relative to the mean flux of the main clump, minus eta
func (m *measurement) midFunction(q float64) float64 {
	clump := m.mainClump(q)
	clumpMean := stats.Mean(m.nonNegNoBg.Values(clump))
	ratio := 1.0
	if clumpMean == 0 {
		m.flags.Raise("segmap_mid", "mean flux of the main clump is zero")
	} else {
		ratio = stats.Quantile(m.sortedNoBg, q) / clumpMean
	}
	return ratio - m.cfg.Eta
}

// MID segmap: the main clump at the quantile where newly added pixels reach eta times the clump
// mean, regularized with a boxcar and reduced to the component of the brightest pixel
func (m *measurement) midSegmap() *grid.Mask {
	if m.midFunction(0) > 0 {
		m.flags.Raise("segmap_mid", "target ratio not reached, using the original segmap")
		return m.maskStampNoBg.Not()
	}
	xtol := 1 / float64(len(m.sortedNoBg))
	q, err := m.ctx.RootFinder.FindRoot(m.midFunction, 0, 1, xtol)
	if err != nil {
		m.flags.Raise("segmap_mid", "root finder: %v, using the original segmap", err)
		return m.maskStampNoBg.Not()
	}

	smooth := grid.UniformFilter2D(m.mainClump(q).ToImage(), int(m.cfg.BoxcarSizeMID))
	segmap := smooth.Above(0.5)
	if !segmap.At(m.xMax, m.yMax) {
		m.flags.Raise("segmap_mid", "adding brightest pixel to segmap")
		segmap.Set(m.xMax, m.yMax, true)
	}
	res, _ := grid.ComponentAt(segmap, m.xMax, m.yMax)
	return res
}

// Sizes of the connected regions of the MID cutout at or above quantile q, largest first
func (m *measurement) clumpSizes(q float64) []int {
	threshold := stats.Quantile(m.sortedMid, q)
	labels, n := grid.Label8(m.cutoutMid.AtLeast(threshold))
	return grid.SortedComponentSizes(labels, n)
}

// Multimode statistic A2/A1 at the quantile maximizing A2²/A1. A coarse scan over quantiles
// seeds a basin-hopping refinement. Single-clump sources are flagged and yield 0.
func (m *measurement) multimode() float64 {
	invalid := m.cutoutMid.Sum(nil)
	ratio := func(q float64) float64 {
		if !(q >= 0 && q <= 1) {
			return invalid
		}
		sizes := m.clumpSizes(q)
		if len(sizes) < 2 {
			return invalid
		}
		return -float64(sizes[1]*sizes[1]) / float64(sizes[0])
	}

	step := midInitialStep
	var q0, ratioMin float64
	for {
		q0, ratioMin = 0, math.Inf(1)
		for k := 0; ; k++ {
			q := float64(k) * step
			if q >= 1 {
				break
			}
			if r := ratio(q); r < ratioMin {
				q0, ratioMin = q, r
			}
		}
		if ratioMin < 0 {
			break
		}
		if step < midMinStep {
			m.flags.Raise("multimode", "single clump")
			return 0
		}
		step /= 2
		m.flags.Note("multimode", "reduced quantile step to %g", step)
	}

	f := func(x []float64) float64 { return ratio(x[0]) }
	qs, _ := m.ctx.GlobalMinimizer.GlobalMinimize(f, []float64{q0}, optim.HopSettings{
		NIter:       m.cfg.NiterBHMID,
		Temperature: -midRelTemp * ratioMin,
		StepSize:    step,
		Interval:    float64(m.cfg.NiterBHMID) / 2,
		Seed:        m.cfg.Seed ^ uint32(m.label),
	})
	qFinal := qs[0]
	if !(qFinal >= 0 && qFinal <= 1) {
		qFinal = q0
	}
	sizes := m.clumpSizes(qFinal)
	if len(sizes) < 2 {
		sizes = m.clumpSizes(q0)
	}
	return float64(sizes[1]) / float64(sizes[0])
}

// A watershed region of the smoothed MID cutout with its peak
type midRegion struct {
	Peak grid.Point
	Flux float64
}

// Watershed regions around the local maxima of the smoothed MID cutout, brightest first
func (m *measurement) midRegions() []midRegion {
	smooth := grid.GaussFilter2D(m.cutoutMid, m.cfg.SigmaMID)
	peaks := grid.PeakLocalMax(smooth)
	markers := grid.NewLabels(smooth.Width, smooth.Height)
	for i, p := range peaks {
		markers.Data[p.Y*smooth.Width+p.X] = int32(i + 1)
	}
	labels := grid.Watershed(smooth.Scaled(-1), markers, smooth.Above(0))

	regions := make([]midRegion, len(peaks))
	for i, p := range peaks {
		regions[i].Peak = p
	}
	for i, l := range labels.Data {
		if l > 0 {
			regions[l-1].Flux += smooth.Data[i]
		}
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Flux > regions[j].Flux })
	return regions
}

// Intensity: flux of the second brightest watershed region relative to the brightest.
// Deviation: distance of the brightest peak from the MID centroid, scaled by the MID segmap size.
func (m *measurement) intensityDeviation() (intensity, deviation float64) {
	regions := m.midRegions()
	if len(regions) >= 2 {
		intensity = regions[1].Flux / regions[0].Flux
	}
	if len(regions) == 0 {
		m.flags.Raise("deviation", "no peaks")
		return intensity, Invalid
	}

	xp, yp := float64(regions[0].Peak.X)+0.5, float64(regions[0].Peak.Y)+0.5
	xc, yc, _ := grid.Centroid(m.cutoutMid)
	area := float64(m.segMid.Count())
	deviation = math.Sqrt(math.Pi/area) * math.Hypot(xp-xc, yp-yc)
	if math.IsNaN(deviation) || math.IsInf(deviation, 0) {
		m.flags.Raise("deviation", "deviation is not finite")
		return intensity, Invalid
	}
	return intensity, deviation
}
