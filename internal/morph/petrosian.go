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
	"github.com/mlnoga/nightmorph/internal/optim"
)

const (
	scanPoints = 100  // coarse scan resolution for radius searches
	radiusXTol = 1e-6 // absolute tolerance of radius roots
)

// Mean flux over the full geometric area of the aperture, masked and off-stamp pixels included as zero
func apertureMean(ap aperture.Aperture, img *grid.Image) float64 {
	return aperture.Sum(ap, img) / ap.Area()
}

// Ratio of annulus to aperture mean surface brightness minus eta. The root is the Petrosian radius.
// A zero aperture mean raises the flag and counts as ratio 1.
func (s *source) petrosianRatio(stage string, annulus, inner aperture.Aperture) float64 {
	annMean := math.Abs(apertureMean(annulus, s.maskZeroed))
	apMean := math.Abs(apertureMean(inner, s.maskZeroed))
	ratio := 1.0
	if apMean == 0 {
		s.flags.Raise(stage, "mean flux within the aperture is zero")
	} else {
		ratio = annMean / apMean
	}
	return ratio - s.cfg.Eta
}

// Petrosian radius for concentric circles about (xc,yc)
func (s *source) petrosianCirc(xc, yc float64) float64 {
	w := s.cfg.AnnulusWidth
	f := func(r float64) float64 {
		return s.petrosianRatio("rpetro_circ",
			aperture.CircularAnnulus{X: xc, Y: yc, RIn: r - 0.5*w, ROut: r + 0.5*w},
			aperture.Circle{X: xc, Y: yc, R: r})
	}
	return s.solvePetrosian("rpetro_circ", f)
}

// Petrosian semi-major axis for concentric ellipses about (xc,yc) with fixed elongation and orientation
func (s *source) petrosianEllip(xc, yc, elongation, theta float64) float64 {
	w := s.cfg.AnnulusWidth
	f := func(a float64) float64 {
		aOut := a + 0.5*w
		return s.petrosianRatio("rpetro_ellip",
			aperture.EllipticalAnnulus{X: xc, Y: yc, AIn: a - 0.5*w, AOut: aOut, BOut: aOut / elongation, Theta: theta},
			aperture.Ellipse{X: xc, Y: yc, A: a, B: a / elongation, Theta: theta})
	}
	return s.solvePetrosian("rpetro_ellip", f)
}

// Scans from the annulus width to the stamp diagonal for the first sign change of f from
// positive to negative, then refines the root with the configured root finder.
func (s *source) solvePetrosian(stage string, f func(float64) float64) float64 {
	lo, hi := s.cfg.AnnulusWidth, s.diagonal
	if !(lo < hi) {
		s.flags.Raise(stage, "annulus width %g exceeds the stamp diagonal %g", lo, hi)
		return hi
	}
	b := optim.ScanBracket(f, lo, hi, scanPoints, +1)
	if b.Premature > 0 {
		s.flags.Raise(stage, "ratio below eta before the lower bracket was found")
	}
	if b.Exact {
		s.flags.Note(stage, "found root on the scan grid")
		return b.Lo
	}
	if !b.Found {
		s.flags.Raise(stage, "Petrosian radius larger than the stamp")
		return hi
	}
	r, err := s.ctx.RootFinder.FindRoot(f, b.Lo, b.Hi, radiusXTol)
	if err != nil {
		s.flags.Raise(stage, "root finder: %v", err)
	}
	return r
}

// Radius of the circle about the pixel containing (xc,yc) that holds the given fraction of the
// flux within rTotal. Returns NaN and raises the flag if that flux is not positive.
func (s *source) radiusAtFraction(stage string, img *grid.Image, xc, yc, rTotal, fraction float64) float64 {
	cx, cy := math.Floor(xc)+0.5, math.Floor(yc)+0.5
	total := aperture.Sum(aperture.Circle{X: cx, Y: cy, R: rTotal}, img)
	if !(total > 0) {
		s.flags.Raise(stage, "total flux sum is not positive")
		return math.NaN()
	}

	f := func(r float64) float64 {
		return math.Abs(aperture.Sum(aperture.Circle{X: cx, Y: cy, R: r}, img))/total - fraction
	}
	rInner := math.Min(0.5, 0.2*rTotal)
	b := optim.ScanBracket(f, rInner, rTotal, scanPoints, -1)
	if b.Premature > 0 {
		s.flags.Raise(stage, "fraction above target before the lower bracket was found")
	}
	if b.Exact {
		s.flags.Note(stage, "found root on the scan grid")
		return b.Lo
	}
	if !b.Found {
		s.flags.Raise(stage, "fraction %g not reached within radius %g", fraction, rTotal)
		return rTotal
	}
	r, err := s.ctx.RootFinder.FindRoot(f, b.Lo, b.Hi, radiusXTol)
	if err != nil {
		s.flags.Raise(stage, "root finder: %v", err)
	}
	return r
}
