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

// Package morph measures non-parametric morphology statistics of labeled sources:
// Petrosian radii, Gini-M20, concentration-asymmetry-smoothness, multimode-intensity-deviation,
// shape asymmetry and a Sersic profile fit.
package morph

import (
	"math"

	"github.com/mlnoga/nightmorph/internal/grid"
)

// Intermediate state of one measurement. Stages run in dependency order and each
// intermediate is computed once.
type measurement struct {
	*source
	res *Result
	sky *sky

	rpetroCircCentroid float64
	asymX, asymY       float64
	asymShape          grid.Shape
	rpetroCirc         float64
	rpetroEllip        float64

	segGini  *grid.Mask
	segMid   *grid.Mask
	segShape *grid.Mask

	cutoutMid *grid.Image
	sortedMid []float64

	rmax            float64
	halfLightRadius float64
}

// Measures the morphology of the source with the given label. Non-finite inputs are zeroed and
// masked, and bad pixels removed if configured, on a private copy of the input.
// Degenerate sources are flagged, not reported as errors. Errors signal invalid inputs,
// configuration or a *PreconditionError.
func New(in *Input, label int32, cfg *Config, c *Context) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clean := in.Sanitized()
	numBad := -1
	if cfg.RemoveOutliers {
		numBad = RemoveBadPixels(clean.Image, cfg.NSigmaOutlier)
	}
	return measure(clean, label, numBad, cfg, c)
}

// Measures one source on sanitized input. Recovers precondition failures into errors.
func measure(in *Input, label int32, numBad int, cfg *Config, c *Context) (res *Result, err error) {
	log := c.Log.With().Int32("label", label).Logger()
	flags := newFlags(log)

	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*PreconditionError)
			if !ok {
				panic(r)
			}
			log.Error().Str("stage", pe.Stage).Msg(pe.Msg)
			res, err = nil, pe
		}
	}()

	src, err := newSource(in, label, cfg, c, flags)
	if err != nil {
		return nil, err
	}
	m := &measurement{source: src, res: &Result{Label: label, NumBadPixels: numBad}}
	m.run()
	m.finish()
	log.Debug().Bool("flag", m.res.Flag).Bool("flag_sersic", m.res.FlagSersic).Msg("measured")
	return m.res, nil
}

func (m *measurement) run() {
	r := m.res
	m.sky = m.measureSky()

	// centers and radii everything else depends on
	m.rpetroCircCentroid = m.petrosianCirc(m.xc, m.yc)
	m.asymX, m.asymY = m.asymmetryCenter(casAsymmetry, m.maskZeroed, m.xc, m.yc)
	ix, iy := int(m.asymX), int(m.asymY)
	if !m.maskZeroed.Contains(ix, iy) || m.maskZeroed.At(ix, iy) == 0 {
		m.flags.Raise("asymmetry", "asymmetry center is masked")
	}
	m.asymShape = m.asymmetryShape()
	m.rpetroCirc = m.petrosianCirc(m.asymX, m.asymY)
	m.sky.measureSmoothness(int(m.cfg.PetroFractionCAS * m.rpetroCirc))
	m.rpetroEllip = m.petrosianEllip(m.asymX, m.asymY, m.asymShape.Elongation, m.asymShape.Orientation)
	r.RpetroCirc, r.RpetroEllip = m.rpetroCirc, m.rpetroEllip

	// Gini-M20
	m.segGini = m.giniSegmap()
	r.Gini = m.gini()
	r.M20 = m.m20()
	r.SNPerPixel = m.snPerPixel()

	// CAS
	r.Asymmetry = m.asymmetryAt(casAsymmetry, m.maskZeroed, m.asymX, m.asymY)
	r.R20, r.R80 = m.casRadius(0.2), m.casRadius(0.8)
	r.Concentration = concentration(r.R20, r.R80)
	r.Smoothness = m.smoothness()

	// MID
	m.segMid = m.midSegmap()
	m.cutoutMid = m.nonNegNoBg.MaskZeroed(m.segMid.Not())
	m.sortedMid = m.cutoutMid.SortedValues(m.maskStampNoBg.Not())
	r.Multimode = m.multimode()
	r.Intensity, r.Deviation = m.intensityDeviation()

	// shape asymmetry
	m.segShape = m.shapeSegmap()
	m.rmax = m.measureRmax()
	m.halfLightRadius = m.measureHalfLightRadius()
	r.Rmax, r.HalfLightRadius = m.rmax, m.halfLightRadius
	ox, oy := m.asymmetryCenter(outerAsymmetry, m.maskZeroed, m.asymX, m.asymY)
	r.OuterAsymmetry = m.asymmetryAt(outerAsymmetry, m.maskZeroed, ox, oy)
	shapeImg := m.segShape.ToImage()
	sx, sy := m.asymmetryCenter(shapeAsymmetry, shapeImg, m.asymX, m.asymY)
	r.ShapeAsymmetry = m.asymmetryAt(shapeAsymmetry, shapeImg, sx, sy)

	r.SersicIndex = m.fitSersic()
	m.checkSegmaps()
}

// Copies positions, shape and background into the result, converted to full image coordinates
func (m *measurement) finish() {
	r := m.res
	r.XCCentroid, r.YCCentroid = m.props.XCentroid, m.props.YCentroid
	r.XCAsymmetry, r.YCAsymmetry = m.asymX+float64(m.x0), m.asymY+float64(m.y0)
	r.ElongationAsymmetry = m.asymShape.Elongation
	r.OrientationAsymmetry = m.asymShape.Orientation
	r.EllipticityAsymmetry = m.asymShape.Ellipticity
	r.SkyMean, r.SkyMedian, r.SkySigma = m.sky.Mean, m.sky.Median, m.sky.Sigma
	r.Flag, r.FlagSersic = m.flags.General, m.flags.Sersic
	r.FlagReasons = m.flags.Reasons
	r.Segmaps = &Segmaps{
		X0: m.x0, Y0: m.y0,
		Stamp: m.maskZeroed,
		Gini:  m.segGini, MID: m.segMid, Shape: m.segShape,
	}
}

// Shape of the non-negative source pixels from second moments about the asymmetry center.
// The covariance is regularized for thin sources.
func (m *measurement) asymmetryShape() grid.Shape {
	mu20, mu02, mu11, m00 := grid.CentralMoments2(m.nonNegNoBg, m.asymX, m.asymY)
	if !(m00 > 0) {
		m.fail("asymmetry", "source flux %g is not positive", m00)
	}
	shape, err := grid.ShapeFromCovariance(mu20/m00, mu02/m00, mu11/m00)
	if err != nil {
		m.fail("asymmetry", "%v", err)
	}
	return shape
}

// Compares the pixel counts of the three segmaps and raises the flag if they overlap too little
func (m *measurement) checkSegmaps() {
	if !segmapsAgree(m.segGini, m.segMid, m.segShape, m.cfg.SegmapOverlapRatio) {
		m.flags.Raise("segmaps", "Gini, MID and shape segmaps overlap too little")
	}
}

// Reports whether the common area of the three segmaps is at least ratio times the largest one
func segmapsAgree(a, b, c *grid.Mask, ratio float64) bool {
	areaMax := math.Max(float64(a.Count()), math.Max(float64(b.Count()), float64(c.Count())))
	if areaMax == 0 {
		return false
	}
	overlap := float64(a.And(b).And(c).Count())
	return overlap/areaMax >= ratio
}
