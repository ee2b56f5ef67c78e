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
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/nightmorph/internal/grid"
)

// Inputs of a morphology measurement. Mask and Variance are optional.
type Input struct {
	Image    *grid.Image  // background-subtracted flux
	Segmap   *grid.Labels // 0 is background, positive values identify sources
	Mask     *grid.Mask   // true excludes a pixel
	Variance *grid.Image  // per-pixel noise variance
}

// Checks that all planes are present where required and share one shape
func (in *Input) Validate() error {
	if in == nil || in.Image == nil || in.Segmap == nil {
		return errors.New("image and segmentation map are required")
	}
	w, h := in.Image.Width, in.Image.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	if in.Segmap.Width != w || in.Segmap.Height != h {
		return fmt.Errorf("segmap size %dx%d does not match image size %dx%d", in.Segmap.Width, in.Segmap.Height, w, h)
	}
	if in.Mask != nil && (in.Mask.Width != w || in.Mask.Height != h) {
		return fmt.Errorf("mask size %dx%d does not match image size %dx%d", in.Mask.Width, in.Mask.Height, w, h)
	}
	if in.Variance != nil && (in.Variance.Width != w || in.Variance.Height != h) {
		return fmt.Errorf("variance size %dx%d does not match image size %dx%d", in.Variance.Width, in.Variance.Height, w, h)
	}
	for _, l := range in.Segmap.Data {
		if l < 0 {
			return fmt.Errorf("negative label %d in segmap", l)
		}
	}
	return nil
}

// Returns a copy in which non-finite image or variance entries are zeroed and added to the mask.
// The mask of the copy is never nil. The receiver is left unchanged.
func (in *Input) Sanitized() *Input {
	res := &Input{Image: in.Image.Clone(), Segmap: in.Segmap}
	if in.Mask != nil {
		res.Mask = in.Mask.Clone()
	} else {
		res.Mask = grid.NewMask(in.Image.Width, in.Image.Height)
	}
	if in.Variance != nil {
		res.Variance = in.Variance.Clone()
	}
	for i, v := range res.Image.Data {
		invalid := math.IsNaN(v) || math.IsInf(v, 0)
		if res.Variance != nil {
			vv := res.Variance.Data[i]
			invalid = invalid || math.IsNaN(vv) || math.IsInf(vv, 0)
		}
		if invalid {
			res.Image.Data[i] = 0
			if res.Variance != nil {
				res.Variance.Data[i] = 0
			}
			res.Mask.Data[i] = true
		}
	}
	return res
}

// Zeroes pixels deviating from the mean of their 8-neighborhood by more than nSigma local standard
// deviations, in place. Returns the number of pixels zeroed.
func RemoveBadPixels(img *grid.Image, nSigma float64) int {
	mean, meanSq := grid.NeighborhoodMoments(img)
	bad := 0
	for i, v := range img.Data {
		m := mean.Data[i]
		std := math.Sqrt(meanSq.Data[i] - m*m)
		if math.Abs(v-m) > nSigma*std {
			img.Data[i] = 0
			bad++
		}
	}
	return bad
}

// Working data of one source, in stamp-local coordinates unless noted otherwise
type source struct {
	cfg   *Config
	ctx   *Context
	label int32
	flags *Flags

	props          grid.Region // region properties in full image coordinates
	x0, y0, x1, y1 int         // stamp rectangle in the full image
	xc, yc         float64     // centroid
	xMax, yMax     int         // brightest pixel of the source

	segmap        *grid.Labels
	mask          *grid.Mask  // explicit mask
	variance      *grid.Image // nil if no variance was given
	maskStamp     *grid.Mask  // other sources and explicit mask
	maskStampNoBg *grid.Mask  // additionally the background
	maskStampImg  *grid.Image // maskStamp as 0/1 for rotation
	maskZeroed    *grid.Image // stamp with maskStamp pixels zeroed
	nonNegNoBg    *grid.Image // stamp with maskStampNoBg pixels and negative values zeroed
	sortedNoBg    []float64   // sorted nonNegNoBg values not in maskStampNoBg
	diagonal      float64
}

// Cuts out the stamp of the given label and derives its masks. The input must be sanitized.
func newSource(in *Input, label int32, cfg *Config, ctx *Context, flags *Flags) (*source, error) {
	sel := in.Segmap.Equal(label).And(in.Mask.Not())
	props, ok := grid.RegionProps(in.Image, sel)
	if !ok {
		return nil, fmt.Errorf("label %d has no unmasked pixels", label)
	}
	if math.IsNaN(props.XCentroid) || math.IsNaN(props.YCentroid) ||
		math.IsInf(props.XCentroid, 0) || math.IsInf(props.YCentroid, 0) {
		return nil, fmt.Errorf("label %d has no well-defined centroid, total flux must be non-zero", label)
	}

	// square stamp about the centroid, clipped to the image
	xc, yc := int(props.XCentroid), int(props.YCentroid)
	dist := maxInt(maxInt(props.XMax-xc, xc-props.XMin), maxInt(props.YMax-yc, yc-props.YMin))
	dist = int(math.Round(float64(dist) * cfg.CutoutExtent))
	w, h := in.Image.Width, in.Image.Height
	s := &source{
		cfg: cfg, ctx: ctx, label: label, flags: flags, props: props,
		x0: maxInt(0, xc-dist), y0: maxInt(0, yc-dist),
		x1: minInt(w, xc+dist+1), y1: minInt(h, yc+dist+1),
	}
	s.xc, s.yc = props.XCentroid-float64(s.x0), props.YCentroid-float64(s.y0)
	s.xMax, s.yMax = props.XMaxVal-s.x0, props.YMaxVal-s.y0

	s.segmap = in.Segmap.Crop(s.x0, s.y0, s.x1, s.y1)
	s.mask = in.Mask.Crop(s.x0, s.y0, s.x1, s.y1)
	if in.Variance != nil {
		s.variance = in.Variance.Crop(s.x0, s.y0, s.x1, s.y1)
	}
	s.maskStamp = grid.NewMask(s.segmap.Width, s.segmap.Height)
	s.maskStampNoBg = grid.NewMask(s.segmap.Width, s.segmap.Height)
	for i, l := range s.segmap.Data {
		s.maskStamp.Data[i] = (l != 0 && l != label) || s.mask.Data[i]
		s.maskStampNoBg.Data[i] = l != label || s.mask.Data[i]
	}
	s.maskStampImg = s.maskStamp.ToImage()
	s.maskZeroed = in.Image.Crop(s.x0, s.y0, s.x1, s.y1).MaskZeroed(s.maskStamp)
	s.nonNegNoBg = s.maskZeroed.MaskZeroed(s.maskStampNoBg).NonNegative()
	s.sortedNoBg = s.nonNegNoBg.SortedValues(s.maskStampNoBg.Not())
	s.diagonal = math.Hypot(float64(s.segmap.Width), float64(s.segmap.Height))

	if s.maskZeroed.At(int(s.xc), int(s.yc)) == 0 {
		flags.Raise("stamp", "centroid is masked")
	}
	return s, nil
}

func (s *source) width() int  { return s.maskZeroed.Width }
func (s *source) height() int { return s.maskZeroed.Height }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
