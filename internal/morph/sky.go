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

	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/mlnoga/nightmorph/internal/stats"
)

// An axis-aligned box [X0,X1)×[Y0,Y1) in stamp coordinates
type box struct {
	X0, Y0, X1, Y1 int
}

func (b box) empty() bool { return b.X1 <= b.X0 || b.Y1 <= b.Y0 }

// Background statistics from the skybox. All values are NaN without a skybox.
type sky struct {
	Box    box
	Size   int // side length of the accepted box
	Mean   float64
	Median float64
	Sigma  float64 // population standard deviation
	Asym   float64 // mean |rot180(box) - box|
	Smooth float64 // mean |boxcar(box) - box|, set once the circular Petrosian radius is known
	pixels *grid.Image
}

// Finds the first box of background pixels, scanning rows from the border inwards.
// Halves the box size until it drops to the border size, then falls back to the corner box.
func (s *source) findSkybox() (box, int) {
	w, h := s.width(), s.height()
	border, size := s.cfg.BorderSize, s.cfg.SkyboxSize

	if w < 2*border || h < 2*border {
		s.flags.Raise("skybox", "stamp is smaller than twice the border")
		return box{}, size
	}

	for {
		for y := border; y < h-border-size; y++ {
			for x := border; x < w-border-size; x++ {
				if s.isSky(x, y, size) {
					return box{x, y, x + size, y + size}, size
				}
			}
		}
		if size <= border || size <= 1 {
			s.flags.Raise("skybox", "no background box found, forcing it to the corner")
			b := box{border, border, minInt(border+size, w), minInt(border+size, h)}
			return b, size
		}
		size /= 2
		s.flags.Note("skybox", "reducing skybox size to %d", size)
	}
}

func (s *source) isSky(x0, y0, size int) bool {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			if s.segmap.At(x, y) != 0 || s.mask.At(x, y) {
				return false
			}
		}
	}
	return true
}

// Locates the skybox and computes all background statistics except smoothness
func (s *source) measureSky() *sky {
	b, size := s.findSkybox()
	res := &sky{Box: b, Size: size, Mean: math.NaN(), Median: math.NaN(), Sigma: math.NaN(),
		Asym: math.NaN(), Smooth: math.NaN()}
	if b.empty() {
		return res
	}
	res.pixels = s.maskZeroed.Crop(b.X0, b.Y0, b.X1, b.Y1)
	vals := res.pixels.Data
	res.Mean, res.Sigma = stats.MeanStdDev(vals)
	res.Median = stats.Median(vals)

	n := len(vals)
	diff := 0.0
	for i, v := range vals {
		diff += math.Abs(vals[n-1-i] - v)
	}
	res.Asym = diff / float64(n)
	return res
}

// Computes the background smoothness with a boxcar of the given size
func (k *sky) measureSmoothness(boxcar int) {
	if k.pixels == nil {
		return
	}
	smooth := grid.UniformFilter2D(k.pixels, boxcar)
	diff := 0.0
	for i, v := range k.pixels.Data {
		diff += math.Abs(smooth.Data[i] - v)
	}
	k.Smooth = diff / float64(len(k.pixels.Data))
}

// Returns true if (x,y) lies inside the box
func (b box) contains(x, y int) bool {
	return x >= b.X0 && x < b.X1 && y >= b.Y0 && y < b.Y1
}
