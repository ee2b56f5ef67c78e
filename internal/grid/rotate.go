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

package grid

import (
	"math"
)

// Bilinear interpolation at (x,y). Pixels outside the image count as zero.
func (img *Image) Bilinear(x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	at := func(x, y int) float64 {
		if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
			return 0
		}
		return img.Data[y*img.Width+x]
	}
	return (1-fy)*((1-fx)*at(ix, iy)+fx*at(ix+1, iy)) + fy*((1-fx)*at(ix, iy+1)+fx*at(ix+1, iy+1))
}

// Value of pixel (x,y) after a 180° rotation of the image about (xc,yc), bilinearly interpolated
func (img *Image) Rotated180At(x, y int, xc, yc float64) float64 {
	return img.Bilinear(2*xc-float64(x), 2*yc-float64(y))
}

// Rotates the image by 180° about (xc,yc), with bilinear interpolation and zero fill
func (img *Image) Rotate180(xc, yc float64) *Image {
	res := NewImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			res.Data[y*img.Width+x] = img.Rotated180At(x, y, xc, yc)
		}
	}
	return res
}
