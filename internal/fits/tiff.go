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

package fits

import (
	"image/color"
	"io"

	"github.com/mlnoga/nightmorph/internal/grid"
	"golang.org/x/image/tiff"
)

// Reads a TIFF image as 16-bit values. 8-bit data is scaled to the 16-bit range, color is converted to luminance.
func ReadTIFF(r io.Reader) (*grid.Image, error) {
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, err
	}
	b := t.Bounds()
	res := grid.NewImage(b.Dx(), b.Dy())
	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			c := color.Gray16Model.Convert(t.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			res.Set(x, y, float64(c.Y))
		}
	}
	return res, nil
}
