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
	"bufio"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/nightmorph/internal/grid"
)

const overlayAlpha = 0.35 // opacity of each segmap tint

// Tint hues of successive overlay masks, in degrees
var overlayHues = []float64{30, 150, 270, 90, 210, 330}

// Writes a segmap overlay to the PNG file with the given name
func WriteOverlayPNGToFile(fileName string, stamp *grid.Image, masks ...*grid.Mask) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteOverlayPNG(writer, stamp, masks...); err != nil {
		return err
	}
	return writer.Flush()
}

// Renders the stamp with an asinh stretch in grayscale and tints the pixels of each mask
// with its own hue in HCL space
func WriteOverlayPNG(w io.Writer, stamp *grid.Image, masks ...*grid.Mask) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range stamp.Data {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 1 / math.Asinh(10)
	}

	tints := make([]colorful.Color, len(masks))
	for i := range masks {
		tints[i] = colorful.Hcl(overlayHues[i%len(overlayHues)], 0.6, 0.7).Clamped()
	}

	img := image.NewRGBA(image.Rect(0, 0, stamp.Width, stamp.Height))
	for y := 0; y < stamp.Height; y++ {
		for x := 0; x < stamp.Width; x++ {
			l := 0.0
			if scale != 0 {
				l = math.Asinh(10*(stamp.At(x, y)-lo)/(hi-lo)) * scale
			}
			col := colorful.Color{R: l, G: l, B: l}
			for i, m := range masks {
				if m != nil && m.At(x, y) {
					col = col.BlendHcl(tints[i], overlayAlpha).Clamped()
				}
			}
			r, g, b := col.RGB255()
			img.Pix[img.PixOffset(x, y)+0] = r
			img.Pix[img.PixOffset(x, y)+1] = g
			img.Pix[img.PixOffset(x, y)+2] = b
			img.Pix[img.PixOffset(x, y)+3] = 255
		}
	}
	return png.Encode(w, img)
}
