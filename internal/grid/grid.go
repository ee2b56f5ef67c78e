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
	"sort"
)

// A dense 2D raster of float64 values, stored row-major. X is the column, Y the row.
type Image struct {
	Width  int
	Height int
	Data   []float64
}

// Creates a zero-valued image of the given dimensions
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Data: make([]float64, width*height)}
}

// Wraps the given data. Data is not copied
func NewImageFromData(width, height int, data []float64) *Image {
	if len(data) != width*height {
		panic("grid: data length does not match dimensions")
	}
	return &Image{Width: width, Height: height, Data: data}
}

func (img *Image) At(x, y int) float64     { return img.Data[y*img.Width+x] }
func (img *Image) Set(x, y int, v float64) { img.Data[y*img.Width+x] = v }

// Returns true if (x,y) is a valid pixel index
func (img *Image) Contains(x, y int) bool {
	return x >= 0 && x < img.Width && y >= 0 && y < img.Height
}

// Returns a deep copy
func (img *Image) Clone() *Image {
	return &Image{Width: img.Width, Height: img.Height, Data: append([]float64(nil), img.Data...)}
}

// Copies the rectangle [x0,x1)×[y0,y1) into a new image
func (img *Image) Crop(x0, y0, x1, y1 int) *Image {
	res := NewImage(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		copy(res.Data[(y-y0)*res.Width:(y-y0+1)*res.Width], img.Data[y*img.Width+x0:y*img.Width+x1])
	}
	return res
}

// Returns a new image with the absolute values
func (img *Image) Abs() *Image {
	res := NewImage(img.Width, img.Height)
	for i, v := range img.Data {
		res.Data[i] = math.Abs(v)
	}
	return res
}

// Returns a new image with all values multiplied by factor
func (img *Image) Scaled(factor float64) *Image {
	res := NewImage(img.Width, img.Height)
	for i, v := range img.Data {
		res.Data[i] = v * factor
	}
	return res
}

// Returns a copy where pixels with mask set are replaced by zero
func (img *Image) MaskZeroed(m *Mask) *Image {
	res := img.Clone()
	for i, excluded := range m.Data {
		if excluded {
			res.Data[i] = 0
		}
	}
	return res
}

// Returns a copy with negative values clamped to zero
func (img *Image) NonNegative() *Image {
	res := img.Clone()
	for i, v := range res.Data {
		if v < 0 {
			res.Data[i] = 0
		}
	}
	return res
}

// Returns the position of the first maximum in row-major order
func (img *Image) ArgMax() (x, y int) {
	best, bestV := 0, math.Inf(-1)
	for i, v := range img.Data {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best % img.Width, best / img.Width
}

// Sum of all pixel values where the selection is set. A nil selection selects everything
func (img *Image) Sum(sel *Mask) float64 {
	sum := 0.0
	for i, v := range img.Data {
		if sel == nil || sel.Data[i] {
			sum += v
		}
	}
	return sum
}

// Values where the selection is set, in row-major order
func (img *Image) Values(sel *Mask) []float64 {
	res := make([]float64, 0, len(img.Data))
	for i, v := range img.Data {
		if sel == nil || sel.Data[i] {
			res = append(res, v)
		}
	}
	return res
}

// Values where the selection is set, sorted ascending
func (img *Image) SortedValues(sel *Mask) []float64 {
	res := img.Values(sel)
	sort.Float64s(res)
	return res
}

// Returns a binary mask of pixels with values >= threshold
func (img *Image) AtLeast(threshold float64) *Mask {
	m := NewMask(img.Width, img.Height)
	for i, v := range img.Data {
		m.Data[i] = v >= threshold
	}
	return m
}

// Returns a binary mask of pixels with values > threshold
func (img *Image) Above(threshold float64) *Mask {
	m := NewMask(img.Width, img.Height)
	for i, v := range img.Data {
		m.Data[i] = v > threshold
	}
	return m
}

// A boolean 2D raster of the same layout as an Image
type Mask struct {
	Width  int
	Height int
	Data   []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Data: make([]bool, width*height)}
}

func (m *Mask) At(x, y int) bool     { return m.Data[y*m.Width+x] }
func (m *Mask) Set(x, y int, v bool) { m.Data[y*m.Width+x] = v }

func (m *Mask) Clone() *Mask {
	return &Mask{Width: m.Width, Height: m.Height, Data: append([]bool(nil), m.Data...)}
}

// Copies the rectangle [x0,x1)×[y0,y1) into a new mask
func (m *Mask) Crop(x0, y0, x1, y1 int) *Mask {
	res := NewMask(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		copy(res.Data[(y-y0)*res.Width:(y-y0+1)*res.Width], m.Data[y*m.Width+x0:y*m.Width+x1])
	}
	return res
}

// Number of set pixels
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

func (m *Mask) Not() *Mask {
	res := NewMask(m.Width, m.Height)
	for i, v := range m.Data {
		res.Data[i] = !v
	}
	return res
}

func (m *Mask) And(o *Mask) *Mask {
	res := NewMask(m.Width, m.Height)
	for i, v := range m.Data {
		res.Data[i] = v && o.Data[i]
	}
	return res
}

func (m *Mask) Or(o *Mask) *Mask {
	res := NewMask(m.Width, m.Height)
	for i, v := range m.Data {
		res.Data[i] = v || o.Data[i]
	}
	return res
}

// Converts to a 0/1 valued image
func (m *Mask) ToImage() *Image {
	res := NewImage(m.Width, m.Height)
	for i, v := range m.Data {
		if v {
			res.Data[i] = 1
		}
	}
	return res
}

// Integer labels, 0 is background
type Labels struct {
	Width  int
	Height int
	Data   []int32
}

func NewLabels(width, height int) *Labels {
	return &Labels{Width: width, Height: height, Data: make([]int32, width*height)}
}

func (l *Labels) At(x, y int) int32     { return l.Data[y*l.Width+x] }
func (l *Labels) Set(x, y int, v int32) { l.Data[y*l.Width+x] = v }

// Copies the rectangle [x0,x1)×[y0,y1) into a new label map
func (l *Labels) Crop(x0, y0, x1, y1 int) *Labels {
	res := NewLabels(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		copy(res.Data[(y-y0)*res.Width:(y-y0+1)*res.Width], l.Data[y*l.Width+x0:y*l.Width+x1])
	}
	return res
}

// Returns the distinct positive labels in ascending order
func (l *Labels) Unique() []int32 {
	seen := make(map[int32]bool)
	for _, v := range l.Data {
		if v > 0 {
			seen[v] = true
		}
	}
	res := make([]int32, 0, len(seen))
	for v := range seen {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Returns a mask of pixels carrying the given label
func (l *Labels) Equal(label int32) *Mask {
	m := NewMask(l.Width, l.Height)
	for i, v := range l.Data {
		m.Data[i] = v == label
	}
	return m
}
