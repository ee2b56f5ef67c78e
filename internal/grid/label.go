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
	"sort"
)

// Offsets of the 8-neighborhood
var neighbors8 = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

// Labels the 8-connected components of the set pixels of the mask with 1..n, numbered in
// row-major order of their first pixel. Returns the label map and n.
func Label8(m *Mask) (labels *Labels, n int) {
	w, h := m.Width, m.Height
	labels = NewLabels(w, h)
	queue := make([]int, 0, 64)
	for start, set := range m.Data {
		if !set || labels.Data[start] != 0 {
			continue
		}
		n++
		labels.Data[start] = int32(n)
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			px, py := p%w, p/w
			for _, d := range neighbors8 {
				x, y := px+d[0], py+d[1]
				if x < 0 || x >= w || y < 0 || y >= h {
					continue
				}
				q := y*w + x
				if m.Data[q] && labels.Data[q] == 0 {
					labels.Data[q] = int32(n)
					queue = append(queue, q)
				}
			}
		}
	}
	return labels, n
}

// Returns the pixel counts of labels 1..n, indexed by label-1
func ComponentSizes(labels *Labels, n int) []int {
	sizes := make([]int, n)
	for _, l := range labels.Data {
		if l > 0 {
			sizes[l-1]++
		}
	}
	return sizes
}

// Returns component sizes sorted in descending order
func SortedComponentSizes(labels *Labels, n int) []int {
	sizes := ComponentSizes(labels, n)
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}

// Returns the 8-connected component of the mask that contains pixel (x,y), and whether (x,y) was set at all.
func ComponentAt(m *Mask, x, y int) (*Mask, bool) {
	labels, _ := Label8(m)
	l := labels.At(x, y)
	if l == 0 {
		return NewMask(m.Width, m.Height), false
	}
	return labels.Equal(l), true
}
