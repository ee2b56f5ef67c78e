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
	"container/heap"
	"math"
	"sort"
)

// A pixel position with its value
type Point struct {
	X, Y  int
	Value float64
}

// Finds strict local maxima candidates: interior pixels equal to the maximum of their 3×3
// neighborhood and above the global minimum. Returns them sorted by value, brightest first.
// Constant images have no peaks.
func PeakLocalMax(img *Image) []Point {
	w, h := img.Width, img.Height
	min := math.Inf(1)
	for _, v := range img.Data {
		if v < min {
			min = v
		}
	}

	peaks := []Point{}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := img.Data[y*w+x]
			if v <= min {
				continue
			}
			isMax := true
			for _, d := range neighbors8 {
				if img.Data[(y+d[1])*w+x+d[0]] > v {
					isMax = false
					break
				}
			}
			if isMax {
				peaks = append(peaks, Point{x, y, v})
			}
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Value > peaks[j].Value })
	return peaks
}

// Queue entry for the watershed flood
type floodItem struct {
	value float64
	age   int
	index int
}

type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].value != q[j].value {
		return q[i].value < q[j].value
	}
	return q[i].age < q[j].age
}
func (q floodQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x interface{}) { *q = append(*q, x.(floodItem)) }
func (q *floodQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// Marker-based watershed of the given surface with 8-connectivity. Basins grow from the
// non-zero markers in order of increasing surface value, ties resolved first-come first-served.
// Pixels outside the mask stay 0. A nil mask allows all pixels.
func Watershed(surface *Image, markers *Labels, mask *Mask) *Labels {
	w, h := surface.Width, surface.Height
	res := NewLabels(w, h)
	q := &floodQueue{}
	age := 0
	for i, l := range markers.Data {
		if l != 0 && (mask == nil || mask.Data[i]) {
			res.Data[i] = l
			heap.Push(q, floodItem{surface.Data[i], age, i})
			age++
		}
	}

	for q.Len() > 0 {
		it := heap.Pop(q).(floodItem)
		px, py := it.index%w, it.index/w
		for _, d := range neighbors8 {
			x, y := px+d[0], py+d[1]
			if x < 0 || x >= w || y < 0 || y >= h {
				continue
			}
			n := y*w + x
			if res.Data[n] != 0 || (mask != nil && !mask.Data[n]) {
				continue
			}
			res.Data[n] = res.Data[it.index]
			heap.Push(q, floodItem{surface.Data[n], age, n})
			age++
		}
	}
	return res
}
