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

package qsort

// Select kth lowest element (1-based) from an array of float64. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelectFloat64(a []float64, k int) float64 {
	left, right := 0, len(a)-1
	for left < right {
		// partition
		mid := (left + right) >> 1
		pivot := a[mid]
		l, r := left-1, right+1
		for {
			for {
				l++
				if a[l] >= pivot {
					break
				}
			}
			for {
				r--
				if a[r] <= pivot {
					break
				}
			}
			if l >= r {
				break // index in r
			}
			a[l], a[r] = a[r], a[l]
		}
		index := r

		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k = k - offset
		}
	}
	return a[left]
}

// Median of an array of float64, averaging the two middle elements for even lengths.
// Partially reorders the array. Array must not contain IEEE NaN
func QSelectMedianFloat64(a []float64) float64 {
	n := len(a)
	if n == 0 {
		panic("qsort: median of empty slice")
	}
	upper := QSelectFloat64(a, n/2+1)
	if n&1 != 0 {
		return upper
	}
	// the lower middle is the maximum of the left partition
	lower := a[0]
	for _, v := range a[:n/2] {
		if v > lower {
			lower = v
		}
	}
	return 0.5 * (lower + upper)
}
