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

// Gaussian kernels extend to truncate*sigma on either side
const gaussTruncate = 4.0

// Check if coordinate is within [0, size-1], and if not, reflect out of bounds coordinates back into the value range.
// Mirrors about the pixel edge, so the border pixel repeats.
func reflect(size, x int) int {
	for x < 0 || x >= size {
		if x < 0 {
			x = -x - 1
		}
		if x >= size {
			x = 2*size - x - 1
		}
	}
	return x
}

// Generates a 1D gaussian kernel for the given sigma, sampled at pixel centers.
// Kernel radius is int(4*sigma+0.5), and the kernel is normalized to a sum of 1.
func GaussianKernel1D(sigma float64) (kernel []float64) {
	radius := int(gaussTruncate*sigma + 0.5)
	kernel = make([]float64, 2*radius+1)
	kernel[radius] = 1
	sum := 1.0
	for i := 1; i <= radius; i++ {
		x := float64(i) / sigma
		k := math.Exp(-0.5 * x * x)
		kernel[radius-i], kernel[radius+i] = k, k
		sum += 2 * k
	}

	factor := 1.0 / sum
	for i := range kernel {
		kernel[i] *= factor
	}
	return kernel
}

// Convolve the image data with the given kernel along the x axis, and store the result in res.
// The kernel is anchored at index origin.
func Convolve1DX(res, data []float64, width int, kernel []float64, origin int) {
	height := len(data) / width
	for y := 0; y < height; y++ {
		row := data[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			sum := 0.0
			for i, k := range kernel {
				sum += row[reflect(width, x+i-origin)] * k
			}
			res[y*width+x] = sum
		}
	}
}

// Convolve the image data with the given kernel along the y axis, and store the result in res.
// The kernel is anchored at index origin.
func Convolve1DY(res, data []float64, width int, kernel []float64, origin int) {
	height := len(data) / width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.0
			for i, k := range kernel {
				sum += data[reflect(height, y+i-origin)*width+x] * k
			}
			res[y*width+x] = sum
		}
	}
}

// Applies a separable 2D gaussian filter with the given standard deviation.
// Returns a copy of the input for sigma <= 0.
func GaussFilter2D(img *Image, sigma float64) *Image {
	if sigma <= 0 {
		return img.Clone()
	}
	kernel := GaussianKernel1D(sigma)
	tmp := make([]float64, len(img.Data))
	res := NewImage(img.Width, img.Height)
	Convolve1DX(tmp, img.Data, img.Width, kernel, len(kernel)/2)
	Convolve1DY(res.Data, tmp, img.Width, kernel, len(kernel)/2)
	return res
}

// Applies a size×size boxcar mean filter with reflected borders. The window is centered on
// each pixel: even sizes span size+1 taps with half weight at both ends, unlike an
// origin-shifted even window which moves the result by half a pixel. Returns a copy of the
// input for size <= 1.
func UniformFilter2D(img *Image, size int) *Image {
	if size <= 1 {
		return img.Clone()
	}
	kernel := boxcarKernel1D(size)
	tmp := make([]float64, len(img.Data))
	res := NewImage(img.Width, img.Height)
	Convolve1DX(tmp, img.Data, img.Width, kernel, len(kernel)/2)
	Convolve1DY(res.Data, tmp, img.Width, kernel, len(kernel)/2)
	return res
}

func boxcarKernel1D(size int) []float64 {
	w := 1 / float64(size)
	if size%2 == 1 {
		kernel := make([]float64, size)
		for i := range kernel {
			kernel[i] = w
		}
		return kernel
	}
	kernel := make([]float64, size+1)
	for i := range kernel {
		kernel[i] = w
	}
	kernel[0], kernel[size] = w/2, w/2
	return kernel
}

// Computes the mean and the mean of squares of the 8-neighborhood of every pixel, excluding the pixel itself.
// Borders are reflected.
func NeighborhoodMoments(img *Image) (mean, meanSq *Image) {
	w, h := img.Width, img.Height
	mean, meanSq = NewImage(w, h), NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s, s2 := 0.0, 0.0
			for dy := -1; dy <= 1; dy++ {
				yy := reflect(h, y+dy)
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					v := img.Data[yy*w+reflect(w, x+dx)]
					s += v
					s2 += v * v
				}
			}
			mean.Data[y*w+x] = s / 8
			meanSq.Data[y*w+x] = s2 / 8
		}
	}
	return mean, meanSq
}
