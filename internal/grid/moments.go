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
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Minimum determinant of a regularized covariance matrix is covarianceFloor². The floor is
// the variance of a uniform distribution over one pixel.
const covarianceFloor = 1.0 / 12

// Zeroth moment and intensity-weighted centroid. Pixel centers sit at integer coordinates.
func Centroid(img *Image) (xc, yc, m00 float64) {
	m10, m01 := 0.0, 0.0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.Data[y*img.Width+x]
			m00 += v
			m10 += v * float64(x)
			m01 += v * float64(y)
		}
	}
	return m10 / m00, m01 / m00, m00
}

// Second order central moments about (xc,yc): mu20 along x, mu02 along y, mixed mu11, and the zeroth moment.
func CentralMoments2(img *Image, xc, yc float64) (mu20, mu02, mu11, m00 float64) {
	for y := 0; y < img.Height; y++ {
		dy := float64(y) - yc
		for x := 0; x < img.Width; x++ {
			v := img.Data[y*img.Width+x]
			dx := float64(x) - xc
			m00 += v
			mu20 += v * dx * dx
			mu02 += v * dy * dy
			mu11 += v * dx * dy
		}
	}
	return mu20, mu02, mu11, m00
}

// Ellipse shape derived from a 2x2 covariance matrix
type Shape struct {
	A           float64 // semi-major axis, sqrt of the larger eigenvalue
	B           float64 // semi-minor axis
	Elongation  float64 // A/B
	Ellipticity float64 // 1-B/A
	Orientation float64 // angle of the major axis from the x axis, radians
}

// Inflates the diagonal in steps of 1/12 until the determinant reaches (1/12)². Adding the
// same amount to both diagonal entries keeps the eigenvectors, hence the orientation.
func RegularizeCovariance(cxx, cyy, cxy float64) (float64, float64, float64) {
	floor := covarianceFloor * covarianceFloor
	for cxx*cyy-cxy*cxy < floor {
		cxx += covarianceFloor
		cyy += covarianceFloor
	}
	return cxx, cyy, cxy
}

// Computes the ellipse shape of the given covariance after regularization
func ShapeFromCovariance(cxx, cyy, cxy float64) (Shape, error) {
	if math.IsNaN(cxx) || math.IsNaN(cyy) || math.IsNaN(cxy) {
		return Shape{}, errors.New("covariance is not finite")
	}
	cxx, cyy, cxy = RegularizeCovariance(cxx, cyy, cxy)

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(2, []float64{cxx, cxy, cxy, cyy}), false); !ok {
		return Shape{}, errors.New("eigen decomposition of covariance failed")
	}
	vals := es.Values(nil) // ascending
	if vals[0] <= 0 {
		return Shape{}, errors.New("covariance is not positive definite")
	}
	a, b := math.Sqrt(vals[1]), math.Sqrt(vals[0])
	return Shape{
		A:           a,
		B:           b,
		Elongation:  a / b,
		Ellipticity: 1 - b/a,
		Orientation: 0.5 * math.Atan2(2*cxy, cxx-cyy),
	}, nil
}

// Properties of a labeled region, in the coordinates of the image they were computed on
type Region struct {
	XCentroid, YCentroid float64
	XMin, YMin           int // bounding box, inclusive
	XMax, YMax           int
	XMaxVal, YMaxVal     int // brightest pixel inside the region
	Shape                Shape
	ShapeErr             error // set if the shape could not be derived
	NumPixels            int
}

// Computes centroid, bounding box, brightest pixel and second-moment shape of the pixels
// selected by sel. Unselected pixels count as zero flux. Returns false if nothing is selected.
func RegionProps(img *Image, sel *Mask) (r Region, ok bool) {
	r.XMin, r.YMin, r.XMax, r.YMax = img.Width, img.Height, -1, -1
	maxVal := math.Inf(-1)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			if !sel.Data[i] {
				continue
			}
			r.NumPixels++
			if x < r.XMin {
				r.XMin = x
			}
			if x > r.XMax {
				r.XMax = x
			}
			if y < r.YMin {
				r.YMin = y
			}
			if y > r.YMax {
				r.YMax = y
			}
			if img.Data[i] > maxVal {
				maxVal, r.XMaxVal, r.YMaxVal = img.Data[i], x, y
			}
		}
	}
	if r.NumPixels == 0 {
		return r, false
	}

	// moments on the bounding box cutout, zeroed outside the selection
	cut := img.Crop(r.XMin, r.YMin, r.XMax+1, r.YMax+1).MaskZeroed(sel.Crop(r.XMin, r.YMin, r.XMax+1, r.YMax+1).Not())
	xc, yc, _ := Centroid(cut)
	r.XCentroid, r.YCentroid = xc+float64(r.XMin), yc+float64(r.YMin)
	mu20, mu02, mu11, m00 := CentralMoments2(cut, xc, yc)
	if m00 <= 0 {
		r.ShapeErr = errors.New("region flux is not positive")
		return r, true
	}
	r.Shape, r.ShapeErr = ShapeFromCovariance(mu20/m00, mu02/m00, mu11/m00)
	return r, true
}
