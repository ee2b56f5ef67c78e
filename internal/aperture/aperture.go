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

// Package aperture implements aperture photometry with exact pixel overlap areas.
// Pixel (x,y) covers [x-0.5,x+0.5]×[y-0.5,y+0.5].
package aperture

import (
	"math"

	"github.com/mlnoga/nightmorph/internal/grid"
)

// Overlap of an aperture with one pixel
type Weight struct {
	Index int     // row-major pixel index
	W     float64 // overlap area, 0..1
}

// An aperture that can be placed on an image
type Aperture interface {
	// Overlap fractions of all pixels touched by the aperture, within an image of the given size
	Weights(width, height int) []Weight
	// Geometric area, including parts outside the image
	Area() float64
}

// Weighted sum of the image over the aperture
func Sum(ap Aperture, img *grid.Image) float64 {
	sum := 0.0
	for _, w := range ap.Weights(img.Width, img.Height) {
		sum += w.W * img.Data[w.Index]
	}
	return sum
}

// Weighted sum of |img| over the aperture
func AbsSum(ap Aperture, img *grid.Image) float64 {
	sum := 0.0
	for _, w := range ap.Weights(img.Width, img.Height) {
		sum += w.W * math.Abs(img.Data[w.Index])
	}
	return sum
}

// A circular aperture
type Circle struct {
	X, Y, R float64
}

func (c Circle) Area() float64 { return math.Pi * c.R * c.R }

func (c Circle) Weights(width, height int) []Weight {
	if !(c.R > 0) {
		return nil
	}
	return weights(width, height, c.X, c.Y, c.R, c.overlap)
}

// Overlap of the circle with pixel (x,y)
func (c Circle) overlap(x, y int) float64 {
	dmin, dmax := pixelDistances(float64(x)-c.X, float64(y)-c.Y)
	if dmax <= c.R {
		return 1
	}
	if dmin >= c.R {
		return 0
	}
	return circlePolygonArea(pixelCorners(float64(x)-c.X, float64(y)-c.Y), c.R)
}

// A circular annulus between RIn and ROut
type CircularAnnulus struct {
	X, Y, RIn, ROut float64
}

func (a CircularAnnulus) Area() float64 { return math.Pi * (a.ROut*a.ROut - a.RIn*a.RIn) }

func (a CircularAnnulus) Weights(width, height int) []Weight {
	if !(a.ROut > 0) || !(a.RIn < a.ROut) {
		return nil
	}
	outer, inner := Circle{a.X, a.Y, a.ROut}, Circle{a.X, a.Y, a.RIn}
	return weights(width, height, a.X, a.Y, a.ROut, func(x, y int) float64 {
		w := outer.overlap(x, y)
		if w > 0 && a.RIn > 0 {
			w -= inner.overlap(x, y)
		}
		return w
	})
}

// An elliptical aperture with semi-major axis A along angle Theta (radians from the x axis) and semi-minor axis B
type Ellipse struct {
	X, Y, A, B, Theta float64
}

func (e Ellipse) Area() float64 { return math.Pi * e.A * e.B }

func (e Ellipse) Weights(width, height int) []Weight {
	if !(e.A > 0) || !(e.B > 0) {
		return nil
	}
	return weights(width, height, e.X, e.Y, math.Max(e.A, e.B), e.overlap)
}

// Overlap of the ellipse with pixel (x,y). The pixel is mapped into the frame where the ellipse is the unit circle.
func (e Ellipse) overlap(x, y int) float64 {
	dx, dy := float64(x)-e.X, float64(y)-e.Y
	if dmin, _ := pixelDistances(dx, dy); dmin >= math.Max(e.A, e.B) {
		return 0
	}
	sin, cos := math.Sincos(e.Theta)
	corners := pixelCorners(dx, dy)
	inside := 0
	for i := range corners {
		u := corners[i][0]*cos + corners[i][1]*sin
		v := -corners[i][0]*sin + corners[i][1]*cos
		corners[i] = [2]float64{u / e.A, v / e.B}
		if corners[i][0]*corners[i][0]+corners[i][1]*corners[i][1] <= 1 {
			inside++
		}
	}
	if inside == 4 {
		return 1
	}
	return circlePolygonArea(corners, 1) * e.A * e.B
}

// An elliptical annulus. The inner semi-minor axis is BOut*AIn/AOut.
type EllipticalAnnulus struct {
	X, Y, AIn, AOut, BOut, Theta float64
}

func (a EllipticalAnnulus) bIn() float64 { return a.BOut * a.AIn / a.AOut }

func (a EllipticalAnnulus) Area() float64 {
	return math.Pi * (a.AOut*a.BOut - a.AIn*a.bIn())
}

func (a EllipticalAnnulus) Weights(width, height int) []Weight {
	if !(a.AOut > 0) || !(a.BOut > 0) || !(a.AIn < a.AOut) {
		return nil
	}
	outer := Ellipse{a.X, a.Y, a.AOut, a.BOut, a.Theta}
	inner := Ellipse{a.X, a.Y, a.AIn, a.bIn(), a.Theta}
	return weights(width, height, a.X, a.Y, math.Max(a.AOut, a.BOut), func(x, y int) float64 {
		w := outer.overlap(x, y)
		if w > 0 && a.AIn > 0 {
			w -= inner.overlap(x, y)
		}
		return w
	})
}

// Rasterizes a circular annulus by pixel center: set where RIn <= distance < ROut.
// Pixel centers sit at integer coordinates.
func CenterMask(a CircularAnnulus, width, height int) *grid.Mask {
	m := grid.NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d := math.Hypot(float64(x)-a.X, float64(y)-a.Y)
			m.Data[y*width+x] = d < a.ROut && !(d < a.RIn)
		}
	}
	return m
}

// Evaluates overlap for all pixels in the bounding box of a disk of radius r about (cx,cy), clipped to the image
func weights(width, height int, cx, cy, r float64, overlap func(x, y int) float64) []Weight {
	x0, x1 := clamp(int(math.Floor(cx-r)), width), clamp(int(math.Ceil(cx+r))+1, width)
	y0, y1 := clamp(int(math.Floor(cy-r)), height), clamp(int(math.Ceil(cy+r))+1, height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	res := make([]Weight, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if w := overlap(x, y); w > 0 {
				res = append(res, Weight{y*width + x, w})
			}
		}
	}
	return res
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v > size {
		return size
	}
	return v
}

// Corners of the unit pixel centered at (dx,dy), counter-clockwise
func pixelCorners(dx, dy float64) [4][2]float64 {
	return [4][2]float64{
		{dx - 0.5, dy - 0.5}, {dx + 0.5, dy - 0.5}, {dx + 0.5, dy + 0.5}, {dx - 0.5, dy + 0.5},
	}
}

// Nearest and farthest distance from the origin to the unit pixel centered at (dx,dy)
func pixelDistances(dx, dy float64) (dmin, dmax float64) {
	nx := math.Max(math.Abs(dx)-0.5, 0)
	ny := math.Max(math.Abs(dy)-0.5, 0)
	fx, fy := math.Abs(dx)+0.5, math.Abs(dy)+0.5
	return math.Hypot(nx, ny), math.Hypot(fx, fy)
}

// Area of the intersection of the circle of radius r about the origin with a convex polygon
func circlePolygonArea(poly [4][2]float64, r float64) float64 {
	sum := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += circleTriangleArea(poly[i][0], poly[i][1], poly[j][0], poly[j][1], r)
	}
	return math.Abs(sum)
}

// Signed area of the intersection of the circle of radius r about the origin with the triangle (origin, a, b)
func circleTriangleArea(ax, ay, bx, by, r float64) float64 {
	sector := func(ux, uy, vx, vy float64) float64 {
		return 0.5 * r * r * math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	r2 := r * r
	if ax*ax+ay*ay <= r2 && bx*bx+by*by <= r2 {
		return 0.5 * (ax*by - ay*bx)
	}

	// intersections of the segment a + t(b-a) with the circle
	dx, dy := bx-ax, by-ay
	qa := dx*dx + dy*dy
	qb := ax*dx + ay*dy
	qc := ax*ax + ay*ay - r2
	disc := qb*qb - qa*qc
	if qa == 0 || disc <= 0 {
		return sector(ax, ay, bx, by)
	}
	s := math.Sqrt(disc)
	t1, t2 := (-qb-s)/qa, (-qb+s)/qa
	if t2 <= 0 || t1 >= 1 {
		return sector(ax, ay, bx, by)
	}
	t1, t2 = math.Max(t1, 0), math.Min(t2, 1)
	p1x, p1y := ax+t1*dx, ay+t1*dy
	p2x, p2y := ax+t2*dx, ay+t2*dy
	return sector(ax, ay, p1x, p1y) + 0.5*(p1x*p2y-p1y*p2x) + sector(p2x, p2y, bx, by)
}
