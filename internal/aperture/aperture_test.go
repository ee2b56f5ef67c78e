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

package aperture

import (
	"math"
	"testing"

	"github.com/mlnoga/nightmorph/internal/grid"
)

func ones(w, h int) *grid.Image {
	img := grid.NewImage(w, h)
	for i := range img.Data {
		img.Data[i] = 1
	}
	return img
}

func TestAreasOnUniformImage(t *testing.T) {
	img := ones(64, 64)
	epsilon := 1e-9
	tcs := []Aperture{
		Circle{31.3, 30.7, 10},
		Circle{32, 32, 0.5},
		Circle{20.25, 40.5, 3.3},
		CircularAnnulus{31.5, 31.5, 4, 9.5},
		Ellipse{30, 33, 12, 5, 0.6},
		Ellipse{30.4, 29.9, 6, 6, 0},
		EllipticalAnnulus{32.2, 31.1, 5, 15, 7, -1.1},
	}
	for _, ap := range tcs {
		if s := Sum(ap, img); math.Abs(s-ap.Area()) > epsilon {
			t.Errorf("%+v sum=%.12g; want area %.12g", ap, s, ap.Area())
		}
	}
}

func TestSinglePixelOverlap(t *testing.T) {
	// an inscribed circle covers pi/4 of its pixel
	ws := Circle{5, 5, 0.5}.Weights(11, 11)
	if len(ws) != 1 || ws[0].Index != 5*11+5 || math.Abs(ws[0].W-math.Pi/4) > 1e-12 {
		t.Errorf("weights=%v; want single pixel with pi/4", ws)
	}
	// a circle centered on a pixel corner covers a quarter of it in each of the four pixels
	ws = Circle{4.5, 4.5, 0.25}.Weights(11, 11)
	if len(ws) != 4 {
		t.Fatalf("got %d weights; want 4", len(ws))
	}
	for _, w := range ws {
		if math.Abs(w.W-math.Pi*0.0625/4) > 1e-12 {
			t.Errorf("weight=%g; want %g", w.W, math.Pi*0.0625/4)
		}
	}
}

func TestClippedAtBorder(t *testing.T) {
	img := ones(20, 20)
	// a circle centered on the left edge of the image keeps half of its area
	c := Circle{-0.5, 10, 5}
	if s := Sum(c, img); math.Abs(s-c.Area()/2) > 1e-9 {
		t.Errorf("sum=%g; want %g", s, c.Area()/2)
	}
	if ws := (Circle{-50, -50, 3}).Weights(20, 20); len(ws) != 0 {
		t.Errorf("far outside aperture has %d weights", len(ws))
	}
	if ws := (Circle{10, 10, math.NaN()}).Weights(20, 20); len(ws) != 0 {
		t.Errorf("NaN radius has %d weights", len(ws))
	}
}

func TestAbsSum(t *testing.T) {
	img := ones(9, 9)
	for i := range img.Data {
		img.Data[i] = -2
	}
	c := Circle{4, 4, 3}
	if s := AbsSum(c, img); math.Abs(s-2*c.Area()) > 1e-9 {
		t.Errorf("abs sum=%g; want %g", s, 2*c.Area())
	}
}

func TestCenterMask(t *testing.T) {
	m := CenterMask(CircularAnnulus{5, 5, 2, 3}, 11, 11)
	if m.At(5, 5) || m.At(6, 5) {
		t.Errorf("inner pixels selected")
	}
	if !m.At(7, 5) || m.At(8, 5) {
		t.Errorf("radius 2 must be in, radius 3 out")
	}
}
