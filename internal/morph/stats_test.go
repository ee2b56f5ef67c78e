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

package morph

import (
	"math"
	"sort"
	"testing"

	"github.com/valyala/fastrand"
)

func TestGiniCoefficient(t *testing.T) {
	tcs := []struct {
		name   string
		sorted []float64
		want   float64
		ok     bool
	}{
		{"uniform", []float64{2, 2, 2, 2}, 0, true},
		{"single bright pixel", []float64{0, 0, 0, 0, 5}, 1, true},
		{"two pixels", []float64{1, 3}, 0.5, true},
		{"one pixel", []float64{1}, 0, false},
		{"zero flux", []float64{0, 0, 0}, 0, false},
	}
	for _, tc := range tcs {
		got, ok := giniCoefficient(tc.sorted)
		if ok != tc.ok || (ok && math.Abs(got-tc.want) > 1e-12) {
			t.Errorf("%s: got %g, %v want %g, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestGiniCoefficientRange(t *testing.T) {
	var rng fastrand.RNG
	rng.Seed(42)
	for i := 0; i < 100; i++ {
		n := 2 + int(rng.Uint32n(200))
		vals := make([]float64, n)
		for j := range vals {
			vals[j] = float64(rng.Uint32n(1000))
		}
		vals[0]++ // non-zero sum
		sort.Float64s(vals)
		g, ok := giniCoefficient(vals)
		if !ok || g < 0 || g > 1 {
			t.Fatalf("gini=%g, %v for %v; want within [0,1]", g, ok, vals)
		}
	}
}

func TestSersicConstant(t *testing.T) {
	tcs := []struct{ n, want float64 }{
		{0.5, 0.693147}, // ln 2 for a Gaussian
		{1, 1.678347},
		{4, 7.669249},
	}
	for _, tc := range tcs {
		if got := sersicBn(tc.n); math.Abs(got-tc.want) > 1e-5 {
			t.Errorf("bn(%g)=%g; want %g", tc.n, got, tc.want)
		}
	}
}

func TestSersicModel(t *testing.T) {
	s := sersicModel{Amplitude: 3, Reff: 5, N: 1, X: 10, Y: 10, Ellipticity: 0.5, Theta: math.Pi / 2}
	bn := sersicBn(s.N)
	// the effective isophote lies at reff along the major axis, here the y axis
	if v := s.at(10, 15, bn); math.Abs(v-3) > 1e-12 {
		t.Errorf("major axis value=%g; want 3", v)
	}
	if v := s.at(12.5, 10, bn); math.Abs(v-3) > 1e-12 {
		t.Errorf("minor axis value=%g; want 3", v)
	}
	if c := s.at(10, 10, bn); math.Abs(c-3*math.Exp(bn)) > 1e-9 {
		t.Errorf("center value=%g; want %g", c, 3*math.Exp(bn))
	}
	if (sersicModel{Reff: 1, N: 30}).valid() || (sersicModel{Reff: -1, N: 1}).valid() {
		t.Errorf("invalid models accepted")
	}
}

func TestSersicFitOfExponential(t *testing.T) {
	in := newInput(61, 61)
	bn := sersicBn(1)
	w := in.Image.Width
	for y := 0; y < in.Image.Height; y++ {
		for x := 0; x < w; x++ {
			r := math.Hypot(float64(x-30), float64(y-30))
			in.Image.Data[y*w+x] = 10 * math.Exp(-bn*(r/6-1))
			if r <= 18 {
				in.Segmap.Data[y*w+x] = 1
			}
		}
	}
	cfg := NewConfigDefaults()
	cfg.RemoveOutliers = false
	res, err := New(in, 1, cfg, testContext())
	if err != nil {
		t.Fatal(err)
	}
	if res.FlagSersic {
		t.Skipf("fit did not converge: %v", res.FlagReasons)
	}
	if math.Abs(res.SersicIndex-1) > 0.5 {
		t.Errorf("sersic_index=%g; want about 1", res.SersicIndex)
	}
}
