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

package optim

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestBrent(t *testing.T) {
	tcs := []struct {
		name string
		f    func(float64) float64
		a, b float64
		want float64
	}{
		{"linear", func(x float64) float64 { return 2*x - 3 }, 0, 10, 1.5},
		{"cubic", func(x float64) float64 { return x*x*x - 2*x - 5 }, 2, 3, 2.0945514815423265},
		{"cos", math.Cos, 0, 3, math.Pi / 2},
		{"decreasing", func(x float64) float64 { return math.Exp(-x) - 0.2 }, 0, 10, math.Log(5)},
	}
	for _, tc := range tcs {
		x, err := Brent{}.FindRoot(tc.f, tc.a, tc.b, 1e-10)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if math.Abs(x-tc.want) > 1e-9 {
			t.Errorf("%s: root=%.12g; want %.12g", tc.name, x, tc.want)
		}
	}
}

func TestBrentNoBracket(t *testing.T) {
	_, err := Brent{}.FindRoot(func(x float64) float64 { return x*x + 1 }, -1, 1, 1e-6)
	if !errors.Is(err, ErrNoBracket) {
		t.Errorf("err=%v; want ErrNoBracket", err)
	}
}

func TestScanBracket(t *testing.T) {
	// decreasing through zero at 4.25
	b := ScanBracket(func(r float64) float64 { return 4.25 - r }, 0, 10, 101, 1)
	if !b.Found || b.Exact || math.Abs(b.Lo-4.2) > 1e-9 || math.Abs(b.Hi-4.3) > 1e-9 {
		t.Errorf("bracket=%+v; want 4.2..4.3", b)
	}

	// increasing function, leading positive values are skipped as premature
	f := func(r float64) float64 {
		if r < 1 {
			return 1
		}
		return r - 5.05
	}
	b = ScanBracket(f, 0, 9.9, 100, -1)
	if !b.Found || b.Premature != 10 || math.Abs(b.Lo-5.0) > 1e-9 || math.Abs(b.Hi-5.1) > 1e-9 {
		t.Errorf("bracket=%+v; want 5.0..5.1 with 10 premature", b)
	}

	// no sign change
	b = ScanBracket(func(r float64) float64 { return 1 }, 0, 1, 10, 1)
	if b.Found || b.LastScanned != 1 {
		t.Errorf("bracket=%+v; want not found, last scanned 1", b)
	}

	// exact zero on the grid
	b = ScanBracket(func(r float64) float64 { return 2 - r }, 0, 4, 5, 1)
	if !b.Exact || b.Lo != 2 {
		t.Errorf("bracket=%+v; want exact root at 2", b)
	}
}

func TestNelderMead(t *testing.T) {
	f := func(x []float64) float64 {
		dx, dy := x[0]-3.25, x[1]+1.5
		return dx*dx + 4*dy*dy + 0.5*dx*dy
	}
	x, fx, _ := NelderMead{}.Minimize(f, []float64{10, 10})
	if math.Abs(x[0]-3.25) > 1e-3 || math.Abs(x[1]+1.5) > 1e-3 {
		t.Errorf("x=%v; want 3.25,-1.5", x)
	}
	if fx > 1e-6 {
		t.Errorf("f=%g; want ~0", fx)
	}
}

func TestBasinHoppingDeterministic(t *testing.T) {
	// a tilted double well with the global minimum near x=-2
	f := func(x []float64) float64 {
		v := x[0]
		return (v*v-4)*(v*v-4) + v
	}
	s := HopSettings{NIter: 100, Temperature: 1, StepSize: 3, Interval: 50, Seed: 42}
	x1, f1 := BasinHopping{}.GlobalMinimize(f, []float64{1.9}, s)
	x2, f2 := BasinHopping{}.GlobalMinimize(f, []float64{1.9}, s)
	if x1[0] != x2[0] || f1 != f2 {
		t.Errorf("runs differ: %v/%g vs %v/%g", x1, f1, x2, f2)
	}
	if math.Abs(x1[0]+2) > 0.1 {
		t.Errorf("x=%v; want near -2", x1)
	}
}

func TestAdjustsStep(t *testing.T) {
	tcs := []struct {
		interval float64
		want     []int
	}{
		{2.5, []int{5, 10}},
		{2, []int{2, 4, 6, 8, 10}},
		{0, nil},
	}
	for _, tc := range tcs {
		var got []int
		for total := 1; total <= 10; total++ {
			if adjustsStep(total, tc.interval) {
				got = append(got, total)
			}
		}
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Errorf("interval=%g adjusts at %v; want %v", tc.interval, got, tc.want)
		}
	}
}
