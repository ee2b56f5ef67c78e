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
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/rs/zerolog"
)

// Circular Gaussian of the given peak and width centered on pixel (xc,yc), labeled within radius r
func addGaussian(in *Input, xc, yc int, peak, sigma, r float64, label int32) {
	w := in.Image.Width
	for y := 0; y < in.Image.Height; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x-xc), float64(y-yc)
			d2 := dx*dx + dy*dy
			in.Image.Data[y*w+x] += peak * math.Exp(-d2/(2*sigma*sigma))
			if d2 <= r*r {
				in.Segmap.Data[y*w+x] = label
			}
		}
	}
}

func newInput(w, h int) *Input {
	return &Input{Image: grid.NewImage(w, h), Segmap: grid.NewLabels(w, h)}
}

func gaussianInput() *Input {
	in := newInput(51, 51)
	addGaussian(in, 25, 25, 100, 5, 16, 1)
	return in
}

func testContext() *Context {
	return NewContext(zerolog.Nop())
}

func hasReasonFrom(reasons []string, stages ...string) (string, bool) {
	for _, r := range reasons {
		ok := false
		for _, s := range stages {
			if strings.HasPrefix(r, s+": ") {
				ok = true
			}
		}
		if !ok {
			return r, false
		}
	}
	return "", true
}

func TestSymmetricGaussian(t *testing.T) {
	res, err := New(gaussianInput(), 1, NewConfigDefaults(), testContext())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Asymmetry) > 0.05 {
		t.Errorf("asymmetry=%g; want about 0", res.Asymmetry)
	}
	if math.Abs(res.Smoothness) > 0.05 {
		t.Errorf("smoothness=%g; want about 0", res.Smoothness)
	}
	if res.Gini < 0.4 || res.Gini > 0.8 {
		t.Errorf("gini=%g; want within [0.4,0.8]", res.Gini)
	}
	if !(res.Concentration > 0) || math.IsInf(res.Concentration, 0) {
		t.Errorf("concentration=%g; want finite and positive", res.Concentration)
	}
	if !(res.R80 > res.R20) {
		t.Errorf("r80=%g r20=%g; want r80>r20", res.R80, res.R20)
	}
	if math.Abs(res.RpetroCirc-11.53) > 0.2 {
		t.Errorf("rpetro_circ=%g; want about 11.53", res.RpetroCirc)
	}
	if math.Abs(res.XCAsymmetry-25) > 0.1 || math.Abs(res.YCAsymmetry-25) > 0.1 {
		t.Errorf("asymmetry center=(%g,%g); want (25,25)", res.XCAsymmetry, res.YCAsymmetry)
	}
	if math.Abs(res.XCCentroid-25) > 1e-6 || math.Abs(res.YCCentroid-25) > 1e-6 {
		t.Errorf("centroid=(%g,%g); want (25,25)", res.XCCentroid, res.YCCentroid)
	}
	if res.NumBadPixels < 0 {
		t.Errorf("num_badpixels=%d; want a count", res.NumBadPixels)
	}
	// a single noiseless clump has no multimode, and the shape segmap of a noiseless source
	// reaches far beyond the others
	if r, ok := hasReasonFrom(res.FlagReasons, "multimode", "segmaps", "sersic"); !ok {
		t.Errorf("unexpected flag reason %q", r)
	}
	// the stamp holds the labeled disk [9,41]² and is clipped to the image
	sm := res.Segmaps
	if sm == nil {
		t.Fatalf("no segmaps")
	}
	if sm.X0 < 0 || sm.Y0 < 0 || sm.X0 > 9 || sm.Y0 > 9 ||
		sm.X0+sm.Stamp.Width < 42 || sm.Y0+sm.Stamp.Height < 42 ||
		sm.X0+sm.Stamp.Width > 51 || sm.Y0+sm.Stamp.Height > 51 {
		t.Errorf("stamp %dx%d at (%d,%d); want it to cover the source within the image",
			sm.Stamp.Width, sm.Stamp.Height, sm.X0, sm.Y0)
	}
}

func TestPetrosianRadiusOfGaussian(t *testing.T) {
	// for a Gaussian of width sigma the ratio of the local to the enclosed mean brightness is
	// x/(exp(x)-1) with x=r²/(2sigma²), which equals 0.2 at x=2.66040
	want := 5 * math.Sqrt(2*2.6603990584636845)
	in := gaussianInput().Sanitized()
	cfg := NewConfigDefaults()
	src, err := newSource(in, 1, cfg, testContext(), newFlags(zerolog.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	r := src.petrosianCirc(src.xc, src.yc)
	if math.Abs(r-want) > 0.1 {
		t.Errorf("rpetro=%g; want %g", r, want)
	}
	if src.flags.General {
		t.Errorf("unexpected flags %v", src.flags.Reasons)
	}
	// circles are ellipses of elongation one
	re := src.petrosianEllip(src.xc, src.yc, 1, 0)
	if math.Abs(re-r) > 1e-3 {
		t.Errorf("rpetro_ellip=%g; want %g", re, r)
	}
}

func TestSegmapsAgree(t *testing.T) {
	left, right := grid.NewMask(10, 10), grid.NewMask(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 5; x++ {
			left.Set(x, y, true)
			right.Set(x+5, y, true)
		}
	}
	tcs := []struct {
		name    string
		a, b, c *grid.Mask
		want    bool
	}{
		{"identical", left, left, left, true},
		{"disjoint", left, right, left, false},
		{"empty", grid.NewMask(10, 10), grid.NewMask(10, 10), grid.NewMask(10, 10), false},
		{"superset", left, left, left.Or(right), true},
	}
	for _, tc := range tcs {
		if got := segmapsAgree(tc.a, tc.b, tc.c, 0.5); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestBadPixelCount(t *testing.T) {
	in := newInput(40, 40)
	for i := range in.Image.Data {
		in.Image.Data[i] = 1
	}
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			in.Segmap.Set(x, y, 1)
		}
	}
	in.Image.Set(20, 20, 100)

	img := in.Image.Clone()
	if n := RemoveBadPixels(img, 10); n != 1 {
		t.Errorf("removed %d pixels; want 1", n)
	}
	if v := img.At(20, 20); v != 0 {
		t.Errorf("spike=%g; want 0", v)
	}
	if v := in.Image.At(20, 20); v != 100 {
		t.Errorf("input was modified")
	}

	res, err := New(in, 1, NewConfigDefaults(), testContext())
	if err != nil {
		t.Fatal(err)
	}
	if res.NumBadPixels != 1 {
		t.Errorf("num_badpixels=%d; want 1", res.NumBadPixels)
	}

	cfg := NewConfigDefaults()
	cfg.RemoveOutliers = false
	res, err = New(in, 1, cfg, testContext())
	if err != nil {
		t.Fatal(err)
	}
	if res.NumBadPixels != -1 {
		t.Errorf("num_badpixels=%d without removal; want -1", res.NumBadPixels)
	}
}

func TestInvalidInputs(t *testing.T) {
	cfg, c := NewConfigDefaults(), testContext()
	good := gaussianInput()

	negative := gaussianInput()
	negative.Segmap.Set(0, 0, -3)

	tcs := []struct {
		name string
		in   *Input
	}{
		{"nil", nil},
		{"no segmap", &Input{Image: good.Image}},
		{"segmap size", &Input{Image: good.Image, Segmap: grid.NewLabels(50, 51)}},
		{"mask size", &Input{Image: good.Image, Segmap: good.Segmap, Mask: grid.NewMask(3, 3)}},
		{"variance size", &Input{Image: good.Image, Segmap: good.Segmap, Variance: grid.NewImage(51, 5)}},
		{"negative label", negative},
	}
	for _, tc := range tcs {
		if _, err := New(tc.in, 1, cfg, c); err == nil {
			t.Errorf("%s: no error", tc.name)
		}
	}

	if _, err := New(good, 7, cfg, c); err == nil {
		t.Errorf("missing label: no error")
	}

	// a fully masked source cannot be measured
	masked := gaussianInput()
	masked.Mask = masked.Segmap.Equal(1)
	if _, err := New(masked, 1, cfg, c); err == nil {
		t.Errorf("masked source: no error")
	}

	bad := NewConfigDefaults()
	bad.Eta = 2
	if _, err := New(good, 1, bad, c); err == nil {
		t.Errorf("invalid config: no error")
	}
}

func TestSanitized(t *testing.T) {
	in := gaussianInput()
	in.Image.Set(3, 4, math.NaN())
	in.Variance = grid.NewImage(51, 51)
	in.Variance.Set(5, 6, math.Inf(1))

	clean := in.Sanitized()
	if clean.Mask == nil || !clean.Mask.At(3, 4) || !clean.Mask.At(5, 6) {
		t.Fatalf("non-finite pixels not masked")
	}
	if clean.Mask.Count() != 2 {
		t.Errorf("masked %d pixels; want 2", clean.Mask.Count())
	}
	if v := clean.Image.At(3, 4); v != 0 {
		t.Errorf("image=%g; want 0", v)
	}
	if v := clean.Variance.At(5, 6); v != 0 {
		t.Errorf("variance=%g; want 0", v)
	}
	if !math.IsNaN(in.Image.At(3, 4)) || in.Mask != nil {
		t.Errorf("input was modified")
	}
}

func TestPreconditionErrorIsRecovered(t *testing.T) {
	// a source of negative flux only has no shape about its asymmetry center
	in := newInput(41, 41)
	for y := 0; y < 41; y++ {
		for x := 0; x < 41; x++ {
			if (x-20)*(x-20)+(y-20)*(y-20) <= 100 {
				in.Image.Set(x, y, -1)
				in.Segmap.Set(x, y, 3)
			}
		}
	}
	res, err := New(in, 3, NewConfigDefaults(), testContext())
	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Stage != "asymmetry" || pe.Label != 3 {
		t.Fatalf("got %v; want an asymmetry precondition error for label 3", err)
	}
	if res != nil {
		t.Errorf("got a result alongside the error")
	}
}

func TestTwoClumpMID(t *testing.T) {
	in := newInput(61, 41)
	addGaussian(in, 23, 20, 100, 3, 12, 1)
	addGaussian(in, 37, 20, 60, 3, 12, 1)
	res, err := New(in, 1, NewConfigDefaults(), testContext())
	if err != nil {
		t.Fatal(err)
	}
	if !(res.Multimode > 0.5 && res.Multimode <= 1) {
		t.Errorf("multimode=%g; want a second clump of comparable size", res.Multimode)
	}
	// equal widths, so the watershed flux ratio follows the peak ratio
	if math.Abs(res.Intensity-0.6) > 0.1 {
		t.Errorf("intensity=%g; want about 0.6", res.Intensity)
	}
	if !(res.Deviation > 0.2 && res.Deviation < 1) {
		t.Errorf("deviation=%g; want the brightest peak off the centroid", res.Deviation)
	}
	if hasReason(res.FlagReasons, "multimode") || hasReason(res.FlagReasons, "segmap_mid") {
		t.Errorf("unexpected flag reasons %v", res.FlagReasons)
	}
}

func TestBatchOrderAndErrors(t *testing.T) {
	in := newInput(120, 60)
	addGaussian(in, 90, 30, 100, 4, 12, 5)
	addGaussian(in, 30, 30, 80, 4, 12, 2)
	c := testContext()
	c.MaxThreads = 2

	res, err := Batch(in, NewConfigDefaults(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].Label != 2 || res[1].Label != 5 {
		t.Fatalf("got %d results; want labels 2 and 5 in order", len(res))
	}
	for _, r := range res {
		if r.NumBadPixels != res[0].NumBadPixels {
			t.Errorf("label %d: num_badpixels=%d; want the shared count %d", r.Label, r.NumBadPixels, res[0].NumBadPixels)
		}
	}
	if math.Abs(res[0].XCCentroid-30) > 0.5 || math.Abs(res[1].XCCentroid-90) > 0.5 {
		t.Errorf("centroids %g and %g; want 30 and 90", res[0].XCCentroid, res[1].XCCentroid)
	}

	// one source measured on its own matches the batch
	one, err := Batch(in, NewConfigDefaults(), c, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].Gini != res[1].Gini || one[0].Multimode != res[1].Multimode {
		t.Errorf("single label batch differs from full batch")
	}

	if _, err := Batch(in, NewConfigDefaults(), c, 3); err == nil {
		t.Errorf("unknown label: no error")
	}
	if _, err := Batch(in, NewConfigDefaults(), c, 5, 2); err == nil {
		t.Errorf("descending labels: no error")
	}

	// a fully masked source fails alone
	in.Mask = in.Segmap.Equal(2)
	res, err = Batch(in, NewConfigDefaults(), c)
	if err == nil {
		t.Errorf("masked source: no error")
	}
	if len(res) != 1 || res[0].Label != 5 {
		t.Errorf("got %d results; want label 5 only", len(res))
	}
}
