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

package fits

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/rs/zerolog"
	"golang.org/x/image/tiff"
)

// Builds a FITS file with the given header cards and big-endian payload
func fitsBytes(cards []string, payload []byte) []byte {
	var b bytes.Buffer
	for _, c := range append(cards, "END") {
		b.WriteString(fmt.Sprintf("%-80s", c))
	}
	for b.Len()%blockSize != 0 {
		b.WriteByte(' ')
	}
	b.Write(payload)
	for b.Len()%blockSize != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func TestReadFloat32(t *testing.T) {
	vals := []float32{1.5, -2, 0, 7.25, 3, 100}
	payload := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(payload[4*i:], math.Float32bits(v))
	}
	data := fitsBytes([]string{
		"SIMPLE  =                    T / conforms to FITS standard",
		"BITPIX  =                  -32",
		"NAXIS   =                    2",
		"NAXIS1  =                    3",
		"NAXIS2  =                    2",
		"OBJECT  = 'NGC 1300'",
		"GAIN    =              1.5D+00",
		"HISTORY created by a test",
	}, payload)

	img, err := Read(bytes.NewReader(data), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if img.Data.Width != 3 || img.Data.Height != 2 {
		t.Fatalf("size %dx%d; want 3x2", img.Data.Width, img.Data.Height)
	}
	for i, v := range vals {
		if img.Data.Data[i] != float64(v) {
			t.Errorf("value %d=%g; want %g", i, img.Data.Data[i], v)
		}
	}
	if img.Header.Strings["OBJECT"] != "NGC 1300" || img.Header.Floats["GAIN"] != 1.5 || len(img.Header.History) != 1 {
		t.Errorf("header %+v", img.Header)
	}
}

func TestReadInt16WithScaling(t *testing.T) {
	vals := []int16{-32768, -1, 0, 32767}
	payload := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(payload[2*i:], uint16(v))
	}
	data := fitsBytes([]string{
		"SIMPLE  = T", "BITPIX  = 16", "NAXIS   = 2", "NAXIS1  = 2", "NAXIS2  = 2",
		"BZERO   = 32768", "BSCALE  = 1",
	}, payload)

	// gzip path through ReadFile
	var zbuf bytes.Buffer
	zw := gzip.NewWriter(&zbuf)
	zw.Write(data)
	zw.Close()
	fileName := filepath.Join(t.TempDir(), "segmap.fits.gz")
	if err := os.WriteFile(fileName, zbuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := ReadFile(fileName, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 32767, 32768, 65535}
	for i, w := range want {
		if img.Data.Data[i] != w {
			t.Errorf("value %d=%g; want %g", i, img.Data.Data[i], w)
		}
	}
	labels, err := ToLabels(img.Data)
	if err != nil || labels.Data[3] != 65535 {
		t.Errorf("labels %v, %v", labels, err)
	}
}

func TestReadErrors(t *testing.T) {
	tcs := []struct {
		name  string
		cards []string
	}{
		{"not simple", []string{"SIMPLE  = F", "BITPIX  = 8", "NAXIS   = 2", "NAXIS1  = 1", "NAXIS2  = 1"}},
		{"no bitpix", []string{"SIMPLE  = T", "NAXIS   = 2", "NAXIS1  = 1", "NAXIS2  = 1"}},
		{"bad bitpix", []string{"SIMPLE  = T", "BITPIX  = 12", "NAXIS   = 2", "NAXIS1  = 1", "NAXIS2  = 1"}},
		{"cube", []string{"SIMPLE  = T", "BITPIX  = 8", "NAXIS   = 3", "NAXIS1  = 1", "NAXIS2  = 1", "NAXIS3  = 3"}},
	}
	for _, tc := range tcs {
		if _, err := Read(bytes.NewReader(fitsBytes(tc.cards, []byte{1, 2, 3})), zerolog.Nop()); err == nil {
			t.Errorf("%s: no error", tc.name)
		}
	}
	// truncated data
	data := fitsBytes([]string{"SIMPLE  = T", "BITPIX  = -64", "NAXIS   = 2", "NAXIS1  = 40", "NAXIS2  = 40"}, nil)
	if _, err := Read(bytes.NewReader(data), zerolog.Nop()); err == nil {
		t.Errorf("truncated: no error")
	}
}

func TestToLabelsAndMask(t *testing.T) {
	img := grid.NewImageFromData(3, 1, []float64{0, 2, 1.5})
	if _, err := ToLabels(img); err == nil {
		t.Errorf("fractional label: no error")
	}
	m := ToMask(img)
	if m.At(0, 0) || !m.At(1, 0) || !m.At(2, 0) {
		t.Errorf("mask %v", m.Data)
	}
}

func TestReadTIFF(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 4, 3))
	src.SetGray16(2, 1, color.Gray16{Y: 1234})
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, src, nil); err != nil {
		t.Fatal(err)
	}
	img, err := ReadTIFF(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 4 || img.Height != 3 || img.At(2, 1) != 1234 || img.At(0, 0) != 0 {
		t.Errorf("got %dx%d with %g at (2,1)", img.Width, img.Height, img.At(2, 1))
	}
}

func TestWriteOverlayPNG(t *testing.T) {
	stamp := grid.NewImageFromData(2, 2, []float64{0, 1, 2, 3})
	mask := grid.NewMask(2, 2)
	mask.Set(1, 1, true)
	fileName := filepath.Join(t.TempDir(), "overlay.png")
	if err := WriteOverlayPNGToFile(fileName, stamp, mask); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds %v", b)
	}
	// unmasked pixels stay gray, masked ones are tinted
	r, g, b, _ := img.At(1, 0).RGBA()
	if r != g || g != b {
		t.Errorf("unmasked pixel is not gray: %d %d %d", r, g, b)
	}
	r, g, b, _ = img.At(1, 1).RGBA()
	if r == g && g == b {
		t.Errorf("masked pixel is not tinted")
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0 {
		t.Errorf("minimum is not black")
	}
}
