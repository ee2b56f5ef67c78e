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

// Package fits reads image planes from FITS and TIFF files into float64 grids,
// and renders segmap overlays to PNG.
package fits

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"

	"github.com/mlnoga/nightmorph/internal/grid"
	"github.com/rs/zerolog"
)

// A two-dimensional FITS image. Data values have BSCALE and BZERO applied.
type Image struct {
	FileName string
	Header   Header
	Bitpix   int
	Naxisn   []int
	Data     *grid.Image
}

// Reads the primary image of a FITS file. Decompresses gzip if a .gz or .gzip suffix is present,
// and reads TIFF if a .tif or .tiff suffix is present.
func ReadFile(fileName string, log zerolog.Logger) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	switch strings.ToLower(path.Ext(fileName)) {
	case ".tif", ".tiff":
		data, err := ReadTIFF(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
		return &Image{FileName: fileName, Header: NewHeader(), Bitpix: 16,
			Naxisn: []int{data.Width, data.Height}, Data: data}, nil
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
		defer zr.Close()
		r = zr
	}

	img, err := Read(r, log.With().Str("file", fileName).Logger())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	img.FileName = fileName
	return img, nil
}

// Reads a FITS primary header and its two-dimensional image data.
// Further axes of length one are accepted and dropped.
func Read(r io.Reader, log zerolog.Logger) (*Image, error) {
	img := &Image{Header: NewHeader()}
	h := &img.Header
	if err := h.read(r, log); err != nil {
		return nil, err
	}

	// mandatory fields as per standard
	if !h.Bools["SIMPLE"] {
		return nil, fmt.Errorf("not a valid FITS file, SIMPLE=T missing in header")
	}
	bitpix, ok := h.Int("BITPIX")
	if !ok {
		return nil, fmt.Errorf("FITS header does not contain key BITPIX")
	}
	img.Bitpix = int(bitpix)
	naxis, ok := h.Int("NAXIS")
	if !ok {
		return nil, fmt.Errorf("FITS header does not contain key NAXIS")
	}
	pixels := 1
	for i := 1; i <= int(naxis); i++ {
		n, ok := h.Int(fmt.Sprintf("NAXIS%d", i))
		if !ok || n < 0 {
			return nil, fmt.Errorf("FITS header lacks a valid NAXIS%d", i)
		}
		img.Naxisn = append(img.Naxisn, int(n))
		pixels *= int(n)
	}
	if len(img.Naxisn) < 2 || pixels != img.Naxisn[0]*img.Naxisn[1] || pixels == 0 {
		return nil, fmt.Errorf("expected a two-dimensional image, got axes %v", img.Naxisn)
	}

	bscale, bzero := h.Float("BSCALE", 1), h.Float("BZERO", 0)
	data, err := readData(r, img.Bitpix, pixels, bscale, bzero)
	if err != nil {
		return nil, err
	}
	if img.Bitpix == 64 || img.Bitpix == -64 {
		log.Debug().Int("bitpix", img.Bitpix).Msg("reading 64-bit values")
	}
	img.Data = grid.NewImageFromData(img.Naxisn[0], img.Naxisn[1], data)
	return img, nil
}

// Decoders for the big-endian value types of each BITPIX
var decoders = map[int]struct {
	size   int
	decode func(b []byte) float64
}{
	8:   {1, func(b []byte) float64 { return float64(b[0]) }},
	16:  {2, func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }},
	32:  {4, func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }},
	64:  {8, func(b []byte) float64 { return float64(int64(binary.BigEndian.Uint64(b))) }},
	-32: {4, func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }},
	-64: {8, func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) }},
}

const bufLen = 16 * 1024 // input buffer length for reading from file

// Batched read of image data, converting from network byte order and applying bscale and bzero
func readData(r io.Reader, bitpix, pixels int, bscale, bzero float64) ([]float64, error) {
	dec, ok := decoders[bitpix]
	if !ok {
		return nil, fmt.Errorf("unknown BITPIX value %d", bitpix)
	}
	data := make([]float64, pixels)
	valuesPerBuf := bufLen / dec.size
	buf := make([]byte, valuesPerBuf*dec.size)
	for i := 0; i < pixels; {
		n := pixels - i
		if n > valuesPerBuf {
			n = valuesPerBuf
		}
		if _, err := io.ReadFull(r, buf[:n*dec.size]); err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		for j := 0; j < n; j++ {
			data[i+j] = dec.decode(buf[j*dec.size:])*bscale + bzero
		}
		i += n
	}
	return data, nil
}

// Converts an image of integral values to labels
func ToLabels(img *grid.Image) (*grid.Labels, error) {
	res := grid.NewLabels(img.Width, img.Height)
	for i, v := range img.Data {
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("segmap value %g at (%d,%d) is not an integer label", v, i%img.Width, i/img.Width)
		}
		res.Data[i] = int32(v)
	}
	return res, nil
}

// Converts an image to a mask. Non-zero values are masked.
func ToMask(img *grid.Image) *grid.Mask {
	res := grid.NewMask(img.Width, img.Height)
	for i, v := range img.Data {
		res.Data[i] = v != 0
	}
	return res
}
