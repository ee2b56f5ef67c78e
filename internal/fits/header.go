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
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
)

const (
	blockSize      = 2880 // block size of FITS header and data units
	headerLineSize = 80   // line size of a FITS header
)

var reParser = compileRE() // regexp parser for FITS header lines

// Parsed keywords of a FITS primary header
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int64
	Floats   map[string]float64
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int // bytes consumed, a multiple of the block size
}

// Creates a FITS header initialized with empty maps
func NewHeader() Header {
	return Header{
		Bools:   map[string]bool{},
		Ints:    map[string]int64{},
		Floats:  map[string]float64{},
		Strings: map[string]string{},
		Dates:   map[string]string{},
	}
}

// Returns the integer value of key, or false if absent
func (h *Header) Int(key string) (int64, bool) {
	v, ok := h.Ints[key]
	return v, ok
}

// Returns the numeric value of key, or def if absent
func (h *Header) Float(key string, def float64) float64 {
	if v, ok := h.Ints[key]; ok {
		return float64(v)
	}
	if v, ok := h.Floats[key]; ok {
		return v
	}
	return def
}

// Reads header blocks up to and including the one holding the END line
func (h *Header) read(r io.Reader, log zerolog.Logger) error {
	buf := make([]byte, blockSize)
	for h.Length = 0; !h.End; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		h.Length += blockSize

		for lineNo := 0; lineNo < blockSize/headerLineSize && !h.End; lineNo++ {
			line := buf[lineNo*headerLineSize : (lineNo+1)*headerLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				log.Warn().Str("line", string(line)).Msg("cannot parse header line, ignoring")
				continue
			}
			h.readLine(reParser.SubexpNames(), subValues)
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte) {
	key := ""
	// index 0 is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] == nil || len(subNames[i]) != 1 {
			continue
		}
		v := string(subValues[i])
		switch subNames[i][0] {
		case 'E':
			h.End = true
		case 'H':
			h.History = append(h.History, v)
		case 'C':
			h.Comments = append(h.Comments, v)
		case 'k':
			key = v
		case 'b':
			h.Bools[key] = v == "T"
		case 'i':
			if val, err := strconv.ParseInt(v, 10, 64); err == nil {
				h.Ints[key] = val
			}
		case 'f':
			if val, err := strconv.ParseFloat(replaceExponent(v), 64); err == nil {
				h.Floats[key] = val
			}
		case 's':
			h.Strings[key] = v
		case 'd':
			h.Dates[key] = v
		}
	}
}

// FITS allows D as the exponent marker of double precision values
func replaceExponent(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == 'D' {
			b[i] = 'E'
		}
	}
	return string(b)
}

// Builds the regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := `\s+`
	whiteOpt := `\s*`
	rest := ".*"

	histLine := "HISTORY" + "(?:" + white + "(?P<H>" + rest + "))?"
	commLine := "COMMENT" + "(?:" + white + "(?P<C>" + rest + "))?"
	endLine := "(?P<E>END)" + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := `(?P<f>[+-]?[0-9]*\.[0-9]*(?:[ED][-+]?[0-9]+)?|[+-]?[0-9]+[ED][-+]?[0-9]+)`
	stri := "'(?P<s>[^']*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"
	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + "=" + whiteOpt + val + whiteOpt + commOpt

	return regexp.MustCompile("^(?:" + whiteOpt + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$")
}
