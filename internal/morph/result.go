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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mlnoga/nightmorph/internal/grid"
)

// Morphology statistics of one source. Invalid statistics hold the sentinel -99.
// Positions are in full image coordinates.
type Result struct {
	Label int32

	RpetroCirc      float64
	RpetroEllip     float64
	Gini            float64
	M20             float64
	SNPerPixel      float64
	Concentration   float64
	Asymmetry       float64
	Smoothness      float64
	Multimode       float64
	Intensity       float64
	Deviation       float64
	HalfLightRadius float64
	Rmax            float64
	OuterAsymmetry  float64
	ShapeAsymmetry  float64
	SersicIndex     float64

	R20, R80                 float64
	XCCentroid, YCCentroid   float64
	XCAsymmetry, YCAsymmetry float64
	ElongationAsymmetry      float64
	OrientationAsymmetry     float64
	EllipticityAsymmetry     float64
	SkyMean                  float64
	SkyMedian                float64
	SkySigma                 float64

	Flag         bool
	FlagSersic   bool
	NumBadPixels int // -1 if bad pixel removal was disabled
	FlagReasons  []string

	Segmaps *Segmaps // stamp and segmaps for overlays
}

// The stamp and the three segmaps of a source, in stamp coordinates
type Segmaps struct {
	X0, Y0 int // stamp origin in the full image
	Stamp  *grid.Image
	Gini   *grid.Mask
	MID    *grid.Mask
	Shape  *grid.Mask
}

// Output names in output order
var resultNames = []string{
	"label",
	"rpetro_circ", "rpetro_ellip",
	"gini", "m20", "sn_per_pixel",
	"concentration", "asymmetry", "smoothness",
	"multimode", "intensity", "deviation",
	"half_light_radius", "rmax", "outer_asymmetry", "shape_asymmetry",
	"sersic_index",
	"r20", "r80",
	"xc_centroid", "yc_centroid", "xc_asymmetry", "yc_asymmetry",
	"elongation_asymmetry", "orientation_asymmetry", "ellipticity_asymmetry",
	"sky_mean", "sky_median", "sky_sigma",
	"flag", "flag_sersic", "num_badpixels",
}

// Returns the names accepted by Get, in output order
func Names() []string {
	return append([]string(nil), resultNames...)
}

// Returns the named value. Flags read as 0 or 1.
func (r *Result) Get(name string) (float64, bool) {
	switch name {
	case "label":
		return float64(r.Label), true
	case "rpetro_circ":
		return r.RpetroCirc, true
	case "rpetro_ellip":
		return r.RpetroEllip, true
	case "gini":
		return r.Gini, true
	case "m20":
		return r.M20, true
	case "sn_per_pixel":
		return r.SNPerPixel, true
	case "concentration":
		return r.Concentration, true
	case "asymmetry":
		return r.Asymmetry, true
	case "smoothness":
		return r.Smoothness, true
	case "multimode":
		return r.Multimode, true
	case "intensity":
		return r.Intensity, true
	case "deviation":
		return r.Deviation, true
	case "half_light_radius":
		return r.HalfLightRadius, true
	case "rmax":
		return r.Rmax, true
	case "outer_asymmetry":
		return r.OuterAsymmetry, true
	case "shape_asymmetry":
		return r.ShapeAsymmetry, true
	case "sersic_index":
		return r.SersicIndex, true
	case "r20":
		return r.R20, true
	case "r80":
		return r.R80, true
	case "xc_centroid":
		return r.XCCentroid, true
	case "yc_centroid":
		return r.YCCentroid, true
	case "xc_asymmetry":
		return r.XCAsymmetry, true
	case "yc_asymmetry":
		return r.YCAsymmetry, true
	case "elongation_asymmetry":
		return r.ElongationAsymmetry, true
	case "orientation_asymmetry":
		return r.OrientationAsymmetry, true
	case "ellipticity_asymmetry":
		return r.EllipticityAsymmetry, true
	case "sky_mean":
		return r.SkyMean, true
	case "sky_median":
		return r.SkyMedian, true
	case "sky_sigma":
		return r.SkySigma, true
	case "flag":
		return boolToFloat(r.Flag), true
	case "flag_sersic":
		return boolToFloat(r.FlagSersic), true
	case "num_badpixels":
		return float64(r.NumBadPixels), true
	}
	return math.NaN(), false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Formats a value for text output. Integral fields print without decimals.
func formatValue(name string, v float64) string {
	switch name {
	case "label", "flag", "flag_sersic", "num_badpixels":
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// Comma-separated header line matching CSV
func CSVHeader() string {
	return strings.Join(resultNames, ",")
}

// Comma-separated values in the order of CSVHeader
func (r *Result) CSV() string {
	fields := make([]string, len(resultNames))
	for i, n := range resultNames {
		v, _ := r.Get(n)
		fields[i] = formatValue(n, v)
	}
	return strings.Join(fields, ",")
}

func (r *Result) String() string {
	var b strings.Builder
	for _, n := range resultNames {
		v, _ := r.Get(n)
		fmt.Fprintf(&b, "%-22s %s\n", n, formatValue(n, v))
	}
	return b.String()
}

// Writes all named values in output order, with flags as booleans and non-finite values as null
func (r *Result) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, n := range resultNames {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:", n)
		v, _ := r.Get(n)
		switch {
		case n == "flag" || n == "flag_sersic":
			b.WriteString(strconv.FormatBool(v != 0))
		case math.IsNaN(v) || math.IsInf(v, 0):
			b.WriteString("null")
		default:
			b.WriteString(formatValue(n, v))
		}
	}
	if len(r.FlagReasons) > 0 {
		reasons, err := json.Marshal(r.FlagReasons)
		if err != nil {
			return nil, err
		}
		b.WriteString(`,"flag_reasons":`)
		b.Write(reasons)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
