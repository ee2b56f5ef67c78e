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

	"github.com/mlnoga/nightmorph/internal/morph"
	"github.com/rs/zerolog"
)

// Loads the measurement input planes from FITS or TIFF files. Mask and variance are optional
// and skipped if their file name is empty. Mask pixels with non-zero values are excluded.
func LoadInput(image, segmap, mask, variance string, log zerolog.Logger) (*morph.Input, error) {
	img, err := ReadFile(image, log)
	if err != nil {
		return nil, err
	}
	seg, err := ReadFile(segmap, log)
	if err != nil {
		return nil, err
	}
	labels, err := ToLabels(seg.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", segmap, err)
	}
	in := &morph.Input{Image: img.Data, Segmap: labels}
	if mask != "" {
		m, err := ReadFile(mask, log)
		if err != nil {
			return nil, err
		}
		in.Mask = ToMask(m.Data)
	}
	if variance != "" {
		v, err := ReadFile(variance, log)
		if err != nil {
			return nil, err
		}
		in.Variance = v.Data
	}
	log.Info().Int("width", img.Data.Width).Int("height", img.Data.Height).
		Bool("mask", in.Mask != nil).Bool("variance", in.Variance != nil).Msg("loaded input")
	return in, in.Validate()
}
