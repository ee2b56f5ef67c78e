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
	"encoding/json"
	"fmt"
	"os"
)

// Parameters of the morphology measurement
type Config struct {
	CutoutExtent        float64 `json:"cutoutExtent"`        // stamp size relative to the bounding box, >= 1
	RemoveOutliers      bool    `json:"removeOutliers"`      // zero bad pixels before cutting the stamp
	NSigmaOutlier       float64 `json:"nSigmaOutlier"`       // bad pixel threshold in local standard deviations
	AnnulusWidth        float64 `json:"annulusWidth"`        // Petrosian annulus width in pixels
	Eta                 float64 `json:"eta"`                 // Petrosian surface brightness ratio
	PetroFractionGini   float64 `json:"petroFractionGini"`   // Gini segmap smoothing, fraction of the elliptical Petrosian radius
	BorderSize          int     `json:"borderSize"`          // skybox search inset from the stamp border
	SkyboxSize          int     `json:"skyboxSize"`          // initial skybox side length
	PetroExtentCirc     float64 `json:"petroExtentCirc"`     // CAS aperture radius in circular Petrosian radii
	PetroFractionCAS    float64 `json:"petroFractionCAS"`    // smoothness boxcar size in circular Petrosian radii
	BoxcarSizeMID       float64 `json:"boxcarSizeMID"`       // MID segmap regularization boxcar size
	NiterBHMID          int     `json:"niterBHMID"`          // basin-hopping iterations for multimode
	SigmaMID            float64 `json:"sigmaMID"`            // MID peak detection smoothing
	PetroExtentEllip    float64 `json:"petroExtentEllip"`    // shape asymmetry background annulus, in elliptical Petrosian radii
	BoxcarSizeShapeAsym float64 `json:"boxcarSizeShapeAsym"` // shape segmap smoothing boxcar size
	SegmapOverlapRatio  float64 `json:"segmapOverlapRatio"`  // minimum overlap of the three segmaps
	Seed                uint32  `json:"seed"`                // basin-hopping seed, mixed with the label
}

// Returns a configuration with default values
func NewConfigDefaults() *Config {
	return &Config{
		CutoutExtent:        1.5,
		RemoveOutliers:      true,
		NSigmaOutlier:       10,
		AnnulusWidth:        1.0,
		Eta:                 0.2,
		PetroFractionGini:   0.2,
		BorderSize:          4,
		SkyboxSize:          32,
		PetroExtentCirc:     1.5,
		PetroFractionCAS:    0.25,
		BoxcarSizeMID:       3.0,
		NiterBHMID:          5,
		SigmaMID:            1.0,
		PetroExtentEllip:    2.0,
		BoxcarSizeShapeAsym: 3.0,
		SegmapOverlapRatio:  0.5,
		Seed:                2017,
	}
}

// Unmarshal a configuration from JSON, starting from default values
func (cfg *Config) UnmarshalJSON(data []byte) error {
	type defaults Config
	def := defaults(*NewConfigDefaults())
	err := json.Unmarshal(data, &def)
	if err != nil {
		return err
	}
	*cfg = Config(def)
	return nil
}

// Reads a configuration from the given JSON file, starting from default values
func NewConfigFromFile(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return cfg, cfg.Validate()
}

// Checks parameter ranges
func (cfg *Config) Validate() error {
	switch {
	case !(cfg.CutoutExtent >= 1):
		return fmt.Errorf("cutoutExtent %g must be at least 1", cfg.CutoutExtent)
	case !(cfg.NSigmaOutlier > 0):
		return fmt.Errorf("nSigmaOutlier %g must be positive", cfg.NSigmaOutlier)
	case !(cfg.AnnulusWidth > 0):
		return fmt.Errorf("annulusWidth %g must be positive", cfg.AnnulusWidth)
	case !(cfg.Eta > 0 && cfg.Eta < 1):
		return fmt.Errorf("eta %g must be in (0,1)", cfg.Eta)
	case !(cfg.PetroFractionGini > 0):
		return fmt.Errorf("petroFractionGini %g must be positive", cfg.PetroFractionGini)
	case cfg.BorderSize < 0:
		return fmt.Errorf("borderSize %d must not be negative", cfg.BorderSize)
	case cfg.SkyboxSize < 1:
		return fmt.Errorf("skyboxSize %d must be positive", cfg.SkyboxSize)
	case !(cfg.PetroExtentCirc > 0):
		return fmt.Errorf("petroExtentCirc %g must be positive", cfg.PetroExtentCirc)
	case !(cfg.PetroFractionCAS > 0):
		return fmt.Errorf("petroFractionCAS %g must be positive", cfg.PetroFractionCAS)
	case !(cfg.BoxcarSizeMID >= 1):
		return fmt.Errorf("boxcarSizeMID %g must be at least 1", cfg.BoxcarSizeMID)
	case cfg.NiterBHMID < 0:
		return fmt.Errorf("niterBHMID %d must not be negative", cfg.NiterBHMID)
	case !(cfg.SigmaMID >= 0):
		return fmt.Errorf("sigmaMID %g must not be negative", cfg.SigmaMID)
	case !(cfg.PetroExtentEllip > 0):
		return fmt.Errorf("petroExtentEllip %g must be positive", cfg.PetroExtentEllip)
	case !(cfg.BoxcarSizeShapeAsym >= 1):
		return fmt.Errorf("boxcarSizeShapeAsym %g must be at least 1", cfg.BoxcarSizeShapeAsym)
	case !(cfg.SegmapOverlapRatio >= 0 && cfg.SegmapOverlapRatio <= 1):
		return fmt.Errorf("segmapOverlapRatio %g must be in [0,1]", cfg.SegmapOverlapRatio)
	}
	return nil
}
