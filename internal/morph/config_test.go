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
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaultsAreValid(t *testing.T) {
	cfg := NewConfigDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Eta != 0.2 || cfg.SkyboxSize != 32 || cfg.Seed != 2017 || !cfg.RemoveOutliers {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfigPartialJSON(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"eta":0.3,"borderSize":2,"removeOutliers":false}`), &cfg); err != nil {
		t.Fatal(err)
	}
	want := NewConfigDefaults()
	want.Eta, want.BorderSize, want.RemoveOutliers = 0.3, 2, false
	if cfg != *want {
		t.Errorf("got %+v want %+v", cfg, *want)
	}
}

func TestConfigValidate(t *testing.T) {
	tcs := []struct {
		name   string
		modify func(*Config)
	}{
		{"cutout", func(c *Config) { c.CutoutExtent = 0.5 }},
		{"eta zero", func(c *Config) { c.Eta = 0 }},
		{"eta one", func(c *Config) { c.Eta = 1 }},
		{"annulus", func(c *Config) { c.AnnulusWidth = 0 }},
		{"border", func(c *Config) { c.BorderSize = -1 }},
		{"skybox", func(c *Config) { c.SkyboxSize = 0 }},
		{"boxcar", func(c *Config) { c.BoxcarSizeMID = 0.5 }},
		{"overlap", func(c *Config) { c.SegmapOverlapRatio = 1.5 }},
		{"sigma", func(c *Config) { c.NSigmaOutlier = -1 }},
	}
	for _, tc := range tcs {
		cfg := NewConfigDefaults()
		tc.modify(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: no error", tc.name)
		}
	}
}

func TestConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"petroExtentCirc":2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfigFromFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PetroExtentCirc != 2 || cfg.PetroFractionCAS != 0.25 {
		t.Errorf("got %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"eta":5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfigFromFile(bad); err == nil {
		t.Errorf("out of range eta: no error")
	}
	if _, err := NewConfigFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("missing file: no error")
	}
}
