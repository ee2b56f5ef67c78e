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
	"fmt"
)

// Estimated working memory per source in units of the stamp pixel count:
// about 20 float64 planes and masks alive at a time
const bytesPerStampPixel = 20 * 8

// Measures every positive label of the segmap, or only the given labels if any are passed.
// Bad pixels are removed once on a copy of the full image. Sources run in parallel, bounded by
// the thread and memory limits of the context. Results are in ascending label order and hold
// all sources that could be measured. Errors of individual sources are joined.
func Batch(in *Input, cfg *Config, c *Context, labels ...int32) ([]*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		labels = in.Segmap.Unique()
	} else if err := checkLabels(in, labels); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, nil
	}

	clean := in.Sanitized()
	numBad := -1
	if cfg.RemoveOutliers {
		numBad = RemoveBadPixels(clean.Image, cfg.NSigmaOutlier)
		c.Log.Info().Int("badPixels", numBad).Msg("removed bad pixels")
	}

	workers := batchWorkers(in, c, len(labels))
	c.Log.Info().Int("sources", len(labels)).Int("workers", workers).Msg("measuring")

	outs := make([]*Result, len(labels))
	errs := make([]error, len(labels))
	limiter := make(chan bool, workers)
	for i, l := range labels {
		limiter <- true
		go func(i int, l int32) {
			defer func() { <-limiter }()
			outs[i], errs[i] = measure(clean, l, numBad, cfg, c)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("label %d: %w", l, errs[i])
			}
		}(i, l)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	res := make([]*Result, 0, len(outs))
	for _, r := range outs {
		if r != nil {
			res = append(res, r)
		}
	}
	return res, errors.Join(errs...)
}

// Requested labels must be positive, ascending and present in the segmap
func checkLabels(in *Input, labels []int32) error {
	present := make(map[int32]bool)
	for _, l := range in.Segmap.Unique() {
		present[l] = true
	}
	for i, l := range labels {
		if l <= 0 {
			return fmt.Errorf("label %d is not positive", l)
		}
		if i > 0 && l <= labels[i-1] {
			return fmt.Errorf("labels must be ascending, got %d after %d", l, labels[i-1])
		}
		if !present[l] {
			return fmt.Errorf("label %d not found in segmap", l)
		}
	}
	return nil
}

// Number of parallel sources, limited by threads and by the working memory for the
// worst case stamp covering the full image
func batchWorkers(in *Input, c *Context, numLabels int) int {
	workers := c.MaxThreads
	if workers < 1 {
		workers = 1
	}
	if c.WorkMemoryMB > 0 {
		pixels := in.Image.Width * in.Image.Height
		perSourceMB := pixels*bytesPerStampPixel/(1024*1024) + 1
		if byMemory := c.WorkMemoryMB / perSourceMB; byMemory < workers {
			workers = maxInt(1, byMemory)
		}
	}
	return minInt(workers, numLabels)
}
