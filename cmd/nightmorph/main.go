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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/nightmorph/internal/fits"
	"github.com/mlnoga/nightmorph/internal/log"
	"github.com/mlnoga/nightmorph/internal/morph"
	"github.com/mlnoga/nightmorph/internal/rest"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "", "save results to `file` instead of stdout")
var logFile = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var logLevel = flag.String("logLevel", "info", "minimum log level, one of debug, info, warn, error")
var asJSON = flag.Bool("json", false, "write one JSON object per source instead of CSV")
var label = flag.Int("label", 0, "measure only the source with this label, 0=all")
var png = flag.String("png", "", "save segmap overlays per source with given filename prefix, e.g. `overlay` for overlay7.png")
var maxThreads = flag.Int("maxThreads", 0, "maximum number of sources measured in parallel, 0=number of physical cores")

var configFile = flag.String("config", "", "read measurement parameters from JSON `file`. Flags given explicitly take precedence")

var addr = flag.String("addr", ":8080", "listen address for serve")
var chroot = flag.String("chroot", "", "change filesystem root to `dir` before serving")
var setuid = flag.Int("setuid", -1, "change user id to `uid` before serving, -1=keep")

// Measurement parameters, one flag per configuration field named like its JSON key
var cfgFlags = morph.NewConfigDefaults()

func init() {
	c := cfgFlags
	flag.Float64Var(&c.CutoutExtent, "cutoutExtent", c.CutoutExtent, "stamp size relative to the source bounding box")
	flag.BoolVar(&c.RemoveOutliers, "removeOutliers", c.RemoveOutliers, "zero bad pixels before measuring")
	flag.Float64Var(&c.NSigmaOutlier, "nSigmaOutlier", c.NSigmaOutlier, "bad pixel threshold in local standard deviations")
	flag.Float64Var(&c.AnnulusWidth, "annulusWidth", c.AnnulusWidth, "Petrosian annulus width in pixels")
	flag.Float64Var(&c.Eta, "eta", c.Eta, "Petrosian surface brightness ratio")
	flag.Float64Var(&c.PetroFractionGini, "petroFractionGini", c.PetroFractionGini, "Gini segmap smoothing in elliptical Petrosian radii")
	flag.IntVar(&c.BorderSize, "borderSize", c.BorderSize, "skybox search inset from the stamp border in pixels")
	flag.IntVar(&c.SkyboxSize, "skyboxSize", c.SkyboxSize, "initial skybox side length in pixels")
	flag.Float64Var(&c.PetroExtentCirc, "petroExtentCirc", c.PetroExtentCirc, "CAS aperture radius in circular Petrosian radii")
	flag.Float64Var(&c.PetroFractionCAS, "petroFractionCAS", c.PetroFractionCAS, "smoothness boxcar size in circular Petrosian radii")
	flag.Float64Var(&c.BoxcarSizeMID, "boxcarSizeMID", c.BoxcarSizeMID, "MID segmap boxcar size in pixels")
	flag.IntVar(&c.NiterBHMID, "niterBHMID", c.NiterBHMID, "basin-hopping iterations for multimode")
	flag.Float64Var(&c.SigmaMID, "sigmaMID", c.SigmaMID, "MID peak detection smoothing in pixels")
	flag.Float64Var(&c.PetroExtentEllip, "petroExtentEllip", c.PetroExtentEllip, "shape asymmetry background annulus in elliptical Petrosian radii")
	flag.Float64Var(&c.BoxcarSizeShapeAsym, "boxcarSizeShapeAsym", c.BoxcarSizeShapeAsym, "shape segmap boxcar size in pixels")
	flag.Float64Var(&c.SegmapOverlapRatio, "segmapOverlapRatio", c.SegmapOverlapRatio, "minimum overlap ratio of the three segmaps")
}

var seed = flag.Uint("seed", uint(cfgFlags.Seed), "basin-hopping seed, mixed with the label")

func main() {
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Nightmorph Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (morph|serve|legal|version) [image segmap [mask] [variance]]

Commands:
  morph   Measure morphology of all labeled sources. Inputs are image, segmap and optionally mask and variance,
          as FITS (optionally gzipped) or TIFF
  serve   Serve the REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	cfgFlags.Seed = uint32(*seed)

	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.LogFatalf("Invalid log level '%s'\n", *logLevel)
	}

	// Initialize logging to file in addition to stdout, if selected
	if *logFile == "%auto" {
		if *out != "" {
			*logFile = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*logFile = ""
		}
	}
	if *logFile != "" {
		if err := log.LogAlsoToFile(*logFile); err != nil {
			log.LogFatalf("Unable to open logfile '%s': %s\n", *logFile, err)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.LogFatalf("Could not create CPU profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.LogFatalf("Could not start CPU profile: %s\n", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "morph":
		err = cmdMorph(args[1:])

	case "serve":
		err = cmdServe()

	case "legal":
		log.LogPrintf("%s", legal)

	case "version":
		cmdVersion()

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(os.Stdout, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	l := log.Logger()
	l.Info().Dur("elapsed", time.Since(start)).Msg("done")

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.LogFatalf("Could not create memory profile: %s\n", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			log.LogFatalf("Could not write allocation profile: %s\n", err)
		}
	}

	if err != nil {
		log.LogFatalf("Error: %s\n", err)
	}
	log.LogSync()
}

// Creates the execution context from the flags
func newContext(component string) *morph.Context {
	c := morph.NewContext(log.Component(component))
	if *maxThreads > 0 {
		c.MaxThreads = *maxThreads
	}
	return c
}

// Returns the measurement parameters. Values from the configuration file are overridden
// by flags given explicitly on the command line.
func buildConfig() (*morph.Config, error) {
	if *configFile == "" {
		return cfgFlags, cfgFlags.Validate()
	}
	data, err := os.ReadFile(*configFile)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, fmt.Errorf("%s: %w", *configFile, err)
	}
	flagData, err := json.Marshal(cfgFlags)
	if err != nil {
		return nil, err
	}
	fromFlags := map[string]interface{}{}
	if err := json.Unmarshal(flagData, &fromFlags); err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		if v, ok := fromFlags[f.Name]; ok {
			merged[f.Name] = v
		}
	})
	if data, err = json.Marshal(merged); err != nil {
		return nil, err
	}
	cfg := &morph.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", *configFile, err)
	}
	return cfg, cfg.Validate()
}

func cmdMorph(args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("morph expects image, segmap and optionally mask and variance, got %d files", len(args))
	}
	files := make([]string, 4)
	copy(files, args)

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	c := newContext("morph")
	c.Log.Info().Int("threads", c.MaxThreads).Int("memoryMB", c.WorkMemoryMB).Msg("starting")

	in, err := fits.LoadInput(files[0], files[1], files[2], files[3], c.Log)
	if err != nil {
		return err
	}
	var labels []int32
	if *label > 0 {
		labels = []int32{int32(*label)}
	}
	results, batchErr := morph.Batch(in, cfg, c, labels...)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := writeResults(w, results, *asJSON); err != nil {
		return err
	}

	if *png != "" {
		for _, r := range results {
			s := r.Segmaps
			fileName := fmt.Sprintf("%s%d.png", *png, r.Label)
			if err := fits.WriteOverlayPNGToFile(fileName, s.Stamp, s.Gini, s.MID, s.Shape); err != nil {
				return err
			}
		}
	}

	flagged := 0
	for _, r := range results {
		if r.Flag {
			flagged++
		}
	}
	c.Log.Info().Int("sources", len(results)).Int("flagged", flagged).Msg("measured")
	return batchErr
}

// Writes results as CSV with a header line, or as one JSON object per line
func writeResults(w io.Writer, results []*morph.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	if _, err := fmt.Fprintln(w, morph.CSVHeader()); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(w, r.CSV()); err != nil {
			return err
		}
	}
	return nil
}

func cmdServe() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	c := newContext("rest")
	if err := rest.MakeSandbox(*chroot, *setuid, c.Log); err != nil {
		return err
	}
	return rest.Serve(*addr, c, cfg)
}

func cmdVersion() {
	log.LogPrintf("Version %s\n", version)
	log.LogPrintf("%s on %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	log.LogPrintf("CPU %s with %d physical cores, %d logical cores\n",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	log.LogPrintf("Memory %d MiB\n", memory.TotalMemory()/1024/1024)
}
