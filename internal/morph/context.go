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
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/nightmorph/internal/optim"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
)

// Finds a root of f in the bracket [a,b] to absolute tolerance xtol
type RootFinder interface {
	FindRoot(f func(float64) float64, a, b, xtol float64) (float64, error)
}

// Derivative-free local minimization from x0
type Minimizer interface {
	Minimize(f func([]float64) float64, x0 []float64) (x []float64, fx float64, err error)
}

// Stochastic global minimization from x0
type GlobalMinimizer interface {
	GlobalMinimize(f func([]float64) float64, x0 []float64, s optim.HopSettings) (x []float64, fx float64)
}

// An execution context for morphology measurements
type Context struct {
	Log             zerolog.Logger
	RootFinder      RootFinder
	Minimizer       Minimizer
	GlobalMinimizer GlobalMinimizer
	MemoryMB        int // memory.TotalMemory()/1024/1024
	WorkMemoryMB    int // MemoryMB*7/10
	MaxThreads      int `json:"maxThreads"`
}

// Creates a context with the default numerics. Threads default to the number of physical cores.
func NewContext(log zerolog.Logger) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	threads := cpuid.CPU.PhysicalCores
	if threads <= 0 || threads > runtime.GOMAXPROCS(0) {
		threads = runtime.GOMAXPROCS(0)
	}
	nm := optim.NelderMead{}
	return &Context{
		Log:             log,
		RootFinder:      optim.Brent{},
		Minimizer:       nm,
		GlobalMinimizer: optim.BasinHopping{Local: nm},
		MemoryMB:        memoryMB,
		WorkMemoryMB:    memoryMB * 7 / 10,
		MaxThreads:      threads,
	}
}
