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
	"fmt"

	"github.com/rs/zerolog"
)

// Sentinel value for statistics that could not be computed
const Invalid = -99.0

// Quality flags of one source. Flags are only ever raised, never cleared.
type Flags struct {
	General bool     // any degenerate condition
	Sersic  bool     // problems with the Sersic profile fit
	Reasons []string // distinct reasons, in order of first occurrence

	log  zerolog.Logger
	seen map[string]bool
}

func newFlags(log zerolog.Logger) *Flags {
	return &Flags{log: log, seen: map[string]bool{}}
}

// Raises the general flag. Each distinct stage/message pair is logged once.
func (f *Flags) Raise(stage, format string, args ...interface{}) {
	f.General = true
	f.note(stage, fmt.Sprintf(format, args...), true)
}

// Raises the Sersic fit flag
func (f *Flags) RaiseSersic(format string, args ...interface{}) {
	f.Sersic = true
	f.note("sersic", fmt.Sprintf(format, args...), true)
}

// Logs a diagnostic without raising a flag
func (f *Flags) Note(stage, format string, args ...interface{}) {
	f.note(stage, fmt.Sprintf(format, args...), false)
}

func (f *Flags) note(stage, msg string, raised bool) {
	key := stage + ": " + msg
	if f.seen[key] {
		return
	}
	f.seen[key] = true
	if raised {
		f.Reasons = append(f.Reasons, key)
		f.log.Warn().Str("stage", stage).Msg(msg)
	} else {
		f.log.Info().Str("stage", stage).Msg(msg)
	}
}

// A structural violation of the input data, such as a brightest pixel outside the region it
// must belong to. Signals upstream corruption rather than a degenerate source.
type PreconditionError struct {
	Label int32
	Stage string
	Msg   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("label %d: %s: precondition failed: %s", e.Label, e.Stage, e.Msg)
}

// Aborts the computation of the current source with a PreconditionError
func (s *source) fail(stage, format string, args ...interface{}) {
	panic(&PreconditionError{Label: s.label, Stage: stage, Msg: fmt.Sprintf(format, args...)})
}
