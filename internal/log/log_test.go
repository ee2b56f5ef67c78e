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

package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogAlsoToFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	l := Component("morph")
	l.Warn().Int32("label", 7).Msg("skybox not found")
	LogPrintf("label,gini\n")
	SetLevel(zerolog.ErrorLevel)
	l = Component("morph")
	l.Info().Msg("suppressed")
	SetLevel(zerolog.InfoLevel)
	LogSync()

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{`"component":"morph"`, `"label":7`, `"level":"warn"`, "label,gini\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("log file lacks %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "suppressed") {
		t.Errorf("message below level was written:\n%s", text)
	}
}

func TestConcurrentLogging(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "batch.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	const workers, lines = 4, 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			l := Component("morph")
			for j := 0; j < lines; j++ {
				l.Warn().Int("worker", worker).Int("line", j).Msg("flag raised")
				if j%50 == 0 {
					LogSync()
				}
			}
		}(i)
	}
	wg.Wait()
	LogSync()

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			t.Fatalf("garbled line %q", line)
		}
		n++
	}
	if n != workers*lines {
		t.Errorf("got %d lines; want %d", n, workers*lines)
	}
}
