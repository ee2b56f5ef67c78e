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

// Package log provides the process-wide logger. Writes to stdout, and optionally to a file.
package log

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu        sync.Mutex
	console   io.Writer     = os.Stdout
	logFile   *bufio.Writer // the optional additional file to log into
	logFileOS *os.File
	level     = zerolog.InfoLevel
	logger    = newLogger()
)

// Serializes writes to the console and the log file with LogPrintf and LogSync
type lockedWriter struct {
	w io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return lw.w.Write(p)
}

func newLogger() zerolog.Logger {
	var w io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	if logFile != nil {
		w = zerolog.MultiLevelWriter(w, logFile)
	}
	return zerolog.New(lockedWriter{w}).Level(level).With().Timestamp().Logger()
}

// Sets the minimum level of structured log messages
func SetLevel(l zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	logger = newLogger()
}

// Enables logging to file. Structured messages go to the file as JSON lines.
func LogAlsoToFile(fileName string) (err error) {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		if err = logFile.Flush(); err != nil {
			return err
		}
		if err = logFileOS.Close(); err != nil {
			return err
		}
		logFile, logFileOS = nil, nil
	}
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	logFileOS, logFile = f, bufio.NewWriter(f)
	logger = newLogger()
	return nil
}

// Returns the process logger
func Logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Returns the process logger tagged with a component name
func Component(name string) zerolog.Logger {
	l := Logger()
	return l.With().Str("component", name).Logger()
}

// Prints unstructured text to stdout and the log file, without prefixes or forced newlines
func LogPrintf(format string, args ...interface{}) (n int, err error) {
	mu.Lock()
	defer mu.Unlock()
	n, err = fmt.Fprintf(console, format, args...)
	if err != nil || logFile == nil {
		return n, err
	}
	return fmt.Fprintf(logFile, format, args...)
}

// Logs the message at fatal level, flushes the log file and exits
func LogFatalf(format string, args ...interface{}) {
	l := Logger()
	l.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	LogSync()
	os.Exit(1)
}

// Flushes the log file to disk
func LogSync() {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	logFile.Flush()
	logFileOS.Sync()
}
