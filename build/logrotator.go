// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

// LogWriter is the log backend writer.  Output is written to stdout and,
// once InitLogRotator was called, to a rotating log file.
type LogWriter struct {
	// Stdout receives every log line.  It defaults to os.Stdout.
	Stdout io.Writer

	rotator *rotator.Rotator
	pipe    *io.PipeWriter
	done    chan struct{}
}

// NewLogWriter returns a LogWriter writing to stdout only.
func NewLogWriter() *LogWriter {
	return &LogWriter{Stdout: os.Stdout}
}

// InitLogRotator creates the log directory and starts writing log output to
// logFile, rolling it over when it exceeds maxSizeMB and keeping at most
// maxFiles old logs.
func (w *LogWriter) InitLogRotator(logFile string, maxSizeMB,
	maxFiles int) error {

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	r, err := rotator.New(logFile, int64(maxSizeMB*1024), false, maxFiles)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)

		err := r.Run(pr)
		if err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "log rotator stopped: %v\n", err)
		}
	}()

	w.rotator = r
	w.pipe = pw
	w.done = done

	return nil
}

// Write writes p to stdout and the log rotator.
func (w *LogWriter) Write(p []byte) (int, error) {
	if w.Stdout != nil {
		w.Stdout.Write(p)
	}
	if w.pipe != nil {
		w.pipe.Write(p)
	}

	return len(p), nil
}

// Close flushes the log rotator and closes the log file.
func (w *LogWriter) Close() error {
	if w.pipe == nil {
		return nil
	}

	w.pipe.Close()
	<-w.done
	w.pipe = nil

	return w.rotator.Close()
}
