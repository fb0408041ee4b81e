// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

// TestLogWriter checks that log lines reach both stdout and the log file.
func TestLogWriter(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	w := &LogWriter{Stdout: &stdout}

	logFile := filepath.Join(t.TempDir(), "logs", "hdengine.log")
	require.NoError(t, w.InitLogRotator(logFile, 1, 3))

	logger := btclog.NewBackend(w).Logger("TEST")
	logger.Infof("derived %d addresses", 20)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.Contains(t, stdout.String(), "[INF] TEST: derived 20 addresses")

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(contents), "[INF] TEST: derived 20 addresses")
}

// TestNewSubLogger checks that default builds use the provided constructor.
func TestNewSubLogger(t *testing.T) {
	t.Parallel()

	var called string
	logger := NewSubLogger("KMGR", func(subsystem string) btclog.Logger {
		called = subsystem
		return btclog.Disabled
	})

	if LoggingType == LogTypeDefault {
		require.Equal(t, "KMGR", called)
	}
	require.NotNil(t, logger)

	require.Equal(t, "none", LogTypeNone.String())
	require.Equal(t, "stdout", LogTypeStdOut.String())
	require.Equal(t, "default", LogTypeDefault.String())
	require.Equal(t, "unknown", LogType(9).String())
}
