package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestInitWithDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, Init(Config{Dir: dir}))

	_, err := os.Stat(dir)
	require.NoError(t, err, "log directory should be created")
	require.Equal(t, log.InfoLevel, Logger.GetLevel())

	Info("test info message", "key", "value")
	Warn("test warning message")
}

func TestInitDebugMode(t *testing.T) {
	require.NoError(t, Init(Config{Debug: true}))
	require.Equal(t, log.DebugLevel, Logger.GetLevel())

	sub := With("component", "test")
	require.NotNil(t, sub)
	sub.Debug("sub logger message")
}
