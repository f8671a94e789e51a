package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")

	logger, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	logger.Info("upstream reachable", zap.String("base", "http://repo/server/api"))
	logger.Debug("dropped below level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"upstream reachable"`)
	assert.NotContains(t, string(data), "dropped below level")
}

func TestNamedAndWithKeepWrapper(t *testing.T) {
	logger := NewNop().Named("gateway").With(zap.String("k", "v"))
	require.NotNil(t, logger)
	require.NotNil(t, logger.Logger)
}

func TestDefaultConstructorsNeverReturnNil(t *testing.T) {
	assert.NotNil(t, NewDefault())
	assert.NotNil(t, NewDevelopment())
}
