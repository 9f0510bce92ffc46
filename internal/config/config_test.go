package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 1280, cfg.CaptureW)
	assert.Equal(t, 720, cfg.CaptureH)
	assert.True(t, cfg.Mirror)
	assert.False(t, cfg.AutoStart)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HANDGLOW_ADDR", ":9090")
	t.Setenv("HANDGLOW_CAMERA", "2")
	t.Setenv("HANDGLOW_MIRROR", "false")
	t.Setenv("HANDGLOW_CAPTURE_WIDTH", "not-a-number")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 2, cfg.CameraID)
	assert.False(t, cfg.Mirror)
	assert.Equal(t, 1280, cfg.CaptureW, "invalid ints keep the default")
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HANDGLOW_VIEWPORT_WIDTH=640\nHANDGLOW_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("HANDGLOW_VIEWPORT_WIDTH")
		os.Unsetenv("HANDGLOW_LOG_LEVEL")
	})

	cfg := Load(envFile)

	assert.Equal(t, 640, cfg.ViewportW)
	assert.Equal(t, "debug", cfg.LogLevel)
}
