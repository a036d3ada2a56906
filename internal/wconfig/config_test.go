package wconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsNonPositiveFPS(t *testing.T) {
	cfg := Default()
	cfg.FPS = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfg := Default()
	cfg.Format = "avi"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedPoolBounds(t *testing.T) {
	cfg := Default()
	cfg.Pool.NumPageMax = 1
	cfg.Pool.NumPageMin = 5
	assert.Error(t, cfg.Validate())
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 60\nformat: webm\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, FormatWebM, cfg.Format)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 60\n"), 0o644))

	t.Setenv("WVC_FPS", "24")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.FPS)
}
