package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	conf, err := Load(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 40, conf.MaxFilterCardinality)
	assert.Equal(t, -27.6453, conf.Map.CenterLat)
	assert.Equal(t, -48.6697, conf.Map.CenterLng)
	assert.Equal(t, 10, conf.Map.Zoom)
	assert.Equal(t, 1200, conf.Export.Width)
	assert.Equal(t, 700, conf.Export.Height)
	assert.Equal(t, 0, conf.AnalyticsTimeoutSeconds)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	body := `{"instance_name": "teste", "analytics_url": "http://engine:9000", "max_filter_cardinality": 12}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))

	conf, err := Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "teste", conf.InstanceName)
	assert.Equal(t, "http://engine:9000", conf.AnalyticsURL)
	assert.Equal(t, 12, conf.MaxFilterCardinality)
	assert.Equal(t, dir, conf.DataDir)
	// untouched sections keep defaults
	assert.Equal(t, 19, conf.Map.MaxZoom)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"analytics_url": "http://file"}`), 0o644))
	t.Setenv("SPA_ANALYTICS_URL", "http://env")
	t.Setenv("SPA_ANALYTICS_TIMEOUT_SECONDS", "15")

	conf, err := Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "http://env", conf.AnalyticsURL)
	assert.Equal(t, 15, conf.AnalyticsTimeoutSeconds)
}

func TestLoad_BadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{`), 0o644))

	_, err := Load(context.Background(), dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	conf := DefaultConfig()
	assert.NoError(t, conf.Validate())

	conf.MaxFilterCardinality = 0
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.AnalyticsURL = ""
	assert.Error(t, conf.Validate())

	conf = DefaultConfig()
	conf.SessionIdleMinutes = 0
	assert.ErrorContains(t, conf.Validate(), "session_idle_minutes")

	conf = DefaultConfig()
	conf.SessionIdleMinutes = -5
	assert.Error(t, conf.Validate())
}
