package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PlaceholderAccessKey, cfg.Unsplash.AccessKey)
	assert.Equal(t, "https://api.unsplash.com", cfg.Unsplash.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Unsplash.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Refresh.Interval)
	assert.False(t, cfg.Refresh.SkipIfRunning)
	assert.Equal(t, 8046, cfg.API.Port)
	assert.True(t, cfg.API.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "opposite-clock", cfg.MQTT.TopicPrefix)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`unsplash:
  access_key: abc123
refresh:
  interval: 5m
  skip_if_running: true
location:
  timezone: Europe/Paris
mqtt:
  enabled: true
  broker: tcp://broker:1883
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "abc123", cfg.Unsplash.AccessKey)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.True(t, cfg.Refresh.SkipIfRunning)
	assert.Equal(t, "Europe/Paris", cfg.Location.Timezone)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	// untouched keys keep their defaults
	assert.Equal(t, 8046, cfg.API.Port)
}

func TestLoad_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9000\n"), 0o600))
	t.Setenv("OPPOSITE_CLOCK_UNSPLASH_ACCESS_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Unsplash.AccessKey)
	assert.Equal(t, 9000, cfg.API.Port)
}

func TestSaveAccessKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9100\n"), 0o600))

	require.NoError(t, SaveAccessKey(path, "new-key"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "new-key", cfg.Unsplash.AccessKey)
	assert.Equal(t, 9100, cfg.API.Port)
}

func TestSaveAccessKey_WritesToLoadedFile(t *testing.T) {
	confDir := t.TempDir()
	loaded := filepath.Join(confDir, "config.yaml")
	require.NoError(t, os.WriteFile(loaded, []byte("api:\n  port: 9200\nlocation:\n  timezone: Asia/Tokyo\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.Chdir(confDir))
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.File)
	assert.Equal(t, cfg.File, cfg.SavePath())

	// the service may run from anywhere once loaded
	otherDir := t.TempDir()
	require.NoError(t, os.Chdir(otherDir))
	require.NoError(t, SaveAccessKey(cfg.SavePath(), "saved-key"))

	_, err = os.Stat(filepath.Join(otherDir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "no stub config in the working directory")

	reloaded, err := Load(loaded)
	require.NoError(t, err)
	assert.Equal(t, "saved-key", reloaded.Unsplash.AccessKey)
	assert.Equal(t, 9200, reloaded.API.Port)
	assert.Equal(t, "Asia/Tokyo", reloaded.Location.Timezone)
}

func TestSavePath_NoFileLoaded(t *testing.T) {
	assert.Equal(t, "config.yaml", (&Config{}).SavePath())
	assert.Equal(t, "/etc/opposite-clock/config.yaml", (&Config{File: "/etc/opposite-clock/config.yaml"}).SavePath())
}

func TestSaveAccessKey_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.yaml")

	require.NoError(t, SaveAccessKey(path, "k"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Unsplash.AccessKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPPOSITE_CLOCK_API_PORT=9001\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("OPPOSITE_CLOCK_API_PORT") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api:\n  enabled: true\n"), 0o600))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.API.Port)
}

func TestLoad_CORSOrigins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api:\n  cors_origins:\n    - https://widget.example\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://widget.example"}, cfg.API.CORSOrigins)
}
