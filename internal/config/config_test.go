package config

import (
	"element-scout/pkg/apperr"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetConfigDefaults(t *testing.T) {
	conf, err := GetConfig(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "info", conf.AppConfig.LogLevel)
	assert.Equal(t, 30000, conf.BrowserConfig.Timeout)
	assert.Equal(t, 3*time.Minute, conf.CaptureConfig.IdleTimeout)
	assert.Equal(t, 1500, conf.CaptureConfig.MaxScanElements)
	assert.True(t, conf.CaptureConfig.Enrich)
	assert.False(t, conf.CaptureConfig.HiddenScan)
	assert.Equal(t, "./captures", conf.OutputConfig.Dir)
	assert.False(t, conf.OutputConfig.Screenshot)
}

func TestGetConfigEnv(t *testing.T) {
	t.Setenv("CAPTURE_FILTERS", "button, .nav-link")
	t.Setenv("CAPTURE_IDLE_TIMEOUT", "45s")
	t.Setenv("CAPTURE_MAX_SCAN_ELEMENTS", "200")
	t.Setenv("BROWSER_HEADLESS", "true")
	t.Setenv("BROWSER_PROXY_SERVER", "http://proxy:3128")
	t.Setenv("OUTPUT_DIR", "/tmp/scout-out")

	conf, err := GetConfig(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "button, .nav-link", conf.CaptureConfig.Filters)
	assert.Equal(t, 45*time.Second, conf.CaptureConfig.IdleTimeout)
	assert.Equal(t, 200, conf.CaptureConfig.MaxScanElements)
	assert.True(t, conf.BrowserConfig.Headless)
	assert.Equal(t, "http://proxy:3128", conf.BrowserConfig.ProxyServer)
	assert.Equal(t, "/tmp/scout-out", conf.OutputConfig.Dir)
}

func TestGetConfigFile(t *testing.T) {
	t.Run("file settings overlay the environment", func(t *testing.T) {
		t.Setenv("CAPTURE_FILTERS", "a")
		path := writeConfigFile(t, `
logLevel: debug
browser:
  headless: true
  slowMo: 50
capture:
  filters: "button"
  idleTimeout: "90s"
  maxScanElements: 300
  enrich: false
output:
  dir: "/tmp/from-file"
`)

		conf, err := GetConfig(Overrides{ConfigFile: path})
		require.NoError(t, err)

		assert.Equal(t, "debug", conf.AppConfig.LogLevel)
		assert.True(t, conf.BrowserConfig.Headless)
		assert.Equal(t, 50, conf.BrowserConfig.SlowMo)
		assert.Equal(t, "button", conf.CaptureConfig.Filters)
		assert.Equal(t, 90*time.Second, conf.CaptureConfig.IdleTimeout)
		assert.Equal(t, 300, conf.CaptureConfig.MaxScanElements)
		assert.False(t, conf.CaptureConfig.Enrich)
		assert.Equal(t, "/tmp/from-file", conf.OutputConfig.Dir)
	})

	t.Run("unset file keys keep their previous values", func(t *testing.T) {
		path := writeConfigFile(t, "capture:\n  filters: \"button\"\n")

		conf, err := GetConfig(Overrides{ConfigFile: path})
		require.NoError(t, err)

		assert.Equal(t, 3*time.Minute, conf.CaptureConfig.IdleTimeout)
		assert.Equal(t, "./captures", conf.OutputConfig.Dir)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := GetConfig(Overrides{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
		require.Error(t, err)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeConfigFile(t, "capture: [not a map")
		_, err := GetConfig(Overrides{ConfigFile: path})
		require.Error(t, err)
	})

	t.Run("bad idle timeout is an error", func(t *testing.T) {
		path := writeConfigFile(t, "capture:\n  idleTimeout: \"banana\"\n")
		_, err := GetConfig(Overrides{ConfigFile: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idleTimeout")
	})
}

func TestGetConfigOverrides(t *testing.T) {
	t.Run("flags beat the file and the environment", func(t *testing.T) {
		t.Setenv("CAPTURE_FILTERS", "a")
		path := writeConfigFile(t, "capture:\n  filters: \"button\"\n")

		conf, err := GetConfig(Overrides{
			ConfigFile: path,
			TargetURL:  "https://example.com",
			Filters:    "#loginBtn",
			OutputDir:  "/tmp/flag-out",
		})
		require.NoError(t, err)

		assert.Equal(t, "https://example.com", conf.CaptureConfig.TargetURL)
		assert.Equal(t, "#loginBtn", conf.CaptureConfig.Filters)
		assert.Equal(t, "/tmp/flag-out", conf.OutputConfig.Dir)
	})

	t.Run("boolean flags distinguish unset from false", func(t *testing.T) {
		t.Setenv("BROWSER_HEADLESS", "true")

		conf, err := GetConfig(Overrides{})
		require.NoError(t, err)
		assert.True(t, conf.BrowserConfig.Headless)

		off := false
		conf, err = GetConfig(Overrides{Headless: &off})
		require.NoError(t, err)
		assert.False(t, conf.BrowserConfig.Headless)

		on := true
		conf, err = GetConfig(Overrides{HiddenScan: &on})
		require.NoError(t, err)
		assert.True(t, conf.CaptureConfig.HiddenScan)
	})
}

func TestGetConfigValidatesFilters(t *testing.T) {
	_, err := GetConfig(Overrides{Filters: "button, !!"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidFilter))
}
