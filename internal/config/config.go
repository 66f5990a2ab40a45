package config

import (
	"element-scout/internal/filter"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppConfig     *AppConfig
	BrowserConfig *BrowserConfig
	CaptureConfig *CaptureConfig
	OutputConfig  *OutputConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type BrowserConfig struct {
	Headless      bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo        int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout       int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	UserDataDir   string `envconfig:"BROWSER_USER_DATA_DIR" default:"./browser-data"`
	ProxyServer   string `envconfig:"BROWSER_PROXY_SERVER"`
	ProxyUsername string `envconfig:"BROWSER_PROXY_USERNAME"`
	ProxyPassword string `envconfig:"BROWSER_PROXY_PASSWORD"`
	ProxyBypass   string `envconfig:"BROWSER_PROXY_BYPASS"`
}

type CaptureConfig struct {
	TargetURL       string        `envconfig:"CAPTURE_TARGET_URL"`
	Filters         string        `envconfig:"CAPTURE_FILTERS"`
	IdleTimeout     time.Duration `envconfig:"CAPTURE_IDLE_TIMEOUT" default:"3m"`
	MaxScanElements int           `envconfig:"CAPTURE_MAX_SCAN_ELEMENTS" default:"1500"`
	Enrich          bool          `envconfig:"CAPTURE_ENRICH" default:"true"`
	HiddenScan      bool          `envconfig:"CAPTURE_HIDDEN_SCAN" default:"false"`
}

type OutputConfig struct {
	Dir        string `envconfig:"OUTPUT_DIR" default:"./captures"`
	Screenshot bool   `envconfig:"OUTPUT_SCREENSHOT" default:"false"`
}

// Overrides carries the command line flags that take precedence over both
// the environment and the optional config file. Pointer fields distinguish
// "flag not given" from an explicit false.
type Overrides struct {
	ConfigFile string
	TargetURL  string
	Filters    string
	OutputDir  string
	Headless   *bool
	HiddenScan *bool
}

func GetConfig(ov Overrides) (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if ov.ConfigFile != "" {
		if err := applyFile(&conf, ov.ConfigFile); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", ov.ConfigFile, err)
		}
	}

	applyOverrides(&conf, ov)

	if _, err := filter.ParseSet(conf.CaptureConfig.Filters); err != nil {
		return nil, fmt.Errorf("validate capture filters: %w", err)
	}

	return &conf, nil
}

type fileConfig struct {
	LogLevel *string `yaml:"logLevel"`
	Debug    *bool   `yaml:"debug"`

	Browser struct {
		Headless    *bool   `yaml:"headless"`
		SlowMo      *int    `yaml:"slowMo"`
		Timeout     *int    `yaml:"timeout"`
		UserDataDir *string `yaml:"userDataDir"`
		ProxyServer *string `yaml:"proxyServer"`
	} `yaml:"browser"`

	Capture struct {
		TargetURL       *string `yaml:"targetUrl"`
		Filters         *string `yaml:"filters"`
		IdleTimeout     *string `yaml:"idleTimeout"`
		MaxScanElements *int    `yaml:"maxScanElements"`
		Enrich          *bool   `yaml:"enrich"`
		HiddenScan      *bool   `yaml:"hiddenScan"`
	} `yaml:"capture"`

	Output struct {
		Dir        *string `yaml:"dir"`
		Screenshot *bool   `yaml:"screenshot"`
	} `yaml:"output"`
}

func applyFile(conf *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.LogLevel != nil {
		conf.AppConfig.LogLevel = *fc.LogLevel
	}
	if fc.Debug != nil {
		conf.AppConfig.Debug = *fc.Debug
	}

	if fc.Browser.Headless != nil {
		conf.BrowserConfig.Headless = *fc.Browser.Headless
	}
	if fc.Browser.SlowMo != nil {
		conf.BrowserConfig.SlowMo = *fc.Browser.SlowMo
	}
	if fc.Browser.Timeout != nil {
		conf.BrowserConfig.Timeout = *fc.Browser.Timeout
	}
	if fc.Browser.UserDataDir != nil {
		conf.BrowserConfig.UserDataDir = *fc.Browser.UserDataDir
	}
	if fc.Browser.ProxyServer != nil {
		conf.BrowserConfig.ProxyServer = *fc.Browser.ProxyServer
	}

	if fc.Capture.TargetURL != nil {
		conf.CaptureConfig.TargetURL = *fc.Capture.TargetURL
	}
	if fc.Capture.Filters != nil {
		conf.CaptureConfig.Filters = *fc.Capture.Filters
	}
	if fc.Capture.IdleTimeout != nil {
		d, err := time.ParseDuration(*fc.Capture.IdleTimeout)
		if err != nil {
			return fmt.Errorf("parse idleTimeout: %w", err)
		}
		conf.CaptureConfig.IdleTimeout = d
	}
	if fc.Capture.MaxScanElements != nil {
		conf.CaptureConfig.MaxScanElements = *fc.Capture.MaxScanElements
	}
	if fc.Capture.Enrich != nil {
		conf.CaptureConfig.Enrich = *fc.Capture.Enrich
	}
	if fc.Capture.HiddenScan != nil {
		conf.CaptureConfig.HiddenScan = *fc.Capture.HiddenScan
	}

	if fc.Output.Dir != nil {
		conf.OutputConfig.Dir = *fc.Output.Dir
	}
	if fc.Output.Screenshot != nil {
		conf.OutputConfig.Screenshot = *fc.Output.Screenshot
	}

	return nil
}

func applyOverrides(conf *Config, ov Overrides) {
	if ov.TargetURL != "" {
		conf.CaptureConfig.TargetURL = ov.TargetURL
	}
	if ov.Filters != "" {
		conf.CaptureConfig.Filters = ov.Filters
	}
	if ov.OutputDir != "" {
		conf.OutputConfig.Dir = ov.OutputDir
	}
	if ov.Headless != nil {
		conf.BrowserConfig.Headless = *ov.Headless
	}
	if ov.HiddenScan != nil {
		conf.CaptureConfig.HiddenScan = *ov.HiddenScan
	}
}
