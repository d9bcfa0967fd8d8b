package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the whole application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Binding BindingConfig `mapstructure:"binding" yaml:"binding"`
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Trace   TraceConfig   `mapstructure:"trace" yaml:"trace"`
	Form    FormConfig    `mapstructure:"form" yaml:"form"`
}

// LoggerConfig controls the console log and the optional rotated log file.
type LoggerConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
	// LogFile receives a JSON copy of every entry when set.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Bin        string `mapstructure:"bin" yaml:"bin"`
	Headless   bool   `mapstructure:"headless" yaml:"headless"`
	ProfileDir string `mapstructure:"profile_dir" yaml:"profile_dir"`
	// Flags are handed to Chrome unparsed.
	Flags    []string       `mapstructure:"flags" yaml:"flags"`
	URLs     []string       `mapstructure:"urls" yaml:"urls"`
	Viewport map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// EngineConfig tunes the step executor.
type EngineConfig struct {
	LocateTimeout time.Duration `mapstructure:"locate_timeout" yaml:"locate_timeout"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	BypassTimeout time.Duration `mapstructure:"bypass_timeout" yaml:"bypass_timeout"`
	WindowTimeout time.Duration `mapstructure:"window_timeout" yaml:"window_timeout"`
	StepDelay     time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// BindingConfig controls how input values are threaded into the script.
type BindingConfig struct {
	// Template is a step template file. Empty means the built-in one.
	Template        string `mapstructure:"template" yaml:"template"`
	Terminator      string `mapstructure:"terminator" yaml:"terminator"`
	MilestonePrefix string `mapstructure:"milestone_prefix" yaml:"milestone_prefix"`
	SentinelField   string `mapstructure:"sentinel_field" yaml:"sentinel_field"`
	SentinelValue   string `mapstructure:"sentinel_value" yaml:"sentinel_value"`
	QuantityDefault string `mapstructure:"quantity_default" yaml:"quantity_default"`
}

// ProjectConfig controls the artifacts written after a run.
type ProjectConfig struct {
	JobDirs  []string `mapstructure:"job_dirs" yaml:"job_dirs"`
	QuoteLog string   `mapstructure:"quote_log" yaml:"quote_log"`
}

// TraceConfig controls run recording.
type TraceConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	MaxWidth int    `mapstructure:"max_width" yaml:"max_width"`
	FPS      int    `mapstructure:"fps" yaml:"fps"`
}

// FormConfig locates saved inputs.
type FormConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "takeoff.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.flags", []string{"start-maximized", "disable-extensions"})
	v.SetDefault("browser.urls", []string{"https://6516658-sb1.app.netsuite.com/app/common/custom/custrecordentry.nl?rectype=207"})
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})

	// -- Engine --
	v.SetDefault("engine.locate_timeout", "20s")
	v.SetDefault("engine.probe_timeout", "2s")
	v.SetDefault("engine.bypass_timeout", "3s")
	v.SetDefault("engine.window_timeout", "20s")
	v.SetDefault("engine.step_delay", "300ms")
	v.SetDefault("engine.poll_interval", "200ms")

	// -- Binding --
	v.SetDefault("binding.template", "")
	v.SetDefault("binding.terminator", "tab")
	v.SetDefault("binding.milestone_prefix", "SALES - ")
	v.SetDefault("binding.sentinel_field", "Choose")
	v.SetDefault("binding.sentinel_value", "DONE")
	v.SetDefault("binding.quantity_default", "1")

	// -- Project --
	v.SetDefault("project.job_dirs", []string{
		"Correspondence",
		"Info to B drive",
		"Purchase Order",
		"RFQ",
		"Specifications",
		"Submittal",
	})
	v.SetDefault("project.quote_log", "quote-log.csv")

	// -- Trace --
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.dir", "traces")
	v.SetDefault("trace.max_width", 960)
	v.SetDefault("trace.fps", 2)

	// -- Form --
	v.SetDefault("form.path", "takeoff-form.yaml")
}

// Load reads file (if given, otherwise takeoff.yaml from the working
// directory when present) and TAKEOFF_* environment variables into v.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("TAKEOFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("takeoff")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns the configuration with only defaults applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if len(c.Browser.URLs) == 0 {
		return fmt.Errorf("browser.urls must name at least one start page")
	}
	if c.Engine.LocateTimeout <= 0 {
		return fmt.Errorf("engine.locate_timeout must be a positive duration")
	}
	if c.Engine.WindowTimeout <= 0 {
		return fmt.Errorf("engine.window_timeout must be a positive duration")
	}
	if c.Engine.ProbeTimeout < 0 || c.Engine.BypassTimeout < 0 || c.Engine.StepDelay < 0 {
		return fmt.Errorf("engine timeouts and delays cannot be negative")
	}
	switch c.Binding.Terminator {
	case "", "tab", "enter", "none":
	default:
		return fmt.Errorf("binding.terminator must be one of tab, enter, none")
	}
	if err := c.Trace.Validate(); err != nil {
		return fmt.Errorf("trace configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the trace settings.
func (t *TraceConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.Dir == "" {
		return fmt.Errorf("dir is required when tracing is enabled")
	}
	if t.FPS <= 0 {
		return fmt.Errorf("fps must be greater than 0")
	}
	if t.MaxWidth < 0 {
		return fmt.Errorf("max_width cannot be negative")
	}
	return nil
}

// ViewportSize returns the configured window size, or zeros when unset.
func (b BrowserConfig) ViewportSize() (width, height int) {
	return b.Viewport["width"], b.Viewport["height"]
}
