// Package config loads the pipeline configuration and derives every
// on-disk path from a single root directory, so no component depends on
// ambient process-wide state.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Root  string      `yaml:"root" mapstructure:"root"`
	Inbox InboxConfig `yaml:"inbox" mapstructure:"inbox"`
	Tools ToolsConfig `yaml:"tools" mapstructure:"tools"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// InboxConfig configures document discovery and settling.
type InboxConfig struct {
	SettleChecks  int `yaml:"settle_checks" mapstructure:"settle_checks"`
	SettleDelayMS int `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	PollSecs      int `yaml:"poll_secs" mapstructure:"poll_secs"`
}

// ToolsConfig names the external tool binaries.
type ToolsConfig struct {
	Mutool   string `yaml:"mutool" mapstructure:"mutool"`
	Pdfsig   string `yaml:"pdfsig" mapstructure:"pdfsig"`
	Exiftool string `yaml:"exiftool" mapstructure:"exiftool"`
	Otfinfo  string `yaml:"otfinfo" mapstructure:"otfinfo"`
	FcScan   string `yaml:"fc_scan" mapstructure:"fc_scan"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// InboxDir is the watched directory documents are dropped into.
func (c *Config) InboxDir() string { return filepath.Join(c.Root, "pdf") }

// ObjectsDir holds one extraction tree per document.
func (c *Config) ObjectsDir() string { return filepath.Join(c.Root, "pdf-objects") }

// StoreDir holds the content-addressed dedup store.
func (c *Config) StoreDir() string { return filepath.Join(c.Root, "hashed-objects") }

// InflightDir holds per-hash in-flight markers.
func (c *Config) InflightDir() string { return filepath.Join(c.Root, ".locks", "inflight") }

// LedgerPath is the objects table file.
func (c *Config) LedgerPath() string { return filepath.Join(c.Root, "objects.tsv") }

// HashCountPath is the derived hash-count table file.
func (c *Config) HashCountPath() string { return filepath.Join(c.Root, "hash-count.tsv") }

// ProcessedPath is the processed-record table file.
func (c *Config) ProcessedPath() string { return filepath.Join(c.Root, "processed.tsv") }

// SettleDelay is the pause between settle checks.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Inbox.SettleDelayMS) * time.Millisecond
}

// PollInterval is the scan cadence when native change notification is
// unavailable.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Inbox.PollSecs) * time.Second
}

// SetDefaults registers every default on v. Shared with `docketry init`,
// which writes them out as a starter config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("inbox.settle_checks", 10)
	v.SetDefault("inbox.settle_delay_ms", 300)
	v.SetDefault("inbox.poll_secs", 5)
	v.SetDefault("tools.mutool", "mutool")
	v.SetDefault("tools.pdfsig", "pdfsig")
	v.SetDefault("tools.exiftool", "exiftool")
	v.SetDefault("tools.otfinfo", "otfinfo")
	v.SetDefault("tools.fc_scan", "fc-scan")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from config.yaml and DOCKETRY_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCKETRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
