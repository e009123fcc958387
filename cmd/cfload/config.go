package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tinytelemetry/cfload/internal/logging"
	"github.com/tinytelemetry/cfload/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "CFLOAD"
	defaultLogLevel      = "info"
	defaultLogMaxSize    = 100 // megabytes
	defaultLogMaxBackups = 3
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	BatchSize      int           `mapstructure:"batch-size" yaml:"batch-size"`
	Extension      string        `mapstructure:"extension" yaml:"extension"`
	MaxLineSize    int           `mapstructure:"max-line-size" yaml:"max-line-size"`
	LogLevel       string        `mapstructure:"log-level" yaml:"log-level"`
	LogFile        string        `mapstructure:"log-file" yaml:"log-file"`
	LogMaxSize     int           `mapstructure:"log-max-size" yaml:"log-max-size"`
	LogMaxBackups  int           `mapstructure:"log-max-backups" yaml:"log-max-backups"`
	LogCompress    bool          `mapstructure:"log-compress" yaml:"log-compress"`
	MetricsFile    string        `mapstructure:"metrics-file" yaml:"metrics-file"`
	PushgatewayURL string        `mapstructure:"pushgateway-url" yaml:"pushgateway-url"`
	APIAddr        string        `mapstructure:"api-addr" yaml:"api-addr"`
	QueryTimeout   time.Duration `mapstructure:"query-timeout" yaml:"query-timeout"`
	ConfigPath     string        `mapstructure:"-" yaml:"-"` // not from config file
}

// configDefaults lists every key with its default. Flags of the same name
// are bound to the key when present on the command.
var configDefaults = map[string]any{
	"batch-size":      model.DefaultBatchSize,
	"extension":       model.DefaultExtension,
	"max-line-size":   model.DefaultMaxLineSize,
	"log-level":       defaultLogLevel,
	"log-file":        "",
	"log-max-size":    defaultLogMaxSize,
	"log-max-backups": defaultLogMaxBackups,
	"log-compress":    false,
	"metrics-file":    "",
	"pushgateway-url": "",
	"api-addr":        model.DefaultAPIAddr,
	"query-timeout":   model.DefaultQueryTimeout,
}

func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	for key, def := range configDefaults {
		v.SetDefault(key, def)
		if flags == nil {
			continue
		}
		if f := flags.Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return cfg, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "cfload", "config.yml"))
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}
	return cfg, cfg.validate()
}

func (c appConfig) validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid batch-size: %d", c.BatchSize))
	}
	if c.MaxLineSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid max-line-size: %d", c.MaxLineSize))
	}
	if c.Extension == "" {
		errs = append(errs, errors.New("extension must not be empty"))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid query-timeout: %s", c.QueryTimeout))
	}
	return errors.Join(errs...)
}

func (c appConfig) logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		File:       c.LogFile,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		Compress:   c.LogCompress,
	}
}

// writeConfig dumps the effective configuration as YAML.
func writeConfig(w io.Writer, cfg appConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
