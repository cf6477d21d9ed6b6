// Package config loads wopictl settings from defaults, an optional YAML,
// JSON or TOML file, WOPICTL_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by wopictl.
const EnvPrefix = "WOPICTL"

// Config holds runtime settings for wopictl.
type Config struct {
	// Server is the host:port of the admin gRPC endpoint.
	Server string `mapstructure:"server" validate:"required"`
	// User is the admin identity placed in the minted token.
	User string `mapstructure:"user" validate:"required"`
	// SecretKey is the server root secret. When empty the CLI prompts for it.
	SecretKey string        `mapstructure:"secret_key"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// HistoryDB is the SQLite file commands are recorded in. Empty disables
	// the history.
	HistoryDB string `mapstructure:"history_db"`
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.Server = "127.0.0.1:50051"
	c.User = "admin"
	c.SecretKey = ""
	c.TokenTTL = 5 * time.Minute
	c.Timeout = 10 * time.Second
	c.HistoryDB = "wopictl.db"
}

var validate = validator.New()

// Load merges the configuration sources. flags may be nil; only flags the
// user actually set override lower sources.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	var defaults Config
	defaults.LoadDefaults()
	setDefaults(v, &defaults)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can find it.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("server", c.Server)
	v.SetDefault("user", c.User)
	v.SetDefault("secret_key", c.SecretKey)
	v.SetDefault("token_ttl", c.TokenTTL)
	v.SetDefault("timeout", c.Timeout)
	v.SetDefault("history_db", c.HistoryDB)
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"server":  "server",
	"user":    "user",
	"secret":  "secret_key",
	"timeout": "timeout",
	"history": "history_db",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func decode(settings map[string]any) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the struct tags and reports the first failing field.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Field(), e.Tag(), e.Value())
		}
		return err
	}
	return nil
}
