// Package config loads the proxy's static configuration. Mutable runtime
// state (current key, enabled model filters, auto-start flag) lives in
// internal/settings instead — this package only covers what's fixed for
// the life of the process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppName is the canonical application name, used for the config home
// directory and the env var prefix.
const AppName = "openrouter-proxy"

// Config is the root static configuration. Struct tags carry both
// mapstructure (for viper's file+env decoding) and yaml (for marshaling
// the generated default document in bootstrap.go) keys, kept identical so
// the two paths agree on field names.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter" yaml:"openrouter"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ServerConfig controls the local HTTP listener.
type ServerConfig struct {
	Host          string `mapstructure:"host" yaml:"host"`
	PortRangeFrom int    `mapstructure:"port_range_from" yaml:"port_range_from"`
	PortRangeTo   int    `mapstructure:"port_range_to" yaml:"port_range_to"`
	AutoStart     bool   `mapstructure:"auto_start" yaml:"auto_start"`
}

// OpenRouterConfig points at the upstream OpenRouter API.
type OpenRouterConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	HTTPReferer    string `mapstructure:"http_referer" yaml:"http_referer"`
	XTitle         string `mapstructure:"x_title" yaml:"x_title"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DatabaseConfig locates the settings store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls zap's construction.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// HomeDir returns the proxy's configuration home, ~/.openrouter-proxy.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Load reads config.yaml layered as: defaults -> ~/.openrouter-proxy/config.yaml
// -> ./config.yaml -> OPENROUTER_PROXY_* environment variables, highest
// priority last.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	localPath := "./config.yaml"
	if _, err := os.Stat(localPath); err == nil {
		v2 := viper.New()
		v2.SetConfigFile(localPath)
		if err := v2.ReadInConfig(); err == nil {
			_ = v.MergeConfigMap(v2.AllSettings())
		}
	}

	v.SetEnvPrefix("OPENROUTER_PROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port_range_from", 11434)
	v.SetDefault("server.port_range_to", 11534)
	v.SetDefault("server.auto_start", true)

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.http_referer", "https://github.com/DimazzzZ/openrouter-proxy-core")
	v.SetDefault("openrouter.x_title", "OpenRouter Proxy Core")
	v.SetDefault("openrouter.timeout_seconds", 120)

	v.SetDefault("database.path", filepath.Join(HomeDir(), "proxy.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
