// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zhhtdm/lzhbrowser/internal/browser"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Browser BrowserConfig `mapstructure:"browser"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// BrowserConfig governs the browser session: concurrency, routing, profiles,
// and retry defaults.
type BrowserConfig struct {
	MaxConcurrentPages int                 `mapstructure:"max_concurrent_pages"`
	Proxy              browser.ProxyConfig `mapstructure:"proxy"`
	Whitelist          []string            `mapstructure:"whitelist"`
	Headless           bool                `mapstructure:"headless"`
	ExecPath           string              `mapstructure:"exec_path"`
	ProfileRoot        string              `mapstructure:"profile_root"`
	DebugPort          int                 `mapstructure:"debug_port"`
	DebugAddress       string              `mapstructure:"debug_address"`
	MaxRetries         int                 `mapstructure:"max_retries"`
	TimeoutMs          int                 `mapstructure:"timeout_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SessionConfig converts the wire-level configuration into the browser
// package's Config.
func (b BrowserConfig) SessionConfig() browser.Config {
	return browser.Config{
		MaxConcurrentPages: b.MaxConcurrentPages,
		Proxy:              b.Proxy,
		Whitelist:          b.Whitelist,
		Headless:           b.Headless,
		ExecPath:           b.ExecPath,
		ProfileRoot:        b.ProfileRoot,
		DebugPort:          b.DebugPort,
		DebugAddress:       b.DebugAddress,
		MaxRetries:         b.MaxRetries,
		Timeout:            time.Duration(b.TimeoutMs) * time.Millisecond,
	}
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LZHBROWSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.max_concurrent_pages", browser.DefaultMaxConcurrentPages)
	v.SetDefault("browser.proxy.server", browser.DefaultProxyServer)
	v.SetDefault("browser.whitelist", []string{})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.profile_root", browser.DefaultProfileRoot)
	v.SetDefault("browser.debug_port", browser.DefaultDebugPort)
	v.SetDefault("browser.debug_address", browser.DefaultDebugAddress)
	v.SetDefault("browser.max_retries", browser.DefaultMaxRetries)
	v.SetDefault("browser.timeout_ms", int(browser.DefaultTimeout/time.Millisecond))
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate checks ranges that would otherwise surface as confusing runtime
// behavior.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Browser.MaxConcurrentPages <= 0 {
		return fmt.Errorf("browser.max_concurrent_pages must be positive")
	}
	if c.Browser.TimeoutMs <= 0 {
		return fmt.Errorf("browser.timeout_ms must be positive")
	}
	if c.Browser.DebugPort <= 0 || c.Browser.DebugPort+1 > 65535 {
		return fmt.Errorf("browser.debug_port %d out of range (the next port up is reserved too)", c.Browser.DebugPort)
	}
	if c.Browser.MaxRetries < 0 {
		return fmt.Errorf("browser.max_retries must not be negative")
	}
	return nil
}
