package browser

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultMaxConcurrentPages = 5
	DefaultMaxRetries         = 2
	DefaultTimeout            = 10 * time.Second
	DefaultProfileRoot        = "./user_data"
	DefaultDebugPort          = 9222
	DefaultDebugAddress       = "127.0.0.1"
	DefaultProxyServer        = "socks5://127.0.0.1:1080"
)

// ProxyConfig describes the upstream proxy used by the proxied environment.
type ProxyConfig struct {
	Server string `mapstructure:"server"`
}

// Config controls Session behavior. Zero values fall back to the defaults
// above.
type Config struct {
	// MaxConcurrentPages caps simultaneous in-flight fetch calls.
	MaxConcurrentPages int
	// Proxy is routed to for whitelisted URLs.
	Proxy ProxyConfig
	// Whitelist seeds the glob patterns selecting the proxied route.
	Whitelist []string
	// Headless toggles headless Chrome.
	Headless bool
	// ExecPath overrides browser binary discovery.
	ExecPath string
	// ProfileRoot holds the two persistent profile directories.
	ProfileRoot string
	// DebugPort is reserved for the direct environment; the proxied
	// environment takes DebugPort+1. Availability is not validated.
	DebugPort    int
	DebugAddress string
	// MaxRetries is the default retry count per fetch.
	MaxRetries int
	// Timeout is the default per-phase navigation/selector timeout.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPages <= 0 {
		c.MaxConcurrentPages = DefaultMaxConcurrentPages
	}
	if c.Proxy.Server == "" {
		c.Proxy.Server = DefaultProxyServer
	}
	if c.ProfileRoot == "" {
		c.ProfileRoot = DefaultProfileRoot
	}
	if c.DebugPort <= 0 {
		c.DebugPort = DefaultDebugPort
	}
	if c.DebugAddress == "" {
		c.DebugAddress = DefaultDebugAddress
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
