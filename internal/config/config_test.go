package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Browser.MaxConcurrentPages != 5 {
		t.Fatalf("browser.max_concurrent_pages = %d, want 5", cfg.Browser.MaxConcurrentPages)
	}
	if cfg.Browser.Proxy.Server != "socks5://127.0.0.1:1080" {
		t.Fatalf("browser.proxy.server = %q", cfg.Browser.Proxy.Server)
	}
	if !cfg.Browser.Headless {
		t.Fatal("browser.headless should default to true")
	}
	if cfg.Browser.DebugPort != 9222 {
		t.Fatalf("browser.debug_port = %d, want 9222", cfg.Browser.DebugPort)
	}
	if cfg.Browser.MaxRetries != 2 {
		t.Fatalf("browser.max_retries = %d, want 2", cfg.Browser.MaxRetries)
	}
	if cfg.Browser.TimeoutMs != 10000 {
		t.Fatalf("browser.timeout_ms = %d, want 10000", cfg.Browser.TimeoutMs)
	}

	sess := cfg.Browser.SessionConfig()
	if sess.Timeout != 10*time.Second {
		t.Fatalf("session timeout = %v, want 10s", sess.Timeout)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
browser:
  max_concurrent_pages: 3
  proxy:
    server: socks5://10.0.0.1:9050
  whitelist:
    - "*.dmm.co.jp"
    - "www.mgstage.com"
  headless: false
  profile_root: /tmp/profiles
  debug_port: 9333
  max_retries: 4
  timeout_ms: 20000
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.Proxy.Server != "socks5://10.0.0.1:9050" {
		t.Fatalf("proxy.server = %q", cfg.Browser.Proxy.Server)
	}
	if len(cfg.Browser.Whitelist) != 2 {
		t.Fatalf("whitelist length = %d, want 2", len(cfg.Browser.Whitelist))
	}
	if cfg.Browser.Headless {
		t.Fatal("browser.headless should be overridden to false")
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("logging.level = %q, want warn", cfg.Logging.Level)
	}

	sess := cfg.Browser.SessionConfig()
	if sess.Timeout != 20*time.Second {
		t.Fatalf("session timeout = %v, want 20s", sess.Timeout)
	}
	if sess.DebugPort != 9333 {
		t.Fatalf("session debug port = %d, want 9333", sess.DebugPort)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad concurrency", "browser:\n  max_concurrent_pages: 0\n"},
		{"bad timeout", "browser:\n  timeout_ms: 0\n"},
		{"bad debug port", "browser:\n  debug_port: 65535\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
