package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Well-known Chrome/Chromium install locations probed when no explicit
// executable path is configured.
var defaultExecCandidates = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/opt/google/chrome/chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

var execLookupNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// provision verifies the browser binary exists and creates the persistent
// profile directories for both environments. Any failure here aborts Session
// creation; there is no degraded mode without a browser.
func provision(cfg Config) (string, error) {
	execPath, err := resolveExecPath(cfg.ExecPath)
	if err != nil {
		return "", err
	}
	for _, name := range []string{directEnvName, proxyEnvName} {
		dir := filepath.Join(cfg.ProfileRoot, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create profile dir %s: %w", dir, err)
		}
	}
	return execPath, nil
}

func resolveExecPath(requested string) (string, error) {
	candidates := make([]string, 0, len(defaultExecCandidates)+1)
	if path := strings.TrimSpace(requested); path != "" {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, defaultExecCandidates...)

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	for _, name := range execLookupNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no headless Chrome binary found; tried %s", strings.Join(candidates, ", "))
}
