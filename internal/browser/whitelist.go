package browser

import (
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

type whitelistEntry struct {
	pattern string
	matcher glob.Glob
}

// Whitelist is a grow-only set of glob patterns deciding which hosts are
// fetched through the proxied environment. Patterns match either the
// hostname alone or the hostname concatenated with the path.
//
// Updates are serialized by a mutex and publish a fresh snapshot; reads load
// the snapshot without locking, so a Matches call racing an Update may or may
// not observe the new pattern. The set only grows, so that is harmless.
type Whitelist struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]whitelistEntry]
	logger  *zap.Logger
}

// NewWhitelist builds a whitelist seeded with the given patterns.
func NewWhitelist(logger *zap.Logger, patterns ...string) *Whitelist {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Whitelist{logger: logger}
	empty := make([]whitelistEntry, 0)
	w.entries.Store(&empty)
	w.Update(patterns...)
	return w
}

// Update merges patterns into the whitelist. Additive only: already-present
// patterns are skipped, nothing is ever removed. Malformed globs are logged
// and dropped.
func (w *Whitelist) Update(patterns ...string) {
	if len(patterns) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	current := *w.entries.Load()
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		seen[e.pattern] = struct{}{}
	}

	merged := current
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if _, dup := seen[pattern]; dup {
			continue
		}
		matcher, err := glob.Compile(pattern)
		if err != nil {
			w.logger.Warn("Skipping malformed whitelist pattern",
				zap.String("pattern", pattern),
				zap.Error(err))
			continue
		}
		merged = append(merged[:len(merged):len(merged)], whitelistEntry{
			pattern: pattern,
			matcher: matcher,
		})
		seen[pattern] = struct{}{}
	}
	w.entries.Store(&merged)
}

// Len reports the number of stored patterns.
func (w *Whitelist) Len() int {
	return len(*w.entries.Load())
}

// Matches reports whether any stored pattern matches the URL's hostname or
// its hostname+path concatenation. Unparseable URLs never match.
func (w *Whitelist) Matches(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Host
	target := host + parsed.Path

	for _, entry := range *w.entries.Load() {
		if entry.matcher.Match(host) || entry.matcher.Match(target) {
			w.logger.Debug("Whitelist hit",
				zap.String("url", rawURL),
				zap.String("pattern", entry.pattern))
			return true
		}
	}
	return false
}
