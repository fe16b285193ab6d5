package browser

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const retryBackoff = 1 * time.Second

// closeDelay draws the deferred page close delay, uniform in [1, 7) seconds.
// Randomizing it keeps page teardown from happening on a fixed cadence.
func closeDelay() time.Duration {
	return time.Second + time.Duration(rand.Int63n(int64(6*time.Second)))
}

// Session owns the two browser environments and orchestrates fetches against
// them. Create one with New and keep it for the process lifetime.
type Session struct {
	cfg       Config
	gate      gate
	whitelist *Whitelist
	direct    *Environment
	proxied   *Environment
	tabs      tabOpener
	logger    *zap.Logger

	// Test seams for the timing behavior of the retry loop.
	backoff    time.Duration
	closeDelay func() time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
}

// New provisions the browser binary, launches both environments, and returns
// a ready Session. A provisioning or launch failure is fatal: no Session is
// returned and nothing keeps running.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	execPath, err := provision(cfg)
	if err != nil {
		return nil, fmt.Errorf("provision browser: %w", err)
	}

	direct, err := launchEnvironment(cfg, execPath, envParams{
		name:       directEnvName,
		profileDir: filepath.Join(cfg.ProfileRoot, directEnvName),
		debugPort:  cfg.DebugPort,
	}, logger)
	if err != nil {
		return nil, err
	}

	proxied, err := launchEnvironment(cfg, execPath, envParams{
		name:        proxyEnvName,
		profileDir:  filepath.Join(cfg.ProfileRoot, proxyEnvName),
		debugPort:   cfg.DebugPort + 1,
		proxyServer: cfg.Proxy.Server,
	}, logger)
	if err != nil {
		direct.close()
		return nil, err
	}

	logger.Info("Session ready",
		zap.Int("max_concurrent_pages", cfg.MaxConcurrentPages),
		zap.Int("whitelist_patterns", len(cfg.Whitelist)))

	return &Session{
		cfg:        cfg,
		gate:       newGate(cfg.MaxConcurrentPages),
		whitelist:  NewWhitelist(logger, cfg.Whitelist...),
		direct:     direct,
		proxied:    proxied,
		tabs:       chromedpOpener{logger: logger},
		logger:     logger,
		backoff:    retryBackoff,
		closeDelay: closeDelay,
	}, nil
}

// WhitelistUpdate merges patterns into the proxy whitelist. Additive only.
func (s *Session) WhitelistUpdate(patterns ...string) {
	s.whitelist.Update(patterns...)
}

// route picks the environment for a URL. Called once per fetch call; the
// decision sticks for the whole retry sequence even if the whitelist grows
// mid-flight.
func (s *Session) route(url string) *Environment {
	if s.whitelist.Matches(url) {
		return s.proxied
	}
	return s.direct
}

// Fetch returns the fully rendered HTML for req.URL, or ErrAttemptsExhausted
// after retries+1 failed attempts. Which kind of failure exhausted the
// attempts is only visible in the logs.
func (s *Session) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	if s.closed.Load() {
		return "", ErrSessionClosed
	}

	retries := req.Retries
	if retries <= 0 {
		retries = s.cfg.MaxRetries
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}

	release, err := s.gate.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	TotalFetches.Inc()
	env := s.route(req.URL)
	if env.Proxied() {
		TotalProxiedRoutes.Inc()
	}
	s.logger.Debug("Route selected",
		zap.String("url", req.URL),
		zap.String("environment", env.Name()))

	attempts := retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		html, err := s.attempt(ctx, env, req, timeout)
		if err == nil {
			TotalFetchSuccesses.Inc()
			return html, nil
		}

		last := attempt == attempts
		switch {
		case isTimeout(err):
			TotalAttemptTimeouts.Inc()
			s.logger.Warn("Timeout on fetch attempt",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("timeout", timeout))
			if last {
				return "", ErrAttemptsExhausted
			}
			// Timeouts already consumed the full budget; go again at once.
		default:
			TotalAttemptErrors.Inc()
			s.logger.Error("Error on fetch attempt",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if last {
				return "", ErrAttemptsExhausted
			}
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", ErrAttemptsExhausted
}

// attempt opens one page on env and drives it through navigation, selector
// wait, and extraction. Whatever happens, the page is handed to the deferred
// cleanup task rather than closed inline.
func (s *Session) attempt(ctx context.Context, env *Environment, req FetchRequest, timeout time.Duration) (string, error) {
	pg, err := s.tabs.openTab(env)
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	OpenPages.Inc()

	start := time.Now()
	html, err := pg.run(ctx, req, timeout)
	s.closeTabLater(pg)
	if err != nil {
		return "", err
	}

	s.logger.Info("Fetch succeeded",
		zap.String("url", req.URL),
		zap.String("environment", env.Name()),
		zap.Duration("elapsed", time.Since(start)))
	return html, nil
}

// closeTabLater schedules a fire-and-forget page close after a randomized
// delay. Errors are logged and never reach any caller. On shutdown, pending
// closes are abandoned along with the rest of the process.
func (s *Session) closeTabLater(pg tab) {
	delay := s.closeDelay()
	go func() {
		defer OpenPages.Dec()
		time.Sleep(delay)
		if err := pg.close(); err != nil {
			s.logger.Error("Deferred page close failed", zap.Error(err))
		}
	}()
}

// Close shuts down both environments. Idempotent and best-effort: each
// environment is torn down independently and repeated calls do nothing.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.direct.close()
		s.proxied.close()
		s.logger.Info("Session closed")
	})
}
