package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePage scripts the outcome of one attempt.
type fakePage struct {
	html    string
	err     error
	block   chan struct{} // if set, run blocks until closed
	running *atomic.Int32 // incremented while run is in flight

	closed atomic.Bool
}

func (p *fakePage) run(ctx context.Context, _ FetchRequest, _ time.Duration) (string, error) {
	if p.running != nil {
		p.running.Add(1)
		defer p.running.Add(-1)
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.html, p.err
}

func (p *fakePage) close() error {
	p.closed.Store(true)
	return nil
}

// fakeOpener hands out scripted pages in order and records which environment
// each open targeted.
type fakeOpener struct {
	mu    sync.Mutex
	pages []*fakePage
	opens []string
}

func (o *fakeOpener) openTab(env *Environment) (tab, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens = append(o.opens, env.Name())
	if len(o.pages) == 0 {
		return &fakePage{html: "<html></html>"}, nil
	}
	pg := o.pages[0]
	o.pages = o.pages[1:]
	return pg, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opens)
}

func newTestSession(opener tabOpener, patterns ...string) *Session {
	return &Session{
		cfg:        Config{}.withDefaults(),
		gate:       newGate(DefaultMaxConcurrentPages),
		whitelist:  NewWhitelist(zap.NewNop(), patterns...),
		direct:     &Environment{name: directEnvName},
		proxied:    &Environment{name: proxyEnvName, proxied: true},
		tabs:       opener,
		logger:     zap.NewNop(),
		backoff:    time.Millisecond,
		closeDelay: func() time.Duration { return 0 },
	}
}

func TestFetchAllAttemptsTimeOut(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{pages: []*fakePage{
		{err: errWaitTimeout},
		{err: errWaitTimeout},
		{err: errWaitTimeout},
	}}
	s := newTestSession(opener)

	html, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Empty(t, html)
	// Default retry count of 2 means exactly 3 attempts.
	assert.Equal(t, 3, opener.openCount())
}

func TestFetchTimeoutThenSuccess(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{pages: []*fakePage{
		{err: errWaitTimeout},
		{html: "<html>ok</html>"},
	}}
	s := newTestSession(opener)

	html, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com", Retries: 2})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", html)
	assert.Equal(t, 2, opener.openCount())
}

func TestFetchErrorBackoffBetweenAttempts(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{pages: []*fakePage{
		{err: errors.New("engine crashed")},
		{html: "<html>recovered</html>"},
	}}
	s := newTestSession(opener)
	s.backoff = 40 * time.Millisecond

	start := time.Now()
	html, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "<html>recovered</html>", html)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"non-timeout failures must wait the fixed backoff before retrying")
}

func TestFetchRespectsExplicitRetryOverride(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{pages: []*fakePage{
		{err: errWaitTimeout},
		{err: errWaitTimeout},
	}}
	s := newTestSession(opener)

	_, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com", Retries: 1})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 2, opener.openCount())
}

func TestFetchRouting(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{}
	s := newTestSession(opener, "*.dmm.co.jp")

	_, err := s.Fetch(context.Background(), FetchRequest{URL: "https://video.dmm.co.jp/"})
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), FetchRequest{URL: "https://www.google.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{proxyEnvName, directEnvName}, opener.opens)
}

func TestFetchConcurrencyBound(t *testing.T) {
	t.Parallel()

	const limit = 2
	const calls = 8

	var running atomic.Int32
	var peak atomic.Int32
	block := make(chan struct{})

	pages := make([]*fakePage, calls)
	for i := range pages {
		pages[i] = &fakePage{html: "<html></html>", block: block, running: &running}
	}
	opener := &fakeOpener{pages: pages}
	s := newTestSession(opener)
	s.gate = newGate(limit)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
			assert.NoError(t, err)
		}()
	}

	// Sample the number of simultaneously running attempts while the
	// blocked pages pile up behind the gate.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if n := running.Load(); n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(time.Millisecond)
	}
	close(block)
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, calls, opener.openCount())
}

func TestFetchAfterCloseFails(t *testing.T) {
	t.Parallel()

	s := newTestSession(&fakeOpener{})
	s.Close()
	s.Close() // must not panic

	_, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestFetchSchedulesDeferredClose(t *testing.T) {
	t.Parallel()

	pg := &fakePage{html: "<html></html>"}
	opener := &fakeOpener{pages: []*fakePage{pg}}
	s := newTestSession(opener)

	_, err := s.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)

	// The page close is fire-and-forget; it must happen after Fetch has
	// already returned.
	assert.Eventually(t, pg.closed.Load, time.Second, 5*time.Millisecond)
}

func TestFetchCanceledWhileWaitingForSlot(t *testing.T) {
	t.Parallel()

	s := newTestSession(&fakeOpener{})
	s.gate = newGate(1)

	release, err := s.gate.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Fetch(ctx, FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
