package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// errWaitTimeout marks a navigation or selector wait that outlived its
// timeout. Retried without backoff, unlike other failures.
var errWaitTimeout = errors.New("navigation wait timed out")

func isTimeout(err error) bool {
	return errors.Is(err, errWaitTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// lifecycleEventName maps a completion condition to the CDP page lifecycle
// event signalling it. WaitCommit returns "" because navigation commit is
// signalled by page.Navigate itself.
func lifecycleEventName(wait WaitUntil) string {
	switch wait {
	case WaitCommit:
		return ""
	case WaitDOMContentLoaded:
		return "DOMContentLoaded"
	case WaitNetworkIdle:
		return "networkIdle"
	case WaitLoad, "":
		return "load"
	default:
		return "load"
	}
}

// navigateAndWait navigates the current tab and waits for the requested
// lifecycle event, bounded by the timeout. The listener is installed before
// page.Navigate is issued so an event firing during the round trip is not
// lost; matching is deferred until the frame and loader IDs are known.
func navigateAndWait(url string, wait WaitUntil, timeout time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := page.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable page domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}

		var waiter *lifecycleWaiter
		if event := lifecycleEventName(wait); event != "" {
			listenCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			waiter = newLifecycleWaiter(event)
			chromedp.ListenTarget(listenCtx, waiter.handle)
		}

		frameID, loaderID, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		if errText != "" {
			return fmt.Errorf("navigate: %s", errText)
		}

		if waiter == nil {
			return nil
		}
		waiter.arm(string(frameID), string(loaderID))
		return waiter.wait(ctx, timeout)
	}
}

// lifecycleWaiter collects lifecycle events for one navigation. Events that
// arrive before arm are buffered and replayed once the navigation's frame
// and loader IDs are known.
type lifecycleWaiter struct {
	event string
	done  chan struct{}

	mu       sync.Mutex
	armed    bool
	frameID  string
	loaderID string
	buffered []*page.EventLifecycleEvent
	fired    bool
}

func newLifecycleWaiter(event string) *lifecycleWaiter {
	return &lifecycleWaiter{event: event, done: make(chan struct{})}
}

func (w *lifecycleWaiter) handle(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || string(e.Name) != w.event {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		w.buffered = append(w.buffered, e)
		return
	}
	w.match(e)
}

// match must be called with w.mu held.
func (w *lifecycleWaiter) match(e *page.EventLifecycleEvent) {
	if w.fired {
		return
	}
	if string(e.FrameID) != w.frameID || string(e.LoaderID) != w.loaderID {
		return
	}
	w.fired = true
	close(w.done)
}

// arm records the navigation identity and replays events that arrived while
// page.Navigate was still in flight.
func (w *lifecycleWaiter) arm(frameID, loaderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.frameID = frameID
	w.loaderID = loaderID
	for _, e := range w.buffered {
		w.match(e)
	}
	w.buffered = nil
}

// wait blocks until the matched event arrives, the timeout elapses, or ctx
// is done.
func (w *lifecycleWaiter) wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-timer.C:
		return errWaitTimeout
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errWaitTimeout
		}
		return ctx.Err()
	}
}
