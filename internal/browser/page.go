package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// tab is one ephemeral render surface, exclusive to a single fetch attempt.
type tab interface {
	// run drives one attempt end to end: interception setup, navigation,
	// optional selector wait, HTML extraction.
	run(ctx context.Context, req FetchRequest, timeout time.Duration) (string, error)
	// close tears the page down. Called from the deferred cleanup task,
	// never from the fetch path itself.
	close() error
}

// tabOpener creates tabs on an environment. Split out so the retry loop is
// testable without a browser.
type tabOpener interface {
	openTab(env *Environment) (tab, error)
}

type chromedpOpener struct {
	logger *zap.Logger
}

func (o chromedpOpener) openTab(env *Environment) (tab, error) {
	tabCtx, cancel := chromedp.NewContext(env.browserCtx)
	return &chromedpTab{tabCtx: tabCtx, cancel: cancel, logger: o.logger}, nil
}

// chromedpTab is a Chrome tab inside one environment. The tab is created
// lazily by the first chromedp.Run against its context.
type chromedpTab struct {
	tabCtx context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func (p *chromedpTab) run(ctx context.Context, req FetchRequest, timeout time.Duration) (string, error) {
	abort := abortSet(req.Abort)

	var tasks chromedp.Tasks
	if len(abort) > 0 {
		tasks = append(tasks, installInterception(p.tabCtx, abort, p.logger))
	}
	tasks = append(tasks, navigateAndWait(req.URL, req.WaitUntil, timeout))

	if err := p.runPhase(ctx, timeout, tasks); err != nil {
		return "", err
	}

	if req.Selector != "" {
		// The selector wait gets its own timeout of the same length, not
		// the remainder of the navigation budget.
		wait := chromedp.Tasks{chromedp.WaitReady(req.Selector, chromedp.ByQuery)}
		if err := p.runPhase(ctx, timeout, wait); err != nil {
			return "", err
		}
	}

	var html string
	extract := chromedp.Tasks{chromedp.OuterHTML("html", &html, chromedp.ByQuery)}
	if err := p.runPhase(ctx, timeout, extract); err != nil {
		return "", err
	}
	return html, nil
}

// runPhase executes tasks on the tab under a fresh per-phase timeout while
// still honoring the caller's context.
func (p *chromedpTab) runPhase(ctx context.Context, timeout time.Duration, tasks chromedp.Tasks) error {
	phaseCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(phaseCtx, tasks); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (p *chromedpTab) close() error {
	p.cancel()
	return nil
}

// forwardCancel propagates cancellation of the caller's context into a
// chromedp task context that is not derived from it.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
