package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// shouldAbort decides whether a paused request is blocked. The CDP event
// reports resource types in CamelCase ("Image", "XHR") while the request set
// uses the lowercase wire names.
func shouldAbort(abort map[ResourceType]struct{}, resourceType string) bool {
	_, blocked := abort[ResourceType(strings.ToLower(resourceType))]
	return blocked
}

// installInterception enables the fetch domain on the tab and aborts every
// paused request whose resource type is in the abort set, continuing all
// others unmodified. Must run before navigation so the first document
// request is already covered.
func installInterception(tabCtx context.Context, abort map[ResourceType]struct{}, logger *zap.Logger) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			event, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			// Each decision answers a paused CDP request and must not
			// block the event dispatch loop.
			go func() {
				c := chromedp.FromContext(tabCtx)
				execCtx := cdp.WithExecutor(tabCtx, c.Target)

				if shouldAbort(abort, string(event.ResourceType)) {
					if err := fetch.FailRequest(event.RequestID, network.ErrorReasonAborted).Do(execCtx); err != nil {
						logger.Debug("Abort paused request failed",
							zap.String("url", event.Request.URL),
							zap.Error(err))
					}
					return
				}
				if err := fetch.ContinueRequest(event.RequestID).Do(execCtx); err != nil {
					logger.Debug("Continue paused request failed",
						zap.String("url", event.Request.URL),
						zap.Error(err))
				}
			}()
		})
		return fetch.Enable().Do(ctx)
	}
}
