package browser

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	directEnvName = "direct"
	proxyEnvName  = "proxy"
)

// Environment is one isolated browser profile plus network route. The
// Session owns exactly two: the direct one and the proxied one. Each is a
// dedicated Chrome process with its own persistent profile and reserved
// debug port, and keeps a permanent sentinel tab open so that closing
// fetch-driven tabs can never terminate the browser.
type Environment struct {
	name        string
	proxied     bool
	browserCtx  context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

// Name returns "direct" or "proxy".
func (e *Environment) Name() string { return e.name }

// Proxied reports whether traffic goes through the configured proxy.
func (e *Environment) Proxied() bool { return e.proxied }

type envParams struct {
	name        string
	execPath    string
	profileDir  string
	debugPort   int
	proxyServer string // empty for direct
}

// Fixed extra headers sent by both environments, mirroring the defaults the
// upstream service advertises to origin servers.
var defaultExtraHeaders = network.Headers{
	"Accept-Language": "zh-CN,zh;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// launchEnvironment starts one Chrome process with a persistent profile and
// brings up its sentinel tab.
func launchEnvironment(cfg Config, execPath string, params envParams, logger *zap.Logger) (*Environment, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "820,750"),
		chromedp.Flag("lang", "zh-CN,zh"),
		chromedp.Flag("remote-debugging-port", fmt.Sprint(params.debugPort)),
		chromedp.Flag("remote-debugging-address", cfg.DebugAddress),
		chromedp.UserDataDir(params.profileDir),
		chromedp.UserAgent(randomUserAgent()),
		chromedp.ExecPath(execPath),
	)
	if params.proxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(params.proxyServer))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first tab doubles as the sentinel: it stays open for the life of
	// the session so the browser never runs out of tabs.
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(defaultExtraHeaders),
		sentinelContent(params.name, params.proxyServer),
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch %s environment: %w", params.name, err)
	}

	logger.Info("Environment ready",
		zap.String("environment", params.name),
		zap.String("profile", params.profileDir),
		zap.Int("debug_port", params.debugPort),
		zap.String("proxy", params.proxyServer))

	return &Environment{
		name:        params.name,
		proxied:     params.proxyServer != "",
		browserCtx:  browserCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      logger,
	}, nil
}

// sentinelContent writes a banner document into the environment's first tab
// warning operators not to close the last tab of a headful session.
func sentinelContent(name, proxyServer string) chromedp.Action {
	route := "direct connection"
	if proxyServer != "" {
		route = "proxied via " + proxyServer
	}
	html := fmt.Sprintf(`<html>
  <head><title>[%s] DO NOT CLOSE THE LAST TAB</title></head>
  <body style="color: darkred; padding: 30px;">
    <h2 style="color: grey;">This window is the %s environment (%s)</h2>
    <h1>Do not close the last tab manually, otherwise the browser will exit and the service will be interrupted.</h1>
  </body>
</html>`, name, name, route)

	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("sentinel frame tree: %w", err)
		}
		if err := page.SetDocumentContent(tree.Frame.ID, html).Do(ctx); err != nil {
			return fmt.Errorf("sentinel content: %w", err)
		}
		return nil
	})
}

// close tears down the environment's tab and Chrome process. Best-effort and
// idempotent: cancel funcs are safe to invoke more than once and a partially
// constructed environment closes whatever it has.
func (e *Environment) close() {
	if e == nil {
		return
	}
	if e.cancelTab != nil {
		e.cancelTab()
	}
	if e.cancelAlloc != nil {
		e.cancelAlloc()
	}
}
