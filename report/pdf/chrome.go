package pdf

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"construction-monitor/internal/shared/telemetry"
)

const defaultChromeTimeout = 60 * time.Second

// Chrome prints HTML with a headless Chrome process. The browser starts on the
// first Render and each call runs in its own tab.
type Chrome struct {
	execPath string
	timeout  time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewChrome creates the engine. execPath may be empty to let chromedp locate Chrome.
func NewChrome(execPath string, timeout time.Duration) *Chrome {
	if timeout <= 0 {
		timeout = defaultChromeTimeout
	}
	return &Chrome{execPath: strings.TrimSpace(execPath), timeout: timeout}
}

// Render loads html into a blank tab and prints it to A4 with backgrounds.
func (c *Chrome) Render(ctx context.Context, html string) ([]byte, error) {
	start := time.Now()
	browserCtx, err := c.browser()
	if err != nil {
		return nil, renderErr(EngineChrome, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var out []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			out = buf
			return err
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		return nil, renderErr(EngineChrome, err)
	}

	telemetry.Info("pdf.render.ok", map[string]any{
		"engine":      EngineChrome,
		"bytes":       len(out),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return out, nil
}

// Close terminates the browser process, if one was started.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelBrowser != nil {
		c.cancelBrowser()
		c.cancelAlloc()
		c.browserCtx, c.cancelBrowser, c.cancelAlloc = nil, nil, nil
	}
	return nil
}

func (c *Chrome) browser() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCtx != nil && c.browserCtx.Err() == nil {
		return c.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		telemetry.Error("pdf.chrome.start_failed", map[string]any{"exec_path": c.execPath, "error": err})
		return nil, err
	}

	c.browserCtx, c.cancelAlloc, c.cancelBrowser = browserCtx, cancelAlloc, cancelBrowser
	telemetry.Info("pdf.chrome.started", map[string]any{"exec_path": c.execPath})
	return browserCtx, nil
}

var _ Generator = (*Chrome)(nil)
