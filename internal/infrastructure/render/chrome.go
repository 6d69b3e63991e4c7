package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// ChromeSurface launches a dedicated headless browser per acquisition.
type ChromeSurface struct {
	execPath string
	timeout  time.Duration
}

var _ Surface = (*ChromeSurface)(nil)

// NewChromeSurface uses execPath when set, otherwise chromedp's browser lookup.
func NewChromeSurface(execPath string, timeout time.Duration) *ChromeSurface {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeSurface{execPath: execPath, timeout: timeout}
}

// Acquire starts the browser. The returned release tears down the tab and the
// browser process.
func (s *ChromeSurface) Acquire(ctx context.Context) (Capturer, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	release := func() {
		cancelBrowser()
		cancelAlloc()
	}

	startCtx, cancelStart := context.WithTimeout(browserCtx, s.timeout)
	defer cancelStart()
	if err := chromedp.Run(startCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeCapture{ctx: browserCtx, timeout: s.timeout}, release, nil
}

type chromeCapture struct {
	ctx     context.Context
	timeout time.Duration
}

// Capture loads markup from a data URL and screenshots the .card element.
func (c *chromeCapture) Capture(ctx context.Context, markup string, width, height int) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	dataURL := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(markup))

	var buf []byte
	err := chromedp.Run(runCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Navigate(dataURL),
		chromedp.WaitVisible(".card", chromedp.ByQuery),
		chromedp.Screenshot(".card", &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
