package browser

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chromedp/chromedp"
)

// EchoIP loads echoURL through proxyURL in a fresh browser and returns the
// rendered body text. The proxy validator parses the echoed client IP out
// of it. The caller's context bounds the whole attempt; without a deadline
// the navigation timeout applies.
func (f *Fetcher) EchoIP(ctx context.Context, echoURL, proxyURL string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(proxyURL)...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	navCtx := taskCtx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
		defer cancel()
	}

	var text string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(echoURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.body.innerText`, &text),
	)
	if err != nil {
		return nil, fmt.Errorf("echo fetch: %w", err)
	}

	if statusCode, _, _ := meta.snapshot(); statusCode != 0 && statusCode != http.StatusOK {
		return nil, fmt.Errorf("echo endpoint returned status %d", statusCode)
	}
	return []byte(text), nil
}
