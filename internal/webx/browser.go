package webx

import (
	"context"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Chrome executable locations probed when config does not name one.
// Serverless images mount the binary under /opt; the rest are local
// installs.
var chromeCandidates = []string{
	"/opt/chrome/chrome",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

func (p *Pipeline) chromePath() string {
	if p.cfg.ChromePath != "" {
		return p.cfg.ChromePath
	}
	for _, path := range chromeCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// renderHeadless loads the page in a headless browser and returns the
// rendered DOM, for pages whose recipe markup only exists client-side.
func (p *Pipeline) renderHeadless(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.cfg.UserAgent),
	)
	if path := p.chromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := time.Duration(p.cfg.RenderTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side recipe widgets a moment to hydrate.
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", eris.Wrap(err, "webx: headless render")
	}
	return html, nil
}
