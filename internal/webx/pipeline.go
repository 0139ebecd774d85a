// Package webx extracts recipes from arbitrary web pages through a
// layered cascade: structured data first, then readability isolation,
// then heuristic DOM scanning, with a headless re-render as the last
// resort for client-rendered pages.
package webx

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/config"
	"github.com/platewise/recipe-cli/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// responses larger than this are cut off; recipe markup sits well within it.
const maxBodyBytes = 8 << 20

// layer is one cascade entry: a name, an attempt, and the shared
// adequacy predicate applied to its output.
type layer struct {
	name    model.WebLayer
	attempt func(doc *goquery.Document) *model.WebExtractionResult
}

// Pipeline runs the web extraction cascade. Stateless between calls.
type Pipeline struct {
	http   *http.Client
	cfg    config.WebConfig
	render func(ctx context.Context, url string) (string, error)
}

// NewPipeline creates a Pipeline from config.
func NewPipeline(cfg config.WebConfig) *Pipeline {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	timeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := &Pipeline{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}
	p.render = p.renderHeadless
	return p
}

// Extract runs the cascade against a URL. It always returns a result:
// total failure degrades to an empty result with diagnostic attempts.
func (p *Pipeline) Extract(ctx context.Context, url string) *model.WebExtractionResult {
	var debug model.WebDebug

	html, err := p.fetch(ctx, url)
	if err != nil {
		zap.L().Warn("static fetch failed", zap.String("url", url), zap.Error(err))
	}

	best := p.runLayers(html, &debug)
	if !best.Adequate() && !p.cfg.DisableRender && ctx.Err() == nil {
		rendered, err := p.render(ctx, url)
		if err != nil {
			zap.L().Warn("headless render failed", zap.String("url", url), zap.Error(err))
		} else {
			debug.Rendered = true
			if r := p.runLayers(rendered, &debug); betterThan(r, best) {
				best = r
			}
		}
	}

	recoverAuthorByline(best)
	best.Debug = debug

	zap.L().Info("web extraction complete",
		zap.String("url", url),
		zap.String("layer", string(best.Layer)),
		zap.Int("ingredients", len(best.Ingredients)),
		zap.Int("steps", len(best.Steps)),
		zap.Bool("adequate", best.Adequate()),
		zap.Bool("rendered", debug.Rendered),
	)
	return best
}

// runLayers evaluates the cascade over one HTML snapshot, short-circuiting
// at the first adequate result and otherwise keeping the richest one.
func (p *Pipeline) runLayers(html string, debug *model.WebDebug) *model.WebExtractionResult {
	best := &model.WebExtractionResult{}
	if strings.TrimSpace(html) == "" {
		return best
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return best
	}

	layers := []layer{
		{model.LayerJSONLD, extractJSONLD},
		{model.LayerMicrodata, extractMicrodata},
		{model.LayerReadability, extractReadability},
		{model.LayerHeuristic, extractHeuristic},
	}

	for _, l := range layers {
		debug.Attempts = append(debug.Attempts, l.name)
		result := l.attempt(doc)
		if result == nil {
			continue
		}
		result.Layer = l.name
		if l.name == model.LayerJSONLD || l.name == model.LayerMicrodata {
			debug.HasStructuredData = true
		}
		if result.Adequate() {
			return result
		}
		if betterThan(result, best) {
			best = result
		}
	}
	return best
}

func betterThan(a, b *model.WebExtractionResult) bool {
	return len(a.Ingredients)+len(a.Steps) > len(b.Ingredients)+len(b.Steps)
}

func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "webx: create request")
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "webx: fetch page")
	}
	defer resp.Body.Close()

	// Non-2xx pages can still carry usable markup (soft 404s, paywalled
	// shells with structured data intact), so the body is returned anyway.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "webx: read body")
	}
	return string(body), nil
}
