// Package thumb discovers video thumbnails per platform. YouTube needs no
// network call; TikTok goes through oEmbed; Instagram reads the page's
// og:image meta tag.
package thumb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultTikTokOEmbedURL = "https://www.tiktok.com/oembed"
	maxBodyBytes           = 512 * 1024
)

// Fetcher resolves a thumbnail URL for a video URL.
type Fetcher struct {
	http      *http.Client
	oembedURL string
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.http = hc }
}

// WithOEmbedURL overrides the TikTok oEmbed endpoint.
func WithOEmbedURL(u string) Option {
	return func(f *Fetcher) { f.oembedURL = u }
}

// WithUserAgent overrides the browser user agent used for page fetches.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// NewFetcher creates a Fetcher with sensible timeouts.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		http:      &http.Client{Timeout: 15 * time.Second},
		oembedURL: defaultTikTokOEmbedURL,
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// YouTube returns the deterministic high-quality thumbnail URL for a video
// id. No network call is made.
func YouTube(videoID string) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}

// TikTok resolves a thumbnail through the oEmbed endpoint.
func (f *Fetcher) TikTok(ctx context.Context, videoURL string) (string, error) {
	u := f.oembedURL + "?url=" + url.QueryEscape(videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", eris.Wrap(err, "thumb: create oembed request")
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "thumb: oembed fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("thumb: oembed status %d", resp.StatusCode)
	}

	var body struct {
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", eris.Wrap(err, "thumb: decode oembed response")
	}
	if body.ThumbnailURL == "" {
		return "", eris.New("thumb: oembed response missing thumbnail_url")
	}
	return body.ThumbnailURL, nil
}

var ogImageRe = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']|<meta[^>]+content=["']([^"']+)["'][^>]+property=["']og:image["']`)

// Instagram fetches the post page and reads its og:image meta tag.
func (f *Fetcher) Instagram(ctx context.Context, postURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "thumb: create page request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "thumb: page fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("thumb: page status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "thumb: read page")
	}

	m := ogImageRe.FindSubmatch(body)
	if m == nil {
		return "", eris.New("thumb: og:image meta tag not found")
	}
	img := string(m[1])
	if img == "" {
		img = string(m[2])
	}
	return htmlUnescape(img), nil
}

// htmlUnescape decodes the entities that commonly appear in og:image URLs.
func htmlUnescape(s string) string {
	return strings.NewReplacer("&amp;", "&", "&#38;", "&").Replace(s)
}
