// Package ytmeta is a minimal client for the YouTube Data API v3 videos
// endpoint, covering only the metadata the admission gate needs.
package ytmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Metadata is the lightweight video metadata used by preflight.
type Metadata struct {
	VideoID         string
	DurationSeconds int
	CategoryID      string
	CaptionFlag     bool
	Topics          []string
	Title           string
	Description     string
	Channel         string
}

// Client fetches video metadata.
type Client interface {
	GetVideoMetadata(ctx context.Context, videoID string) (*Metadata, error)
}

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ytmeta: HTTP %d: %s", e.StatusCode, e.Body)
}

// ErrNotFound is returned when the video does not exist or is private.
var ErrNotFound = eris.New("ytmeta: video not found")

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing calls at qps queries per second.
func WithRateLimit(qps float64) Option {
	return func(c *httpClient) {
		if qps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new metadata client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// videosResponse mirrors the videos.list shape, limited to the parts we ask for.
type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			CategoryID  string `json:"categoryId"`
			ChannelName string `json:"channelTitle"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
			Caption  string `json:"caption"`
		} `json:"contentDetails"`
		TopicDetails struct {
			TopicCategories []string `json:"topicCategories"`
		} `json:"topicDetails"`
	} `json:"items"`
}

func (c *httpClient) GetVideoMetadata(ctx context.Context, videoID string) (*Metadata, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ytmeta: rate limit wait")
		}
	}

	q := url.Values{}
	q.Set("part", "snippet,contentDetails,topicDetails")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "ytmeta: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ytmeta: fetch metadata")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ytmeta: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var vr videosResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, eris.Wrap(err, "ytmeta: decode response")
	}
	if len(vr.Items) == 0 {
		return nil, ErrNotFound
	}

	item := vr.Items[0]
	dur, err := ParseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return nil, eris.Wrapf(err, "ytmeta: parse duration %q", item.ContentDetails.Duration)
	}

	return &Metadata{
		VideoID:         item.ID,
		DurationSeconds: dur,
		CategoryID:      item.Snippet.CategoryID,
		CaptionFlag:     item.ContentDetails.Caption == "true",
		Topics:          item.TopicDetails.TopicCategories,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		Channel:         item.Snippet.ChannelName,
	}, nil
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISO8601Duration converts a duration like "PT5M33S" into seconds.
func ParseISO8601Duration(s string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, eris.Errorf("invalid ISO-8601 duration: %q", s)
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, eris.Wrapf(err, "invalid duration component %q", m[i+1])
		}
		total += n * mult
	}
	return total, nil
}
