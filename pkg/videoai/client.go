// Package videoai is the client for the external video-understanding
// service: upload videos into a library, poll task status until the
// service assigns stable-ish video identifiers, then ask questions about
// the indexed videos.
package videoai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/platewise/recipe-cli/internal/resilience"
)

const defaultBaseURL = "https://api.videoundstd.dev/v2"

// LibraryMode selects which library uploads land in.
type LibraryMode string

const (
	LibraryPrivate LibraryMode = "private"
	LibraryPublic  LibraryMode = "public"
)

// Other returns the opposite library mode, used for the one-shot
// permission-denied fallback.
func (m LibraryMode) Other() LibraryMode {
	if m == LibraryPublic {
		return LibraryPrivate
	}
	return LibraryPublic
}

// Client defines the video service operations used by the orchestrator.
type Client interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
	GetTask(ctx context.Context, taskID string) (*TaskResponse, error)
	Query(ctx context.Context, req QueryRequest) (map[string]any, error)
}

// UploadRequest is the body for POST /tasks.
type UploadRequest struct {
	VideoURLs   []string    `json:"video_urls"`
	Quality     string      `json:"quality,omitempty"`
	LibraryMode LibraryMode `json:"library_mode,omitempty"`
}

// UploadResponse is the response from POST /tasks. Identifiers are
// occasionally assigned synchronously; usually they arrive via GetTask.
type UploadResponse struct {
	TaskID      string   `json:"task_id"`
	Identifiers []string `json:"video_nos,omitempty"`
}

// ItemStatus is a per-video parse status within a task.
type ItemStatus struct {
	Identifier string `json:"video_no"`
	Status     string `json:"status"` // "pending", "parsing", "parsed", "failed"
}

// TaskResponse is the response from GET /tasks/{id}.
type TaskResponse struct {
	TaskID      string       `json:"task_id"`
	Identifiers []string     `json:"video_nos"`
	Items       []ItemStatus `json:"items,omitempty"`
}

// AllParsed reports whether every item with a per-item status has reached
// "parsed". True when the service exposes no per-item statuses at all.
func (t *TaskResponse) AllParsed() bool {
	for _, it := range t.Items {
		if it.Status != "parsed" {
			return false
		}
	}
	return true
}

// QueryRequest is the body for POST /chat.
type QueryRequest struct {
	Identifiers []string `json:"video_nos"`
	Prompt      string   `json:"prompt"`
}

// ServiceError is a structured failure from the service: either a non-2xx
// HTTP response or a 2xx body carrying failed:true / success:false.
type ServiceError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("videoai: HTTP %d code %d: %s", e.HTTPStatus, e.Code, e.Message)
}

// Codes the service uses for library permission problems.
const (
	codePermissionDenied = 40303
	codeForbiddenLibrary = 40104
)

// IsPermissionDenied reports whether err is the service's library
// permission failure, which triggers the one-shot library-mode fallback.
func IsPermissionDenied(err error) bool {
	var se *ServiceError
	if !eris.As(err, &se) {
		return false
	}
	if se.Code == codePermissionDenied || se.Code == codeForbiddenLibrary {
		return true
	}
	return se.HTTPStatus == http.StatusForbidden ||
		strings.Contains(strings.ToLower(se.Message), "permission")
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new video service client. Upstream calls get a long
// timeout because upload acknowledgment can lag behind large videos.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	var resp UploadResponse
	if err := c.post(ctx, "/tasks", req, &resp); err != nil {
		return nil, eris.Wrap(err, "videoai: upload")
	}
	if resp.TaskID == "" {
		return nil, eris.New("videoai: upload response missing task_id")
	}
	return &resp, nil
}

func (c *httpClient) GetTask(ctx context.Context, taskID string) (*TaskResponse, error) {
	var resp TaskResponse
	if err := c.get(ctx, "/tasks/"+taskID, &resp); err != nil {
		return nil, eris.Wrapf(err, "videoai: get task %s", taskID)
	}
	return &resp, nil
}

// Query returns the decoded response envelope. The service's answer field
// name is not stable, so the caller probes the envelope; a 2xx body with
// failed:true is returned as-is for the caller's retry classifier.
func (c *httpClient) Query(ctx context.Context, req QueryRequest) (map[string]any, error) {
	var envelope map[string]any
	if err := c.post(ctx, "/chat", req, &envelope); err != nil {
		return nil, eris.Wrap(err, "videoai: query")
	}
	return envelope, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	return c.do(req, out)
}

// failureBody is the service's error envelope. Some endpoints use
// failed:true, others success:false; both mean the call failed.
type failureBody struct {
	Failed  *bool  `json:"failed,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &ServiceError{HTTPStatus: resp.StatusCode, Message: string(data)}
		var fb failureBody
		if json.Unmarshal(data, &fb) == nil && fb.Message != "" {
			se.Code = fb.Code
			se.Message = fb.Message
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(se, resp.StatusCode)
		}
		return se
	}

	// A 2xx with an explicit failure flag is still a failure for
	// everything except chat queries, which decode into a generic map
	// and classify the flags themselves.
	if _, generic := out.(*map[string]any); !generic {
		var fb failureBody
		if json.Unmarshal(data, &fb) == nil {
			if (fb.Failed != nil && *fb.Failed) || (fb.Success != nil && !*fb.Success) {
				return &ServiceError{HTTPStatus: resp.StatusCode, Code: fb.Code, Message: fb.Message}
			}
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
