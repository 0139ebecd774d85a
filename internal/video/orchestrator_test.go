package video

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/recipe-cli/internal/config"
	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/resilience"
	"github.com/platewise/recipe-cli/pkg/videoai"
)

// fakeService scripts the video service: each GetTask/Query call consumes
// the next response in its list, repeating the last one when exhausted.
type fakeService struct {
	uploadFn   func(req videoai.UploadRequest) (*videoai.UploadResponse, error)
	uploadReqs []videoai.UploadRequest
	taskResps  []func() (*videoai.TaskResponse, error)
	taskCalls  int
	queryResps []func() (map[string]any, error)
	queryCalls int
}

func (f *fakeService) Upload(ctx context.Context, req videoai.UploadRequest) (*videoai.UploadResponse, error) {
	f.uploadReqs = append(f.uploadReqs, req)
	if f.uploadFn != nil {
		return f.uploadFn(req)
	}
	return &videoai.UploadResponse{TaskID: "task-1", Identifiers: []string{"vid-1"}}, nil
}

func (f *fakeService) GetTask(ctx context.Context, taskID string) (*videoai.TaskResponse, error) {
	i := f.taskCalls
	f.taskCalls++
	if len(f.taskResps) == 0 {
		return &videoai.TaskResponse{TaskID: taskID, Identifiers: []string{"vid-1"}}, nil
	}
	if i >= len(f.taskResps) {
		i = len(f.taskResps) - 1
	}
	return f.taskResps[i]()
}

func (f *fakeService) Query(ctx context.Context, req videoai.QueryRequest) (map[string]any, error) {
	i := f.queryCalls
	f.queryCalls++
	if i >= len(f.queryResps) {
		i = len(f.queryResps) - 1
	}
	return f.queryResps[i]()
}

func recipeEnvelope() (map[string]any, error) {
	return map[string]any{
		"data": map[string]any{
			"response": `{"title": "Pad Thai", "ingredients": ["4 oz rice noodles", "2 tbsp fish sauce", "1 egg"], "steps": ["Soak the noodles.", "Stir fry everything."]}`,
		},
	}, nil
}

func transientEnvelope() (map[string]any, error) {
	return map[string]any{"failed": true, "message": "network error, please retry"}, nil
}

func testVideoCfg() config.VideoConfig {
	return config.VideoConfig{
		MaxRetries:              3,
		BackoffBaseSecs:         0.001,
		BackoffNoVideosSecs:     0.001,
		BackoffBadStructureSecs: 0.001,
		DefaultDurationSecs:     180,
		MaxPollErrors:           3,
	}
}

func newTestOrchestrator(svc videoai.Client, breaker *resilience.CircuitBreaker) *Orchestrator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	o := NewOrchestrator(Deps{Service: svc, Breaker: breaker}, testVideoCfg(), videoai.LibraryPrivate)
	o.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	o.jitter = func(time.Duration) time.Duration { return 0 }
	return o
}

const ytURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestExtractSuccess(t *testing.T) {
	svc := &fakeService{queryResps: []func() (map[string]any, error){recipeEnvelope}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed(), "detail: %s", outcome.FailureDetail)
	require.NotNil(t, outcome.Recipe)

	assert.Equal(t, "Pad Thai", outcome.Recipe.Title)
	assert.Equal(t, model.MethodVideoAI, outcome.Recipe.Method)
	assert.Equal(t, ytURL, outcome.Recipe.SourceURL)
	assert.Equal(t, model.PlatformYouTube, outcome.Recipe.Platform)
	assert.Equal(t, []string{"vid-1"}, outcome.VideoIdentifiers)
	assert.Zero(t, outcome.RetryCount)

	// YouTube thumbnails need no network call.
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", outcome.ThumbnailURL)
	assert.Equal(t, outcome.ThumbnailURL, outcome.Recipe.ThumbnailURL)

	require.NotNil(t, outcome.Task)
	assert.Equal(t, model.TaskDone, outcome.Task.Status)
	assert.Equal(t, "task-1", outcome.Task.TaskID)
	assert.Equal(t, []string{"vid-1"}, outcome.Task.VideoIdentifiers)
}

func TestExtractBreakerOpenShortCircuits(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	for i := 0; i < 5; i++ {
		breaker.RecordFailure(eris.New("boom"))
	}

	svc := &fakeService{}
	o := newTestOrchestrator(svc, breaker)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailServiceUnavailable, outcome.Failure)
	assert.Contains(t, outcome.FailureDetail, "retry in")
	assert.Empty(t, svc.uploadReqs, "no network call while the breaker is open")
}

func TestExtractRetryBound(t *testing.T) {
	// 4 consecutive transient responses: the initial try plus exactly
	// maxRetries retries, and never a 5th attempt.
	svc := &fakeService{queryResps: []func() (map[string]any, error){
		transientEnvelope, transientEnvelope, transientEnvelope, transientEnvelope, recipeEnvelope,
	}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailTransientExhausted, outcome.Failure)
	assert.Equal(t, 4, svc.queryCalls)
	assert.Equal(t, 3, outcome.RetryCount)
}

func TestExtractRecoversAfterTransients(t *testing.T) {
	svc := &fakeService{queryResps: []func() (map[string]any, error){
		transientEnvelope, transientEnvelope, recipeEnvelope,
	}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed(), "detail: %s", outcome.FailureDetail)
	assert.Equal(t, 2, outcome.RetryCount, "two retries observable in telemetry, not surfaced as an error")
	assert.Equal(t, 3, svc.queryCalls)
}

func TestExtractInvalidStructureExhausted(t *testing.T) {
	noTitle := func() (map[string]any, error) {
		return map[string]any{"data": map[string]any{"response": `{"ingredients": ["1 cup rice"]}`}}, nil
	}
	svc := &fakeService{queryResps: []func() (map[string]any, error){noTitle}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailInvalidResponse, outcome.Failure)
	assert.Equal(t, 4, svc.queryCalls, "invalid structure is retried as transient")
}

func TestQueryServerErrorRetried(t *testing.T) {
	// A 5xx is retryable even when the body message matches none of the
	// transient indicators.
	unavailable := func() (map[string]any, error) {
		se := &videoai.ServiceError{HTTPStatus: 503, Message: "upstream capacity exhausted"}
		return nil, resilience.NewTransientError(se, 503)
	}
	svc := &fakeService{queryResps: []func() (map[string]any, error){
		unavailable, unavailable, recipeEnvelope,
	}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed(), "detail: %s", outcome.FailureDetail)
	assert.Equal(t, 3, svc.queryCalls)
	assert.Equal(t, 2, outcome.RetryCount)
}

func TestExtractFatalNotRetried(t *testing.T) {
	fatal := func() (map[string]any, error) {
		return map[string]any{"failed": true, "message": "unsupported video format"}, nil
	}
	svc := &fakeService{queryResps: []func() (map[string]any, error){fatal}}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.True(t, outcome.Failed())
	assert.Equal(t, 1, svc.queryCalls)
}

func TestUploadPermissionFallback(t *testing.T) {
	svc := &fakeService{
		queryResps: []func() (map[string]any, error){recipeEnvelope},
	}
	svc.uploadFn = func(req videoai.UploadRequest) (*videoai.UploadResponse, error) {
		if req.LibraryMode == videoai.LibraryPrivate {
			return nil, &videoai.ServiceError{HTTPStatus: 403, Code: 40303, Message: "no permission"}
		}
		return &videoai.UploadResponse{TaskID: "task-1", Identifiers: []string{"vid-1"}}, nil
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed(), "detail: %s", outcome.FailureDetail)

	require.Len(t, svc.uploadReqs, 2)
	assert.Equal(t, videoai.LibraryPrivate, svc.uploadReqs[0].LibraryMode)
	assert.Equal(t, videoai.LibraryPublic, svc.uploadReqs[1].LibraryMode)
}

func TestUploadPermissionExhausted(t *testing.T) {
	svc := &fakeService{}
	svc.uploadFn = func(req videoai.UploadRequest) (*videoai.UploadResponse, error) {
		return nil, &videoai.ServiceError{HTTPStatus: 403, Code: 40303, Message: "no permission"}
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailUploadPermission, outcome.Failure)
	assert.Len(t, svc.uploadReqs, 2, "one fallback attempt, then fatal")

	// Thumbnail survives the failure.
	assert.NotEmpty(t, outcome.ThumbnailURL)
}

func TestPollBudgetExceeded(t *testing.T) {
	neverReady := func() (*videoai.TaskResponse, error) {
		return &videoai.TaskResponse{TaskID: "task-1"}, nil
	}
	svc := &fakeService{
		uploadFn: func(videoai.UploadRequest) (*videoai.UploadResponse, error) {
			return &videoai.UploadResponse{TaskID: "task-1"}, nil
		},
		taskResps: []func() (*videoai.TaskResponse, error){neverReady},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailProcessingTimeout, outcome.Failure)
	assert.NotEmpty(t, outcome.ThumbnailURL)
	assert.Equal(t, model.TaskFailed, outcome.Task.Status)
}

func TestPollConsecutiveErrorsAbort(t *testing.T) {
	fail := func() (*videoai.TaskResponse, error) { return nil, eris.New("connection reset") }
	svc := &fakeService{
		uploadFn: func(videoai.UploadRequest) (*videoai.UploadResponse, error) {
			return &videoai.UploadResponse{TaskID: "task-1"}, nil
		},
		taskResps: []func() (*videoai.TaskResponse, error){fail},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailNetwork, outcome.Failure)
	assert.Equal(t, 3, svc.taskCalls)
}

func TestPollErrorStreakResetByNotReady(t *testing.T) {
	calls := []func() (*videoai.TaskResponse, error){
		func() (*videoai.TaskResponse, error) { return nil, eris.New("reset") },
		func() (*videoai.TaskResponse, error) { return nil, eris.New("reset") },
		func() (*videoai.TaskResponse, error) { return &videoai.TaskResponse{TaskID: "task-1"}, nil },
		func() (*videoai.TaskResponse, error) { return nil, eris.New("reset") },
		func() (*videoai.TaskResponse, error) {
			return &videoai.TaskResponse{TaskID: "task-1", Identifiers: []string{"vid-1"}}, nil
		},
	}
	svc := &fakeService{
		uploadFn: func(videoai.UploadRequest) (*videoai.UploadResponse, error) {
			return &videoai.UploadResponse{TaskID: "task-1"}, nil
		},
		taskResps:  calls,
		queryResps: []func() (map[string]any, error){recipeEnvelope},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.False(t, outcome.Failed(), "a not-ready response resets the error streak")
}

func TestReverificationReplacesIdentifiers(t *testing.T) {
	// The poll loop confirms vid-1; the pre-query re-verification
	// discovers the set drifted to vid-2.
	svc := &fakeService{
		taskResps: []func() (*videoai.TaskResponse, error){
			func() (*videoai.TaskResponse, error) {
				return &videoai.TaskResponse{TaskID: "task-1", Identifiers: []string{"vid-1"}}, nil
			},
			func() (*videoai.TaskResponse, error) {
				return &videoai.TaskResponse{TaskID: "task-1", Identifiers: []string{"vid-2"}}, nil
			},
		},
		queryResps: []func() (map[string]any, error){recipeEnvelope},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed())
	assert.Equal(t, []string{"vid-2"}, outcome.VideoIdentifiers)
}

func TestSyncIdentifiersAwaitParse(t *testing.T) {
	// Upload assigns identifiers synchronously but the video is still
	// parsing: the query must not fire until every item is parsed.
	parsing := func() (*videoai.TaskResponse, error) {
		return &videoai.TaskResponse{
			TaskID:      "task-1",
			Identifiers: []string{"vid-1"},
			Items:       []videoai.ItemStatus{{Identifier: "vid-1", Status: "parsing"}},
		}, nil
	}
	parsed := func() (*videoai.TaskResponse, error) {
		return &videoai.TaskResponse{
			TaskID:      "task-1",
			Identifiers: []string{"vid-1"},
			Items:       []videoai.ItemStatus{{Identifier: "vid-1", Status: "parsed"}},
		}, nil
	}
	svc := &fakeService{
		taskResps:  []func() (*videoai.TaskResponse, error){parsing, parsing, parsed},
		queryResps: []func() (map[string]any, error){recipeEnvelope},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	require.False(t, outcome.Failed(), "detail: %s", outcome.FailureDetail)
	assert.GreaterOrEqual(t, svc.taskCalls, 3, "polled through the parsing states")
	assert.Equal(t, 1, svc.queryCalls)
	assert.Equal(t, []string{"vid-1"}, outcome.VideoIdentifiers)
}

func TestSyncIdentifiersNeverParsedTimesOut(t *testing.T) {
	stuck := func() (*videoai.TaskResponse, error) {
		return &videoai.TaskResponse{
			TaskID:      "task-1",
			Identifiers: []string{"vid-1"},
			Items:       []videoai.ItemStatus{{Identifier: "vid-1", Status: "parsing"}},
		}, nil
	}
	svc := &fakeService{
		taskResps:  []func() (*videoai.TaskResponse, error){stuck},
		queryResps: []func() (map[string]any, error){recipeEnvelope},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailProcessingTimeout, outcome.Failure)
	assert.Zero(t, svc.queryCalls, "no query against unparsed items")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	fatal := func() (map[string]any, error) {
		return map[string]any{"failed": true, "message": "unsupported"}, nil
	}
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	svc := &fakeService{queryResps: []func() (map[string]any, error){fatal}}
	o := newTestOrchestrator(svc, breaker)

	for i := 0; i < 5; i++ {
		outcome := o.Extract(context.Background(), ytURL)
		assert.True(t, outcome.Failed())
	}

	outcome := o.Extract(context.Background(), ytURL)
	assert.Equal(t, model.FailServiceUnavailable, outcome.Failure)
}

func TestExtractCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{
		uploadFn: func(videoai.UploadRequest) (*videoai.UploadResponse, error) {
			return &videoai.UploadResponse{TaskID: "task-1"}, nil
		},
	}
	o := newTestOrchestrator(svc, nil)

	outcome := o.Extract(ctx, ytURL)
	assert.True(t, outcome.Failed())
}
