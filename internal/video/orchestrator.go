// Package video drives the upload/poll/query lifecycle against the
// external video-understanding service and turns its answers into
// recipe cards.
package video

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/config"
	"github.com/platewise/recipe-cli/internal/describe"
	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/normalize"
	"github.com/platewise/recipe-cli/internal/platform"
	"github.com/platewise/recipe-cli/internal/preflight"
	"github.com/platewise/recipe-cli/internal/resilience"
	"github.com/platewise/recipe-cli/pkg/thumb"
	"github.com/platewise/recipe-cli/pkg/videoai"
	"github.com/platewise/recipe-cli/pkg/ytmeta"
)

// Deps are the orchestrator's collaborators. Metadata and Fallback are
// optional; everything else is required.
type Deps struct {
	Service  videoai.Client
	Metadata ytmeta.Client
	Thumbs   *thumb.Fetcher
	Breaker  *resilience.CircuitBreaker
	Fallback *describe.Extractor
}

// Orchestrator runs one video extraction per call. It holds no per-call
// state; the breaker is the only shared collaborator.
type Orchestrator struct {
	svc      videoai.Client
	meta     ytmeta.Client
	thumbs   *thumb.Fetcher
	breaker  *resilience.CircuitBreaker
	fallback *describe.Extractor
	cfg      config.VideoConfig
	mode     videoai.LibraryMode

	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, cfg config.VideoConfig, mode videoai.LibraryMode) *Orchestrator {
	return &Orchestrator{
		svc:      deps.Service,
		meta:     deps.Metadata,
		thumbs:   deps.Thumbs,
		breaker:  deps.Breaker,
		fallback: deps.Fallback,
		cfg:      cfg,
		mode:     mode,
		sleep:    defaultSleep,
		jitter:   defaultJitter,
	}
}

// Extract runs the full lifecycle for one video URL. It never returns an
// error: failures are encoded in the outcome, and a thumbnail obtained
// before the failure is still returned.
func (o *Orchestrator) Extract(ctx context.Context, videoURL string) *model.ExtractionOutcome {
	pl := platform.Classify(videoURL)
	task := &model.ExtractionTask{VideoURL: videoURL, Platform: pl, Status: model.TaskUploading}
	outcome := &model.ExtractionOutcome{Task: task}

	// Admission: no network call is made while the breaker is open.
	if !o.breaker.Allow() {
		remaining := int(o.breaker.RemainingCooldown().Seconds())
		task.Advance(model.TaskFailed)
		outcome.Failure = model.FailServiceUnavailable
		outcome.FailureDetail = fmt.Sprintf("video service temporarily unavailable, retry in %ds", remaining)
		return outcome
	}

	// Thumbnail prefetch runs concurrently with the upload and is joined
	// before every return path below.
	thumbCh := make(chan string, 1)
	go func() { thumbCh <- o.fetchThumbnail(ctx, pl, videoURL) }()
	joinThumb := func() { outcome.ThumbnailURL = <-thumbCh }

	meta := o.fetchMetadata(ctx, pl, videoURL)
	estDur := o.cfg.DefaultDurationSecs
	if meta != nil && meta.DurationSeconds > 0 {
		estDur = meta.DurationSeconds
	}

	upload, err := o.upload(ctx, videoURL)
	if err != nil {
		joinThumb()
		o.breaker.RecordFailure(err)
		task.Advance(model.TaskFailed)
		if videoai.IsPermissionDenied(err) {
			outcome.Failure = model.FailUploadPermission
			outcome.FailureDetail = "upload rejected in both library modes"
		} else {
			outcome.Failure = model.FailNetwork
			outcome.FailureDetail = err.Error()
		}
		return outcome
	}

	task.TaskID = upload.TaskID
	task.Advance(model.TaskAwaitingIDs)

	// Even when Upload assigns identifiers synchronously, the videos may
	// still be parsing: always poll until every item reports parsed. The
	// first status check happens before any sleep, so an already-parsed
	// task costs one GetTask call.
	budget := time.Duration(preflight.PollBudgetSeconds(estDur)) * time.Second
	ready, pollErr := o.awaitIdentifiers(ctx, task, budget)
	if pollErr != nil {
		joinThumb()
		o.breaker.RecordFailure(pollErr)
		task.Advance(model.TaskFailed)
		if eris.Is(pollErr, errPollBudget) {
			outcome.Failure = model.FailProcessingTimeout
			outcome.FailureDetail = fmt.Sprintf("video not indexed within %s", budget)
		} else {
			outcome.Failure = model.FailNetwork
			outcome.FailureDetail = pollErr.Error()
		}
		return outcome
	}
	ids := ready.Identifiers

	if err := o.sleep(ctx, settleDelay(estDur)); err != nil {
		joinThumb()
		task.Advance(model.TaskFailed)
		outcome.Failure = model.FailNetwork
		outcome.FailureDetail = "cancelled while waiting for index to settle"
		return outcome
	}

	task.Advance(model.TaskReady)

	// Upstream identifiers are best-effort: re-fetch immediately before
	// querying and replace the working set if it drifted. An unparsed
	// item at this point means the set is still in flux, so keep the one
	// the poll loop confirmed.
	if fresh, verifyErr := o.svc.GetTask(ctx, task.TaskID); verifyErr == nil && len(fresh.Identifiers) > 0 && fresh.AllParsed() {
		if !sameIdentifiers(ids, fresh.Identifiers) {
			zap.L().Info("identifier set changed before query",
				zap.Strings("old", ids),
				zap.Strings("new", fresh.Identifiers),
			)
			ids = fresh.Identifiers
		}
	}
	task.VideoIdentifiers = ids
	outcome.VideoIdentifiers = ids

	task.Advance(model.TaskQuerying)
	recipe, retries, err := o.query(ctx, ids)
	outcome.RetryCount = retries
	joinThumb()
	if err != nil {
		o.breaker.RecordFailure(err)
		if o.applyFallback(ctx, outcome, meta, videoURL, pl) {
			task.Advance(model.TaskDone)
			return outcome
		}
		task.Advance(model.TaskFailed)
		switch classOf(err) {
		case classInvalidStructure:
			outcome.Failure = model.FailInvalidResponse
		default:
			outcome.Failure = model.FailTransientExhausted
		}
		outcome.FailureDetail = err.Error()
		return outcome
	}

	o.breaker.RecordSuccess()
	recipe.SourceURL = videoURL
	recipe.Platform = pl
	recipe.ThumbnailURL = outcome.ThumbnailURL
	recipe.Confidence = model.Confidence{Ingredients: 0.85, Steps: 0.85, Times: 0.7}
	if recipe.Creator == "" && meta != nil {
		recipe.Creator = meta.Channel
	}
	outcome.Recipe = recipe
	task.Advance(model.TaskDone)

	zap.L().Info("video extraction complete",
		zap.String("url", videoURL),
		zap.String("title", recipe.Title),
		zap.String("status", string(task.Status)),
		zap.Int("retry_count", retries),
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
	)
	return outcome
}

// upload sends the video to the configured library, falling back to the
// other library mode exactly once on a permission-denied code.
func (o *Orchestrator) upload(ctx context.Context, videoURL string) (*videoai.UploadResponse, error) {
	req := videoai.UploadRequest{
		VideoURLs:   []string{videoURL},
		Quality:     "standard",
		LibraryMode: o.mode,
	}
	resp, err := o.svc.Upload(ctx, req)
	if err == nil || !videoai.IsPermissionDenied(err) {
		return resp, err
	}

	zap.L().Warn("upload permission denied, trying other library mode",
		zap.String("mode", string(o.mode)),
	)
	req.LibraryMode = o.mode.Other()
	return o.svc.Upload(ctx, req)
}

// query issues the structured-extraction chat request under the shared
// retry combinator. Each failure class gets its own backoff multiplier.
func (o *Orchestrator) query(ctx context.Context, ids []string) (*model.Recipe, int, error) {
	base := secs(o.cfg.BackoffBaseSecs)
	noVideosBase := secs(o.cfg.BackoffNoVideosSecs)
	badStructBase := secs(o.cfg.BackoffBadStructureSecs)
	jitterMax := base * 2 / 5

	retries := 0
	lastClass := classTransient
	backoff := func(attempt int) time.Duration {
		switch lastClass {
		case classNoVideos:
			return time.Duration(attempt) * noVideosBase
		case classInvalidStructure:
			return time.Duration(attempt) * badStructBase
		default:
			return time.Duration(attempt)*base + o.jitter(jitterMax)
		}
	}

	recipe, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts: o.cfg.MaxRetries + 1,
		Backoff:     backoff,
		ShouldRetry: func(err error) bool {
			lastClass = classOf(err)
			return lastClass != classFatal
		},
		OnRetry: func(attempt int, err error) {
			retries = attempt
			zap.L().Warn("retrying video query",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}, func(ctx context.Context) (*model.Recipe, error) {
		return o.queryOnce(ctx, ids)
	})
	return recipe, retries, err
}

func (o *Orchestrator) queryOnce(ctx context.Context, ids []string) (*model.Recipe, error) {
	env, err := o.svc.Query(ctx, videoai.QueryRequest{
		Identifiers: ids,
		Prompt:      extractionPrompt,
	})
	if err != nil {
		// A 429/5xx is retryable regardless of what the body says.
		if resilience.IsTransient(err) {
			return nil, &queryError{class: classTransient, msg: err.Error()}
		}
		var se *videoai.ServiceError
		if eris.As(err, &se) {
			return nil, classifyFailure(se.Code, se.Message)
		}
		return nil, &queryError{class: classTransient, msg: err.Error()}
	}

	if qe := envelopeFailure(env); qe != nil {
		return nil, qe
	}

	raw := extractAnswer(env)
	if raw == "" {
		return nil, &queryError{class: classInvalidStructure, msg: "no answer text in response"}
	}

	recipe, err := normalize.ParseAIRecipe(raw, model.MethodVideoAI)
	if err != nil {
		if eris.Is(err, normalize.ErrNoTitle) {
			return nil, &queryError{class: classInvalidStructure, msg: "recipe payload missing title"}
		}
		return nil, &queryError{class: classInvalidStructure, msg: "unparseable recipe JSON"}
	}
	return recipe, nil
}

// applyFallback tries the description-text extractor after video
// understanding fails. Returns true when it produced a recipe.
func (o *Orchestrator) applyFallback(ctx context.Context, outcome *model.ExtractionOutcome, meta *ytmeta.Metadata, videoURL string, pl model.Platform) bool {
	if o.fallback == nil || meta == nil || ctx.Err() != nil {
		return false
	}

	recipe, err := o.fallback.Extract(ctx, meta.Title, meta.Description)
	if err != nil {
		zap.L().Debug("description fallback failed", zap.Error(err))
		return false
	}

	recipe.SourceURL = videoURL
	recipe.Platform = pl
	recipe.ThumbnailURL = outcome.ThumbnailURL
	if recipe.Creator == "" {
		recipe.Creator = meta.Channel
	}
	outcome.Recipe = recipe

	zap.L().Info("recovered recipe from description text",
		zap.String("url", videoURL),
		zap.String("title", recipe.Title),
	)
	return true
}

func (o *Orchestrator) fetchMetadata(ctx context.Context, pl model.Platform, videoURL string) *ytmeta.Metadata {
	if o.meta == nil || !pl.HasMetadataAPI() {
		return nil
	}
	id := platform.VideoID(videoURL)
	if id == "" {
		return nil
	}
	meta, err := o.meta.GetVideoMetadata(ctx, id)
	if err != nil {
		zap.L().Warn("metadata fetch failed", zap.String("video_id", id), zap.Error(err))
		return nil
	}
	return meta
}

// fetchThumbnail never fails the extraction; a missing thumbnail is just
// an empty string.
func (o *Orchestrator) fetchThumbnail(ctx context.Context, pl model.Platform, videoURL string) string {
	var url string
	var err error
	switch pl {
	case model.PlatformYouTube:
		if id := platform.VideoID(videoURL); id != "" {
			url = thumb.YouTube(id)
		}
	case model.PlatformTikTok:
		if o.thumbs != nil {
			url, err = o.thumbs.TikTok(ctx, videoURL)
		}
	case model.PlatformInstagram:
		if o.thumbs != nil {
			url, err = o.thumbs.Instagram(ctx, videoURL)
		}
	}
	if err != nil {
		zap.L().Debug("thumbnail fetch failed", zap.String("url", videoURL), zap.Error(err))
	}
	return url
}

func sameIdentifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
