package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/describe"
	"github.com/platewise/recipe-cli/internal/preflight"
	"github.com/platewise/recipe-cli/internal/resilience"
	"github.com/platewise/recipe-cli/internal/store"
	"github.com/platewise/recipe-cli/internal/video"
	"github.com/platewise/recipe-cli/internal/webx"
	"github.com/platewise/recipe-cli/pkg/llm"
	"github.com/platewise/recipe-cli/pkg/thumb"
	"github.com/platewise/recipe-cli/pkg/videoai"
	"github.com/platewise/recipe-cli/pkg/ytmeta"
)

// extractorEnv holds the initialized store, gate, and extractors needed by
// the admit/extract/serve commands.
type extractorEnv struct {
	Store store.Store
	Gate  *preflight.Gate
	Video *video.Orchestrator
	Web   *webx.Pipeline
}

// Close releases resources held by the environment.
func (e *extractorEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the run database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv sets up the store, all API clients, the admission gate, and both
// extraction pipelines. Callers should defer env.Close().
func initEnv(ctx context.Context) (*extractorEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	metaClient := ytmeta.NewClient(cfg.YouTube.Key,
		ytmeta.WithBaseURL(cfg.YouTube.BaseURL),
		ytmeta.WithRateLimit(cfg.YouTube.RateQPS),
	)
	if cfg.YouTube.Key == "" {
		zap.L().Warn("RECIPE_YOUTUBE_KEY not set, YouTube metadata lookups will fail")
	}

	gate, err := preflight.NewGate(metaClient, cfg.Preflight)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init preflight gate")
	}

	svc := videoai.NewClient(cfg.VideoAI.Key, videoai.WithBaseURL(cfg.VideoAI.BaseURL))

	mode := videoai.LibraryMode(cfg.VideoAI.LibraryMode)
	if mode != videoai.LibraryPublic {
		mode = videoai.LibraryPrivate
	}

	// Description fallback is optional: without an Anthropic key the
	// orchestrator simply reports the video failure as-is.
	var fallback *describe.Extractor
	if cfg.Anthropic.Key != "" {
		fallback = describe.NewExtractor(llm.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Warn("RECIPE_ANTHROPIC_KEY not set, description fallback disabled")
	}

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.Breaker.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.CooldownSecs > 0 {
		breakerCfg.Cooldown = time.Duration(cfg.Breaker.CooldownSecs) * time.Second
	}
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("video service breaker state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	orch := video.NewOrchestrator(video.Deps{
		Service:  svc,
		Metadata: metaClient,
		Thumbs:   thumb.NewFetcher(thumb.WithUserAgent(cfg.Web.UserAgent)),
		Breaker:  resilience.NewCircuitBreaker(breakerCfg),
		Fallback: fallback,
	}, cfg.Video, mode)

	return &extractorEnv{
		Store: st,
		Gate:  gate,
		Video: orch,
		Web:   webx.NewPipeline(cfg.Web),
	}, nil
}
