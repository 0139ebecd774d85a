package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/recipe-cli/internal/config"
	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/preflight"
	"github.com/platewise/recipe-cli/internal/resilience"
	"github.com/platewise/recipe-cli/internal/store"
	"github.com/platewise/recipe-cli/internal/video"
	"github.com/platewise/recipe-cli/internal/webx"
	"github.com/platewise/recipe-cli/pkg/thumb"
	"github.com/platewise/recipe-cli/pkg/videoai"
	"github.com/platewise/recipe-cli/pkg/ytmeta"
)

func newTestEnv(t *testing.T) *extractorEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	gate, err := preflight.NewGate(ytmeta.NewClient(""), config.PreflightConfig{
		MinDurationSecs: 10,
		MaxDurationSecs: 1200,
	})
	require.NoError(t, err)

	orch := video.NewOrchestrator(video.Deps{
		Service: videoai.NewClient(""),
		Thumbs:  thumb.NewFetcher(),
		Breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}, config.VideoConfig{MaxRetries: 1, DefaultDurationSecs: 180, MaxPollErrors: 3}, videoai.LibraryPrivate)

	return &extractorEnv{
		Store: st,
		Gate:  gate,
		Video: orch,
		Web:   webx.NewPipeline(config.WebConfig{FetchTimeoutSecs: 5, DisableRender: true}),
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeAdmitValidation(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := postJSON(t, router, "/v1/admit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url is required")

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", bytes.NewReader([]byte("{not json")))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestServeAdmitURLOnlyPlatform(t *testing.T) {
	// TikTok has no metadata API, so the reduced URL-only check runs
	// without any outbound call.
	router := newRouter(newTestEnv(t))

	rec := postJSON(t, router, "/v1/admit", map[string]string{
		"url": "https://www.tiktok.com/@quickrecipes/video/123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.PreflightResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Pass)
	assert.True(t, result.AllowOverride)
}

func TestServeGetRun(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	run, err := env.Store.CreateRun(ctx, "https://www.tiktok.com/@x/video/1", model.PlatformTikTok)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
}

func TestServeListRuns(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	_, err := env.Store.CreateRun(ctx, "https://example.com/stew", model.PlatformWeb)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?platform=web", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestServeExtractVideoUnsupportedPlatform(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := postJSON(t, router, "/v1/extract/video", map[string]string{
		"url": "https://example.com/blog/not-a-video",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported video platform")
}

func TestServeExtractVideoDedup(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)
	ctx := context.Background()
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	prior, err := env.Store.CreateRun(ctx, url, model.PlatformYouTube)
	require.NoError(t, err)
	require.NoError(t, env.Store.CompleteRun(ctx, prior.ID, model.MethodVideoAI, 0, &model.Recipe{Title: "Ramen"}))

	rec := postJSON(t, router, "/v1/extract/video", map[string]string{"url": url})
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, prior.ID, got.ID)
	require.NotNil(t, got.Recipe)
	assert.Equal(t, "Ramen", got.Recipe.Title)
}

func TestServeExtractWeb(t *testing.T) {
	page := `<html><head><title>Weeknight Chili</title></head><body>
	<h1>Weeknight Chili</h1>
	<ul class="ingredients">
	  <li>1 lb ground beef</li>
	  <li>2 cans kidney beans</li>
	  <li>1 tbsp chili powder</li>
	  <li>1/2 cup diced onion</li>
	</ul>
	<ol>
	  <li>Brown the beef over medium heat.</li>
	  <li>Add the beans and chili powder, then stir well.</li>
	  <li>Simmer for 30 minutes and serve hot.</li>
	</ol>
	</body></html>`
	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer pageServer.Close()

	env := newTestEnv(t)
	router := newRouter(env)

	rec := postJSON(t, router, "/v1/extract/web", map[string]string{"url": pageServer.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.RunSucceeded, got.Status)
	assert.Equal(t, model.MethodHeuristic, got.Method)
	require.NotNil(t, got.Recipe)
	assert.Equal(t, "Weeknight Chili", got.Recipe.Title)
	assert.Len(t, got.Recipe.Ingredients, 4)
	assert.Len(t, got.Recipe.Steps, 3)

	// A second request for the same URL returns the stored run.
	rec = postJSON(t, router, "/v1/extract/web", map[string]string{"url": pageServer.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	var again model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, got.ID, again.ID)
}

func TestServeExtractWebInadequate(t *testing.T) {
	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>just an essay about soup</p></body></html>`))
	}))
	defer pageServer.Close()

	env := newTestEnv(t)
	router := newRouter(env)

	rec := postJSON(t, router, "/v1/extract/web", map[string]string{"url": pageServer.URL})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Equal(t, model.FailExtractionInadequate, got.Failure)
}
