package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/recipe-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Run_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "https://www.youtube.com/watch?v=abc123xyz00", model.PlatformYouTube)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123xyz00", got.SourceURL)
	assert.Equal(t, model.PlatformYouTube, got.Platform)
	assert.Zero(t, got.RetryCount)
	assert.Nil(t, got.Recipe)
}

func TestSQLite_Run_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSQLite_Run_Complete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "https://www.tiktok.com/@cook/video/1", model.PlatformTikTok)
	require.NoError(t, err)

	recipe := &model.Recipe{
		Title: "Garlic Noodles",
		Ingredients: []model.Ingredient{
			{Raw: "4 cloves garlic", Quantity: "4", Unit: "cloves", Name: "garlic"},
		},
		Steps: []model.Step{{Order: 1, Text: "Mince the garlic."}},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.MethodVideoAI, 2, recipe))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, got.Status)
	assert.Equal(t, model.MethodVideoAI, got.Method)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.Recipe)
	assert.Equal(t, "Garlic Noodles", got.Recipe.Title)
	require.Len(t, got.Recipe.Ingredients, 1)
	assert.Equal(t, "4 cloves garlic", got.Recipe.Ingredients[0].Raw)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestSQLite_Run_Fail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "https://www.instagram.com/reel/xyz/", model.PlatformInstagram)
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, 3, model.FailTransientExhausted, "retries exhausted after 3 attempts"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Equal(t, model.FailTransientExhausted, got.Failure)
	assert.Equal(t, "retries exhausted after 3 attempts", got.FailureDetail)
	assert.Equal(t, 3, got.RetryCount)
	assert.Nil(t, got.Recipe)
}

func TestSQLite_Run_FinalizeMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.Error(t, st.CompleteRun(ctx, "nope", model.MethodVideoAI, 0, &model.Recipe{Title: "x"}))
	assert.Error(t, st.FailRun(ctx, "nope", 0, model.FailNetwork, "offline"))
}

func TestSQLite_Run_AttachPreflight(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "https://www.youtube.com/watch?v=abc123xyz00", model.PlatformYouTube)
	require.NoError(t, err)

	pf := &model.PreflightResult{Pass: true, Score: 5}
	require.NoError(t, st.AttachPreflight(ctx, run.ID, pf))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Preflight)
	assert.True(t, got.Preflight.Pass)
	assert.Equal(t, float64(5), got.Preflight.Score)
}

func TestSQLite_Run_GetBySourceURL(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	url := "https://www.youtube.com/watch?v=dup11111111"

	got, err := st.GetRunBySourceURL(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, got)

	first, err := st.CreateRun(ctx, url, model.PlatformYouTube)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, first.ID, 0, model.FailNetwork, "flaky"))

	second, err := st.CreateRun(ctx, url, model.PlatformYouTube)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, second.ID, model.MethodVideoAI, 0, &model.Recipe{Title: "Ramen"}))

	got, err = st.GetRunBySourceURL(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, model.RunSucceeded, got.Status)
}

func TestSQLite_Run_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "https://www.youtube.com/watch?v=aaa11111111", model.PlatformYouTube)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, model.MethodVideoAI, 0, &model.Recipe{Title: "A"}))

	b, err := st.CreateRun(ctx, "https://www.tiktok.com/@x/video/2", model.PlatformTikTok)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, b.ID, 1, model.FailProcessingTimeout, "poll budget exceeded"))

	_, err = st.CreateRun(ctx, "https://example.com/blog/stew", model.PlatformWeb)
	require.NoError(t, err)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	tiktok, err := st.ListRuns(ctx, RunFilter{Platform: model.PlatformTikTok})
	require.NoError(t, err)
	require.Len(t, tiktok, 1)
	assert.Equal(t, b.ID, tiktok[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
