package main

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/recipe-cli/internal/model"
)

func TestReadURLLines(t *testing.T) {
	input := `
https://www.youtube.com/watch?v=abc

# weekly batch below
https://www.tiktok.com/@cook/video/1
  https://example.com/chili
`
	urls, err := readURLLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.youtube.com/watch?v=abc",
		"https://www.tiktok.com/@cook/video/1",
		"https://example.com/chili",
	}, urls)
}

func TestProcessBatchAppliesLimit(t *testing.T) {
	var calls atomic.Int64
	err := processBatch(context.Background(), []string{"a", "b", "c", "d"}, 2, 1,
		func(ctx context.Context, url string) (*model.Run, error) {
			calls.Add(1)
			return &model.Run{ID: url, Status: model.RunSucceeded}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestProcessBatchSurvivesFailures(t *testing.T) {
	var calls atomic.Int64
	err := processBatch(context.Background(), []string{"good", "error", "rejected"}, 0, 2,
		func(ctx context.Context, url string) (*model.Run, error) {
			calls.Add(1)
			switch url {
			case "error":
				return nil, eris.New("boom")
			case "rejected":
				return &model.Run{ID: url, Status: model.RunFailed, Failure: model.FailAdmissionRejected}, nil
			default:
				return &model.Run{ID: url, Status: model.RunSucceeded}, nil
			}
		})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load(), "an individual failure must not abort the batch")
}

func TestProcessBatchBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	urls := []string{"a", "b", "c", "d", "e", "f"}
	err := processBatch(context.Background(), urls, 0, 2,
		func(ctx context.Context, url string) (*model.Run, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
			return &model.Run{ID: url, Status: model.RunSucceeded}, nil
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestProcessBatchEmpty(t *testing.T) {
	err := processBatch(context.Background(), nil, 10, 2,
		func(ctx context.Context, url string) (*model.Run, error) {
			t.Fatal("extract should not be called")
			return nil, nil
		})
	assert.NoError(t, err)
}
