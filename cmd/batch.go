package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/platform"
)

var (
	batchFile        string
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract recipes from a file of URLs",
	Long:  "Reads one URL per line (blank lines and # comments skipped) and extracts each concurrently. Video URLs go through the admission gate and video orchestrator; everything else goes through the web cascade. Individual failures do not abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(batchFile)
		if err != nil {
			return eris.Wrap(err, "open url file")
		}
		urls, err := readURLLines(f)
		f.Close()
		if err != nil {
			return eris.Wrap(err, "read url file")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return processBatch(ctx, urls, batchLimit, batchConcurrency, func(ctx context.Context, url string) (*model.Run, error) {
			return extractSource(ctx, env, url)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to file with one URL per line (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of URLs to process")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 3, "max URLs processed in parallel")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readURLLines reads one URL per line, skipping blanks and # comments.
func readURLLines(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// extractFunc runs one extraction and returns the finalized run.
type extractFunc func(ctx context.Context, url string) (*model.Run, error)

// processBatch applies limit, then extracts URLs concurrently.
func processBatch(ctx context.Context, urls []string, limit, concurrency int, extract extractFunc) error {
	if len(urls) == 0 {
		zap.L().Info("no urls to process")
		return nil
	}

	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, url := range urls {
		g.Go(func() error {
			log := zap.L().With(zap.String("url", url))

			run, err := extract(gctx, url)
			if err != nil {
				failed.Add(1)
				log.Error("extraction failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			if run.Status == model.RunFailed {
				failed.Add(1)
				log.Warn("extraction failed",
					zap.String("run_id", run.ID),
					zap.String("failure", string(run.Failure)),
				)
				return nil
			}

			succeeded.Add(1)
			log.Info("extraction complete",
				zap.String("run_id", run.ID),
				zap.String("method", string(run.Method)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// extractSource routes one URL to the video or web pipeline, persists the
// run, and returns it. A prior successful run short-circuits.
func extractSource(ctx context.Context, env *extractorEnv, url string) (*model.Run, error) {
	prior, err := env.Store.GetRunBySourceURL(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "lookup prior run")
	}
	if prior != nil && prior.Status == model.RunSucceeded {
		return prior, nil
	}

	pl := platform.Classify(url)
	if !pl.IsVideo() {
		run, err := env.Store.CreateRun(ctx, url, model.PlatformWeb)
		if err != nil {
			return nil, eris.Wrap(err, "create run")
		}
		result := env.Web.Extract(ctx, url)
		if !result.Adequate() {
			if err := env.Store.FailRun(ctx, run.ID, 0, model.FailExtractionInadequate, "no layer produced 3 ingredients or 2 steps"); err != nil {
				return nil, err
			}
		} else {
			recipe := webRecipe(result, url)
			if err := env.Store.CompleteRun(ctx, run.ID, recipe.Method, 0, recipe); err != nil {
				return nil, err
			}
		}
		return env.Store.GetRun(ctx, run.ID)
	}

	run, err := env.Store.CreateRun(ctx, url, pl)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}

	pf, err := env.Gate.Check(ctx, url)
	if err != nil {
		if ferr := env.Store.FailRun(ctx, run.ID, 0, model.FailNetwork, err.Error()); ferr != nil {
			return nil, ferr
		}
		return env.Store.GetRun(ctx, run.ID)
	}
	if err := env.Store.AttachPreflight(ctx, run.ID, pf); err != nil {
		return nil, err
	}
	if !pf.Pass {
		if err := env.Store.FailRun(ctx, run.ID, 0, model.FailAdmissionRejected, pf.Reason); err != nil {
			return nil, err
		}
		return env.Store.GetRun(ctx, run.ID)
	}

	outcome := env.Video.Extract(ctx, url)
	if outcome.Failed() {
		if err := env.Store.FailRun(ctx, run.ID, outcome.RetryCount, outcome.Failure, outcome.FailureDetail); err != nil {
			return nil, err
		}
	} else {
		if err := env.Store.CompleteRun(ctx, run.ID, outcome.Recipe.Method, outcome.RetryCount, outcome.Recipe); err != nil {
			return nil, err
		}
	}
	return env.Store.GetRun(ctx, run.ID)
}
