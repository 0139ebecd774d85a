package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/platform"
)

var (
	extractURL   string
	extractForce bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a recipe from a cooking video",
	Long:  "Runs the admission gate, then the full video extraction lifecycle: upload, poll, query, and description fallback. The run is persisted; extracting an already-succeeded URL returns the stored run unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pl := platform.Classify(extractURL)
		if !pl.IsVideo() {
			return eris.Errorf("unsupported video platform for URL %s", extractURL)
		}

		// Dedup: a prior successful run short-circuits the extraction.
		if !extractForce {
			prior, err := env.Store.GetRunBySourceURL(ctx, extractURL)
			if err != nil {
				return eris.Wrap(err, "lookup prior run")
			}
			if prior != nil && prior.Status == model.RunSucceeded {
				zap.L().Info("source already extracted, returning stored run",
					zap.String("url", extractURL),
					zap.String("run_id", prior.ID),
				)
				return printJSON(prior)
			}
		}

		run, err := env.Store.CreateRun(ctx, extractURL, pl)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		pf, err := env.Gate.Check(ctx, extractURL)
		if err != nil {
			zap.L().Error("preflight check failed", zap.String("url", extractURL), zap.Error(err))
			if ferr := env.Store.FailRun(ctx, run.ID, 0, model.FailNetwork, err.Error()); ferr != nil {
				return ferr
			}
			return eris.Wrap(err, "preflight check")
		}
		if err := env.Store.AttachPreflight(ctx, run.ID, pf); err != nil {
			return eris.Wrap(err, "attach preflight")
		}

		if !pf.Pass && !extractForce {
			zap.L().Info("admission rejected",
				zap.String("url", extractURL),
				zap.Float64("score", pf.Score),
				zap.String("reason", pf.Reason),
				zap.Bool("override_allowed", pf.AllowOverride),
			)
			if err := env.Store.FailRun(ctx, run.ID, 0, model.FailAdmissionRejected, pf.Reason); err != nil {
				return err
			}
			return printRun(ctx, env, run.ID)
		}

		outcome := env.Video.Extract(ctx, extractURL)

		if outcome.Failed() {
			if err := env.Store.FailRun(ctx, run.ID, outcome.RetryCount, outcome.Failure, outcome.FailureDetail); err != nil {
				return err
			}
		} else {
			if err := env.Store.CompleteRun(ctx, run.ID, outcome.Recipe.Method, outcome.RetryCount, outcome.Recipe); err != nil {
				return err
			}
		}

		zap.L().Info("extraction complete",
			zap.String("url", extractURL),
			zap.String("run_id", run.ID),
			zap.Bool("failed", outcome.Failed()),
			zap.Int("retries", outcome.RetryCount),
		)

		return printRun(ctx, env, run.ID)
	},
}

// printRun re-reads a finalized run and writes it to stdout.
func printRun(ctx context.Context, env *extractorEnv, runID string) error {
	run, err := env.Store.GetRun(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "reload run")
	}
	return printJSON(run)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "video URL (required)")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "extract even when admission rejects or a successful run exists")
	_ = extractCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(extractCmd)
}
