package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/model"
)

var (
	extractWebURL   string
	extractWebForce bool
)

var extractWebCmd = &cobra.Command{
	Use:   "extractweb",
	Short: "Extract a recipe from a web page",
	Long:  "Runs the layered web cascade (JSON-LD, Microdata, readability, heuristic DOM scan) with a headless render fallback for client-rendered pages. The run is persisted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !extractWebForce {
			prior, err := env.Store.GetRunBySourceURL(ctx, extractWebURL)
			if err != nil {
				return eris.Wrap(err, "lookup prior run")
			}
			if prior != nil && prior.Status == model.RunSucceeded {
				zap.L().Info("source already extracted, returning stored run",
					zap.String("url", extractWebURL),
					zap.String("run_id", prior.ID),
				)
				return printJSON(prior)
			}
		}

		run, err := env.Store.CreateRun(ctx, extractWebURL, model.PlatformWeb)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result := env.Web.Extract(ctx, extractWebURL)

		if !result.Adequate() {
			detail := "no layer produced 3 ingredients or 2 steps"
			if err := env.Store.FailRun(ctx, run.ID, 0, model.FailExtractionInadequate, detail); err != nil {
				return err
			}
			return printRun(ctx, env, run.ID)
		}

		recipe := webRecipe(result, extractWebURL)
		if err := env.Store.CompleteRun(ctx, run.ID, recipe.Method, 0, recipe); err != nil {
			return err
		}

		zap.L().Info("web extraction complete",
			zap.String("url", extractWebURL),
			zap.String("run_id", run.ID),
			zap.String("layer", string(result.Layer)),
		)

		return printRun(ctx, env, run.ID)
	},
}

// webRecipe converts a cascade result into the canonical recipe card.
func webRecipe(result *model.WebExtractionResult, sourceURL string) *model.Recipe {
	return &model.Recipe{
		Title:        result.Title,
		Servings:     result.Servings,
		PrepMinutes:  result.PrepMinutes,
		CookMinutes:  result.CookMinutes,
		TotalMinutes: result.TotalMinutes,
		Ingredients:  result.Ingredients,
		Steps:        result.Steps,
		Creator:      result.Author,
		SourceURL:    sourceURL,
		Platform:     model.PlatformWeb,
		Method:       model.ExtractionMethod(result.Layer),
		Confidence:   result.Confidence,
		ExtractedAt:  time.Now().UTC(),
	}
}

func init() {
	extractWebCmd.Flags().StringVar(&extractWebURL, "url", "", "recipe page URL (required)")
	extractWebCmd.Flags().BoolVar(&extractWebForce, "force", false, "extract even when a successful run exists")
	_ = extractWebCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(extractWebCmd)
}
