package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/preflight"
	"github.com/platewise/recipe-cli/pkg/ytmeta"
)

var admitURL string

var admitCmd = &cobra.Command{
	Use:   "admit",
	Short: "Run the preflight admission check for a video URL",
	Long:  "Scores video metadata against recipe and anti-recipe signals without committing to extraction. Prints the admission verdict as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		metaClient := ytmeta.NewClient(cfg.YouTube.Key,
			ytmeta.WithBaseURL(cfg.YouTube.BaseURL),
			ytmeta.WithRateLimit(cfg.YouTube.RateQPS),
		)
		gate, err := preflight.NewGate(metaClient, cfg.Preflight)
		if err != nil {
			return eris.Wrap(err, "init preflight gate")
		}

		result, err := gate.Check(ctx, admitURL)
		if err != nil {
			return eris.Wrap(err, "preflight check")
		}

		zap.L().Info("admission check complete",
			zap.String("url", admitURL),
			zap.Bool("pass", result.Pass),
			zap.Float64("score", result.Score),
			zap.Bool("borderline", result.Borderline),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	admitCmd.Flags().StringVar(&admitURL, "url", "", "video URL (required)")
	_ = admitCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(admitCmd)
}
