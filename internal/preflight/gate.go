package preflight

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/config"
	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/platform"
	"github.com/platewise/recipe-cli/pkg/ytmeta"
)

// tinyDescriptionLimit bounds how much description text the stage-2
// classifier reads.
const tinyDescriptionLimit = 800

// Gate is the admission gate. One metadata call at most; no page
// fetching or parsing happens here.
type Gate struct {
	meta     ytmeta.Client
	patterns *Patterns
	cfg      config.PreflightConfig
}

// NewGate creates a Gate. When cfg.PatternsFile is set the built-in
// signal patterns are overridden from that file.
func NewGate(meta ytmeta.Client, cfg config.PreflightConfig) (*Gate, error) {
	patterns := DefaultPatterns()
	if cfg.PatternsFile != "" {
		var err error
		patterns, err = LoadPatterns(cfg.PatternsFile)
		if err != nil {
			return nil, eris.Wrap(err, "preflight: load patterns")
		}
	}
	return &Gate{meta: meta, patterns: patterns, cfg: cfg}, nil
}

// Check produces the admission verdict for a URL. Platforms without a
// queryable metadata API get the reduced URL-only check.
func (g *Gate) Check(ctx context.Context, rawURL string) (*model.PreflightResult, error) {
	pl := platform.Classify(rawURL)
	if !pl.HasMetadataAPI() {
		return g.checkURLOnly(rawURL, pl), nil
	}

	videoID := platform.VideoID(rawURL)
	if videoID == "" {
		return nil, eris.Errorf("preflight: no video id in %s", rawURL)
	}

	meta, err := g.meta.GetVideoMetadata(ctx, videoID)
	if err != nil {
		return nil, eris.Wrap(err, "preflight: fetch metadata")
	}

	result := g.scoreMetadata(meta)

	zap.L().Info("preflight verdict",
		zap.String("platform", string(pl)),
		zap.String("video_id", videoID),
		zap.Bool("pass", result.Pass),
		zap.Bool("borderline", result.Borderline),
		zap.Float64("score", result.Score),
	)
	return result, nil
}

// scoreMetadata runs the stage-1 weighted scoring and, for borderline
// outcomes, the stage-2 tiny classifier.
func (g *Gate) scoreMetadata(meta *ytmeta.Metadata) *model.PreflightResult {
	result := &model.PreflightResult{}

	// Hard gate on duration. Nothing can override it.
	d := meta.DurationSeconds
	durationOK := d >= g.cfg.MinDurationSecs && d <= g.cfg.MaxDurationSecs
	result.Checks.Duration = model.CheckResult{
		Pass:     durationOK,
		Evidence: []string{fmt.Sprintf("%ds", d)},
	}
	if !durationOK {
		result.Reason = fmt.Sprintf("duration %ds outside [%ds, %ds]", d, g.cfg.MinDurationSecs, g.cfg.MaxDurationSecs)
		return result
	}

	text := Fold(meta.Title + " " + meta.Description)

	if s := categoryScore(meta.CategoryID); s != 0 {
		result.Checks.Category = model.CheckResult{Pass: s > 0, Score: s, Evidence: []string{meta.CategoryID}}
	}
	if meta.CaptionFlag {
		result.Checks.Caption = model.CheckResult{Pass: true, Score: 1}
	}
	for _, topic := range meta.Topics {
		if isFoodTopic(topic) {
			result.Checks.Topic.Pass = true
			result.Checks.Topic.Score += 2
			result.Checks.Topic.Evidence = append(result.Checks.Topic.Evidence, topic)
		}
	}

	patternScore, patternHits, patternEvidence := g.patterns.ScoreRecipe(text)
	result.Checks.Patterns = model.CheckResult{Pass: patternHits > 0, Score: patternScore, Evidence: patternEvidence}

	antiScore, antiEvidence := g.patterns.ScoreAnti(text)
	result.Checks.AntiSignals = model.CheckResult{Pass: antiScore >= 0, Score: antiScore, Evidence: antiEvidence}

	total := result.Checks.Category.Score + result.Checks.Caption.Score +
		result.Checks.Topic.Score + patternScore + antiScore
	result.Score = total

	// Require either explicit recipe vocabulary, or no negative evidence
	// plus a minimally positive overall score.
	result.Pass = patternHits > 0 || (antiScore >= 0 && total >= 1)
	result.Borderline = !result.Pass && total >= 0

	if result.Borderline {
		desc := meta.Description
		if len(desc) > tinyDescriptionLimit {
			desc = desc[:tinyDescriptionLimit]
		}
		verdict := g.classifyTiny(meta.Title + " " + desc)
		result.TinyVerdict = &verdict
		result.Pass = verdict.IsRecipe && verdict.Confidence >= 0.7
		if result.Pass {
			result.Score++
		} else {
			result.Score--
		}
	}

	if !result.Pass {
		result.Reason = "content does not look like a recipe"
	}
	result.CostEstimate = g.estimateCost(d, result.Score)
	return result
}

// classifyTiny is the stage-2 rule-based classifier: enough distinct
// recipe terms and no anti-terms means recipe.
func (g *Gate) classifyTiny(text string) model.TinyVerdict {
	folded := Fold(text)
	_, hits, _ := g.patterns.ScoreRecipe(folded)
	antiScore, _ := g.patterns.ScoreAnti(folded)

	// Recipe terms beyond what the regexes catch: common short words a
	// terse caption might be reduced to.
	for _, term := range []string{"cook", "food", "eat", "kitchen", "chef", "meal", "tasty", "delicious"} {
		if strings.Contains(folded, term) {
			hits++
		}
	}

	if hits >= 3 && antiScore == 0 {
		conf := math.Min(0.95, 0.55+0.08*float64(hits))
		return model.TinyVerdict{IsRecipe: true, Confidence: conf}
	}
	return model.TinyVerdict{IsRecipe: false, Confidence: 0.6}
}

// checkURLOnly is the reduced check for platforms without metadata:
// lexical analysis of the URL text with a relaxed threshold, since false
// negatives are costlier than false positives there.
func (g *Gate) checkURLOnly(rawURL string, pl model.Platform) *model.PreflightResult {
	text := Fold(strings.NewReplacer("/", " ", "-", " ", "_", " ", ".", " ", "@", " ").Replace(rawURL))

	var score float64
	var evidence []string
	for _, term := range []string{"recipe", "cook", "cooking", "food", "kitchen", "chef", "baking", "bake", "meal", "eats"} {
		if strings.Contains(text, term) {
			score++
			evidence = append(evidence, term)
		}
	}

	antiScore, antiEvidence := g.patterns.ScoreAnti(text)

	result := &model.PreflightResult{
		Score:         score + antiScore,
		AllowOverride: true,
		Checks: model.PreflightChecks{
			Patterns:    model.CheckResult{Pass: score > 0, Score: score, Evidence: evidence},
			AntiSignals: model.CheckResult{Pass: antiScore >= 0, Score: antiScore, Evidence: antiEvidence},
		},
	}
	result.Pass = result.Score >= 0
	if !result.Pass {
		result.Reason = "URL text suggests non-recipe content"
	}
	result.CostEstimate = g.estimateCost(0, result.Score)

	zap.L().Info("preflight verdict (url-only)",
		zap.String("platform", string(pl)),
		zap.Bool("pass", result.Pass),
		zap.Float64("score", result.Score),
	)
	return result
}

// estimateCost buckets the expected extraction cost by duration and
// downgrades one tier when the content evidence is thin.
func (g *Gate) estimateCost(durationSecs int, totalScore float64) *model.CostEstimate {
	var tier model.CostTier
	switch {
	case durationSecs > 600:
		tier = model.CostHigh
	case durationSecs >= 300:
		tier = model.CostModerate
	default:
		tier = model.CostLow
	}

	if totalScore < 2 {
		switch tier {
		case model.CostHigh:
			tier = model.CostModerate
		case model.CostModerate:
			tier = model.CostLow
		}
	}

	est := &model.CostEstimate{
		Tier:             tier,
		EstimatedSeconds: PollBudgetSeconds(durationSecs),
	}
	if tier == model.CostHigh {
		est.Warning = "long video: extraction may take several minutes"
	}
	return est
}

// PollBudgetSeconds is the total polling wait budget for a video of the
// given duration; zero or unknown durations use the 180s default.
func PollBudgetSeconds(durationSecs int) int {
	if durationSecs <= 0 {
		durationSecs = 180
	}
	budget := int(math.Round(float64(durationSecs) * 1.2))
	if budget < 120 {
		budget = 120
	}
	if budget > 240 {
		budget = 240
	}
	return budget
}

// Positive and negative YouTube category signals. Matching accepts both
// the numeric category id and the display name.
var (
	positiveCategories = map[string]bool{"26": true, "howto & style": true, "how-to & style": true, "food": true}
	negativeCategories = map[string]bool{"17": true, "sports": true, "20": true, "gaming": true, "10": true, "music": true}
)

func categoryScore(category string) float64 {
	key := strings.ToLower(strings.TrimSpace(category))
	switch {
	case positiveCategories[key]:
		return 1
	case negativeCategories[key]:
		return -1
	default:
		return 0
	}
}

func isFoodTopic(topic string) bool {
	t := strings.ToLower(topic)
	return strings.Contains(t, "food") || strings.Contains(t, "cooking") || strings.Contains(t, "cuisine") || strings.Contains(t, "recipe")
}
