// Package describe extracts a recipe from video title and description
// text alone, used as the fallback when video understanding fails but the
// creator pasted the recipe into the description.
package describe

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/normalize"
	"github.com/platewise/recipe-cli/pkg/llm"
)

const systemPrompt = `You extract recipes from video titles and descriptions.
Respond with strict JSON only, no prose, using this shape:
{"title": "", "servings": "", "prep_time": "", "cook_time": "", "total_time": "",
"ingredients": ["..."], "steps": ["..."], "tools": ["..."], "tips": ["..."], "creator": ""}
Keep ingredient quantities exactly as written, including fractions.
If the text contains no recipe, respond with {"title": ""}.`

// Description text longer than this is truncated before prompting; the
// recipe, when present, sits near the top.
const maxDescriptionChars = 6000

// ErrNoRecipe indicates the model found no recipe in the text.
var ErrNoRecipe = eris.New("describe: no recipe in description text")

// Extractor runs the description-text extraction.
type Extractor struct {
	client llm.Client
	model  string
}

// NewExtractor creates an Extractor using the given model.
func NewExtractor(client llm.Client, modelID string) *Extractor {
	return &Extractor{client: client, model: modelID}
}

// Extract asks the model to pull a recipe out of title + description.
func (e *Extractor) Extract(ctx context.Context, title, description string) (*model.Recipe, error) {
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}

	text := strings.TrimSpace(title + "\n\n" + description)
	if text == "" {
		return nil, ErrNoRecipe
	}

	resp, err := e.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     e.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "describe: create message")
	}
	resp.Usage.LogCost(e.model, "describe")

	recipe, err := normalize.ParseAIRecipe(resp.Text(), model.MethodDescriptionAI)
	if err != nil {
		if eris.Is(err, normalize.ErrNoTitle) {
			return nil, ErrNoRecipe
		}
		return nil, eris.Wrap(err, "describe: parse response")
	}

	// Description text rarely encodes instructions even when it lists
	// ingredients; keep the result but mark the uncertainty.
	recipe.Confidence = model.Confidence{
		Ingredients: 0.75,
		Steps:       0.6,
		Times:       0.6,
	}

	zap.L().Info("description extraction complete",
		zap.String("title", recipe.Title),
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
	)
	return recipe, nil
}
