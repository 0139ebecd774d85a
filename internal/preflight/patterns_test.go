package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "saute the onions", Fold("Sauté the Onions"))
	assert.Equal(t, "creme brulee", Fold("Crème Brûlée"))
	assert.Equal(t, "plain text", Fold("plain text"))
}

func TestScoreRecipeTiers(t *testing.T) {
	p := DefaultPatterns()

	// Strong quantity pattern, weight 2.
	score, hits, evidence := p.ScoreRecipe("2 cups flour")
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 1, hits)
	assert.NotEmpty(t, evidence)

	// Medium prep verb, weight 1.
	score, hits, _ = p.ScoreRecipe("chop everything")
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 1, hits)

	// Weak cuisine word, weight 0.5.
	score, hits, _ = p.ScoreRecipe("my favorite italian place")
	assert.Equal(t, 0.5, score)
	assert.Equal(t, 1, hits)

	score, hits, _ = p.ScoreRecipe("nothing relevant here")
	assert.Zero(t, score)
	assert.Zero(t, hits)
}

func TestScoreRecipeCapped(t *testing.T) {
	p := DefaultPatterns()
	// A description hitting every tier cannot exceed the cap.
	text := "recipe ingredients instructions 2 cups flour 350 f bake for 20 minutes " +
		"whisk knead oven skillet step 1 chop dice chicken garlic serves 4 easy " +
		"crispy creamy dinner dessert italian thai"
	score, hits, _ := p.ScoreRecipe(text)
	assert.Equal(t, float64(patternScoreCap), score)
	assert.Greater(t, hits, 5)
}

func TestScoreAnti(t *testing.T) {
	p := DefaultPatterns()

	score, evidence := p.ScoreAnti("my travel vlog day 3")
	assert.Equal(t, -3.0, score)
	assert.NotEmpty(t, evidence)

	score, _ = p.ScoreAnti("reaction to the new trailer")
	assert.Equal(t, -4.0, score) // two medium hits

	score, _ = p.ScoreAnti("use my promo code")
	assert.Equal(t, -1.0, score)

	score, evidence = p.ScoreAnti("how to braise short ribs")
	assert.Zero(t, score)
	assert.Empty(t, evidence)
}

func TestLoadPatternsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
recipe:
  strong:
    - '\bsourdough\b'
anti:
  weak:
    - '\bmerch\b'
`), 0o644))

	p, err := LoadPatterns(path)
	require.NoError(t, err)

	// Overridden strong tier replaces the default.
	score, _, _ := p.ScoreRecipe("sourdough starter")
	assert.Equal(t, 2.0, score)
	score, _, _ = p.ScoreRecipe("2 cups flour")
	assert.Zero(t, score)

	// Unspecified tiers keep their defaults.
	score, _, _ = p.ScoreRecipe("chop the onions")
	assert.Equal(t, 1.0, score)
	antiScore, _ := p.ScoreAnti("buy my merch")
	assert.Equal(t, -1.0, antiScore)
}

func TestLoadPatternsBadRegex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recipe:\n  strong:\n    - '[unclosed'\n"), 0o644))

	_, err := LoadPatterns(path)
	assert.Error(t, err)
}
