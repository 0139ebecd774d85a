// Package preflight implements the admission gate: a cheap pre-check
// deciding whether a URL is worth the cost of deep extraction.
package preflight

import (
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// PatternSet is one three-tier group of regex patterns.
type PatternSet struct {
	Strong []string `yaml:"strong"`
	Medium []string `yaml:"medium"`
	Weak   []string `yaml:"weak"`
}

// PatternFile is the on-disk override format for signal patterns.
type PatternFile struct {
	Recipe PatternSet `yaml:"recipe"`
	Anti   PatternSet `yaml:"anti"`
}

// tier pairs compiled patterns with their score weight.
type tier struct {
	patterns []*regexp.Regexp
	weight   float64
}

// Patterns holds the compiled recipe and anti-signal tiers.
type Patterns struct {
	recipe []tier
	anti   []tier
}

// Accumulated recipe pattern score is capped so a keyword-stuffed
// description cannot overwhelm the anti-signals.
const patternScoreCap = 10

// Default recipe signal patterns. Matching happens against accent-folded
// lowercase text, so the patterns are plain ASCII.
var defaultRecipePatterns = PatternSet{
	Strong: []string{
		`\b\d+(?:[./]\d+)?\s*(?:cups?|tbsps?|tablespoons?|tsps?|teaspoons?|grams?|kgs?|oz|ounces?|lbs?|pounds?|ml|liters?|litres?)\b`,
		`\b\d{2,3}\s*(?:°|degrees?\s*)?[cf]\b`,
		`\b(?:bake|cook|simmer|roast|fry|grill|boil)\s+(?:\w+\s+)?(?:for\s+)?\d+\s*(?:minutes?|mins?|hours?|hrs?)\b`,
		`\b(?:ingredients?|instructions?|directions|recipe|method)\b`,
		`\b(?:saute|simmer|whisk|knead|marinate|caramelize|braise|blanch|deglaze|proof|fold in)\b`,
		`\b(?:oven|skillet|saucepan|dutch oven|baking sheet|mixing bowl|food processor|blender|air fryer|instant pot)\b`,
	},
	Medium: []string{
		`\bstep\s*\d+\b`,
		`\b(?:chop|dice|mince|slice|stir|mix|combine|preheat|season|drain|garnish|peel|grate)\b`,
		`\b(?:chicken|beef|pork|tofu|pasta|noodles|rice|salmon|shrimp|veggies|vegetables?|cheese|butter|garlic|onion|flour|sugar|dough)\b`,
		`\b(?:serves?|servings?|portions?|yields?)\s*\d+\b`,
		`\b(?:easy|beginner|quick|simple|homemade|one[ -]pot|30[ -]minute)\b`,
	},
	Weak: []string{
		`\b(?:crispy|creamy|savory|tangy|spicy|juicy|fluffy|tender|smoky|zesty)\b`,
		`\b(?:breakfast|lunch|dinner|brunch|dessert|snack|appetizer|side dish)\b`,
		`\b(?:italian|mexican|thai|indian|chinese|japanese|korean|mediterranean|french|cajun)\b`,
	},
}

// Default anti-signal patterns. Strong tiers are hard evidence the video
// is entertainment rather than cooking content.
var defaultAntiPatterns = PatternSet{
	Strong: []string{
		`\b(?:vlog|vlogging|day in (?:the|my) life)\b`,
		`\b(?:gaming|gameplay|playthrough|speedrun|fortnite|minecraft)\b`,
		`\b(?:official (?:music )?video|lyrics?|album|choreography|dance challenge)\b`,
		`\b(?:makeup|skincare|grwm|get ready with me)\b`,
		`\b(?:workout|gym|leg day|fitness challenge)\b`,
		`\b(?:travel vlog|tour guide|flight review)\b`,
	},
	Medium: []string{
		`\b(?:reaction|react(?:s|ing) to|prank|challenge video)\b`,
		`\b(?:podcast|interview|q\s*&\s*a|episode \d+)\b`,
		`\b(?:highlights|trailer|teaser|shorts compilation)\b`,
	},
	Weak: []string{
		`\b(?:giveaway|sponsored|promo code|discount code)\b`,
		`\b(?:link in bio|subscribe|smash that like)\b`,
	},
}

// DefaultPatterns compiles the built-in pattern tiers.
func DefaultPatterns() *Patterns {
	p, err := compile(PatternFile{Recipe: defaultRecipePatterns, Anti: defaultAntiPatterns})
	if err != nil {
		// Built-in patterns are compile-time constants; a failure here
		// is a programming error.
		panic(err)
	}
	return p
}

// LoadPatterns reads a YAML pattern file. Tiers left empty in the file
// fall back to the built-in defaults.
func LoadPatterns(path string) (*Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "preflight: read patterns file %s", path)
	}

	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "preflight: parse patterns file %s", path)
	}

	merge := func(override, def []string) []string {
		if len(override) > 0 {
			return override
		}
		return def
	}
	file.Recipe.Strong = merge(file.Recipe.Strong, defaultRecipePatterns.Strong)
	file.Recipe.Medium = merge(file.Recipe.Medium, defaultRecipePatterns.Medium)
	file.Recipe.Weak = merge(file.Recipe.Weak, defaultRecipePatterns.Weak)
	file.Anti.Strong = merge(file.Anti.Strong, defaultAntiPatterns.Strong)
	file.Anti.Medium = merge(file.Anti.Medium, defaultAntiPatterns.Medium)
	file.Anti.Weak = merge(file.Anti.Weak, defaultAntiPatterns.Weak)

	return compile(file)
}

func compile(file PatternFile) (*Patterns, error) {
	compileTier := func(exprs []string, weight float64) (tier, error) {
		t := tier{weight: weight}
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return t, eris.Wrapf(err, "preflight: compile pattern %q", expr)
			}
			t.patterns = append(t.patterns, re)
		}
		return t, nil
	}

	var p Patterns
	for _, spec := range []struct {
		exprs  []string
		weight float64
		anti   bool
	}{
		{file.Recipe.Strong, 2, false},
		{file.Recipe.Medium, 1, false},
		{file.Recipe.Weak, 0.5, false},
		{file.Anti.Strong, -3, true},
		{file.Anti.Medium, -2, true},
		{file.Anti.Weak, -1, true},
	} {
		t, err := compileTier(spec.exprs, spec.weight)
		if err != nil {
			return nil, err
		}
		if spec.anti {
			p.anti = append(p.anti, t)
		} else {
			p.recipe = append(p.recipe, t)
		}
	}
	return &p, nil
}

// ScoreRecipe matches the recipe tiers against folded text, returning the
// capped weighted score and the distinct pattern hit count.
func (p *Patterns) ScoreRecipe(text string) (score float64, hits int, evidence []string) {
	for _, t := range p.recipe {
		for _, re := range t.patterns {
			if m := re.FindString(text); m != "" {
				score += t.weight
				hits++
				evidence = append(evidence, m)
			}
		}
	}
	if score > patternScoreCap {
		score = patternScoreCap
	}
	return score, hits, evidence
}

// ScoreAnti matches the anti-signal tiers, returning the (non-positive)
// weighted score. The negative side is deliberately unbounded.
func (p *Patterns) ScoreAnti(text string) (score float64, evidence []string) {
	for _, t := range p.anti {
		for _, re := range t.patterns {
			if m := re.FindString(text); m != "" {
				score += t.weight
				evidence = append(evidence, m)
			}
		}
	}
	return score, evidence
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases text and strips diacritics so "Sauté" matches the
// ASCII "saute" patterns.
func Fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}
