package normalize

import (
	"regexp"
	"strings"

	"github.com/platewise/recipe-cli/internal/model"
)

// Unicode fraction glyphs normalized to their ASCII fraction text.
// Quantities stay textual throughout: "1/3" is never coerced to 0.333.
var unicodeFractions = map[rune]string{
	'½': "1/2", '⅓': "1/3", '⅔': "2/3",
	'¼': "1/4", '¾': "3/4",
	'⅕': "1/5", '⅖': "2/5", '⅗': "3/5", '⅘': "4/5",
	'⅙': "1/6", '⅚': "5/6",
	'⅛': "1/8", '⅜': "3/8", '⅝': "5/8", '⅞': "7/8",
}

// quantityRe matches a leading amount: mixed number ("1 1/2"), bare
// fraction ("1/3"), decimal ("1.5"), integer, or a range ("2-3").
var quantityRe = regexp.MustCompile(`^(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?\s*(?:-|–|to)\s*\d+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(.*)$`)

// Units recognized after a quantity. Stored lowercase; matching is
// case-insensitive and tolerates a trailing period.
var knownUnits = map[string]bool{
	"cup": true, "cups": true,
	"tablespoon": true, "tablespoons": true, "tbsp": true, "tbsps": true,
	"teaspoon": true, "teaspoons": true, "tsp": true, "tsps": true,
	"gram": true, "grams": true, "g": true, "kg": true, "kilogram": true, "kilograms": true,
	"ml": true, "milliliter": true, "milliliters": true, "l": true, "liter": true, "liters": true, "litre": true, "litres": true,
	"oz": true, "ounce": true, "ounces": true, "lb": true, "lbs": true, "pound": true, "pounds": true,
	"pinch": true, "pinches": true, "dash": true, "dashes": true,
	"clove": true, "cloves": true, "slice": true, "slices": true,
	"can": true, "cans": true, "stick": true, "sticks": true,
	"bunch": true, "bunches": true, "package": true, "packages": true, "pkg": true,
	"sprig": true, "sprigs": true, "handful": true, "piece": true, "pieces": true,
}

// NormalizeFractions rewrites unicode fraction glyphs as ASCII fractions,
// inserting a space after a preceding whole number ("1½" → "1 1/2").
func NormalizeFractions(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDigit := false
	for _, r := range s {
		if frac, ok := unicodeFractions[r]; ok {
			if prevDigit {
				b.WriteByte(' ')
			}
			b.WriteString(frac)
			prevDigit = false
			continue
		}
		b.WriteRune(r)
		prevDigit = r >= '0' && r <= '9'
	}
	return b.String()
}

// ParseIngredient splits a raw ingredient line into quantity, unit, and
// name. The quantity is kept as text so fractions survive verbatim.
func ParseIngredient(raw string) model.Ingredient {
	raw = strings.Join(strings.Fields(NormalizeFractions(raw)), " ")
	ing := model.Ingredient{Raw: raw}
	if raw == "" {
		return ing
	}

	m := quantityRe.FindStringSubmatch(raw)
	if m == nil {
		ing.Name = raw
		return ing
	}
	ing.Quantity = strings.Join(strings.Fields(m[1]), " ")
	rest := strings.TrimSpace(m[2])

	if fields := strings.Fields(rest); len(fields) > 0 {
		unit := strings.ToLower(strings.TrimSuffix(fields[0], "."))
		if knownUnits[unit] {
			ing.Unit = unit
			rest = strings.TrimSpace(rest[len(fields[0]):])
		}
	}

	rest = strings.TrimPrefix(rest, "of ")
	ing.Name = strings.TrimSpace(rest)
	return ing
}
