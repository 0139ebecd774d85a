// Package normalize converts raw extractor output (AI JSON payloads,
// scraped ingredient lines) into the canonical recipe model.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/platewise/recipe-cli/internal/model"
)

// ErrNoTitle marks a payload that parses as JSON but lacks the one field
// every recipe must have. Callers treat it as an invalid-structure
// failure, distinct from unparseable output.
var ErrNoTitle = eris.New("normalize: recipe payload has no title")

// CleanJSON strips markdown fences and extracts the JSON object.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// aiPayload is the JSON shape the extraction prompts demand. Fields are
// loosely typed because models drift between strings and numbers.
type aiPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Servings    any      `json:"servings"`
	PrepTime    any      `json:"prep_time"`
	CookTime    any      `json:"cook_time"`
	TotalTime   any      `json:"total_time"`
	Ingredients []any    `json:"ingredients"`
	Steps       []any    `json:"steps"`
	Tools       []string `json:"tools"`
	Tips        []string `json:"tips"`
	Creator     string   `json:"creator"`
}

// ParseAIRecipe cleans and decodes an AI extraction response into a
// Recipe. Returns ErrNoTitle when the payload decodes but is
// semantically incomplete.
func ParseAIRecipe(raw string, method model.ExtractionMethod) (*model.Recipe, error) {
	cleaned := CleanJSON(raw)

	var payload aiPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, eris.Wrap(err, "normalize: decode recipe payload")
	}
	if strings.TrimSpace(payload.Title) == "" {
		return nil, ErrNoTitle
	}

	recipe := &model.Recipe{
		Title:        strings.TrimSpace(payload.Title),
		Description:  strings.TrimSpace(payload.Description),
		Servings:     anyToString(payload.Servings),
		PrepMinutes:  anyToMinutes(payload.PrepTime),
		CookMinutes:  anyToMinutes(payload.CookTime),
		TotalMinutes: anyToMinutes(payload.TotalTime),
		Tools:        payload.Tools,
		Tips:         payload.Tips,
		Creator:      strings.TrimSpace(payload.Creator),
		Method:       method,
		ExtractedAt:  time.Now().UTC(),
	}

	for _, item := range payload.Ingredients {
		switch v := item.(type) {
		case string:
			if ing := ParseIngredient(v); ing.Raw != "" {
				recipe.Ingredients = append(recipe.Ingredients, ing)
			}
		case map[string]any:
			ing := model.Ingredient{
				Quantity: anyToString(v["quantity"]),
				Unit:     anyToString(v["unit"]),
				Name:     anyToString(v["name"]),
			}
			ing.Raw = strings.TrimSpace(strings.Join([]string{ing.Quantity, ing.Unit, ing.Name}, " "))
			ing.Raw = strings.Join(strings.Fields(ing.Raw), " ")
			if ing.Raw != "" {
				recipe.Ingredients = append(recipe.Ingredients, ing)
			}
		}
	}

	for _, item := range payload.Steps {
		var step model.Step
		switch v := item.(type) {
		case string:
			step.Text = strings.TrimSpace(v)
		case map[string]any:
			step.Text = strings.TrimSpace(anyToString(firstOf(v, "text", "instruction", "step")))
			step.TimestampSeconds = anyToSeconds(v["timestamp"])
		}
		if step.Text == "" {
			continue
		}
		step.Order = len(recipe.Steps) + 1
		recipe.Steps = append(recipe.Steps, step)
	}

	return recipe, nil
}

// FindSpan locates needle inside haystack and returns a provenance span,
// or nil when the text does not appear verbatim.
func FindSpan(haystack, needle string, confidence float64) *model.Span {
	if needle == "" {
		return nil
	}
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return nil
	}
	return &model.Span{Start: idx, End: idx + len(needle), Confidence: confidence}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int(t)) {
			return strconv.Itoa(int(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// anyToMinutes accepts "10", "10 minutes", "1 hour 20 min", or a bare
// number of minutes.
func anyToMinutes(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		return parseDurationText(t)
	default:
		return 0
	}
}

func anyToSeconds(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		// "1:23" or plain seconds.
		if strings.Contains(t, ":") {
			parts := strings.Split(t, ":")
			total := 0
			for _, p := range parts {
				n, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return 0
				}
				total = total*60 + n
			}
			return total
		}
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	default:
		return 0
	}
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ISODurationMinutes parses an ISO-8601 duration as used in schema.org
// recipe markup ("PT1H20M") into whole minutes. Returns 0 for anything
// unparseable.
func ISODurationMinutes(s string) int {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	days, _ := strconv.Atoi(zeroEmpty(m[1]))
	hours, _ := strconv.Atoi(zeroEmpty(m[2]))
	minutes, _ := strconv.Atoi(zeroEmpty(m[3]))
	seconds, _ := strconv.ParseFloat(zeroEmpty(m[4]), 64)
	return days*24*60 + hours*60 + minutes + int(seconds)/60
}

func zeroEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func parseDurationText(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}

	total := 0
	fields := strings.Fields(s)
	for i := 0; i < len(fields)-1; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		unit := strings.TrimSuffix(fields[i+1], "s")
		switch {
		case strings.HasPrefix(unit, "hour") || unit == "hr" || unit == "h":
			total += n * 60
		case strings.HasPrefix(unit, "min") || unit == "m":
			total += n
		}
	}
	return total
}
