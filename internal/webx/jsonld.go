package webx

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/normalize"
)

// extractJSONLD parses <script type="application/ld+json"> blocks,
// flattening @graph arrays, and extracts the first Recipe-typed node.
func extractJSONLD(doc *goquery.Document) *model.WebExtractionResult {
	var nodes []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return
		}
		nodes = append(nodes, flattenGraph(parsed)...)
	})

	for _, node := range nodes {
		if !hasType(node, "Recipe") {
			continue
		}
		return recipeFromNode(node, nodes)
	}
	return nil
}

// flattenGraph expands top-level arrays and @graph wrappers into a flat
// node list.
func flattenGraph(parsed any) []map[string]any {
	var out []map[string]any
	switch v := parsed.(type) {
	case []any:
		for _, item := range v {
			out = append(out, flattenGraph(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				out = append(out, flattenGraph(item)...)
			}
			return out
		}
		out = append(out, v)
	}
	return out
}

// hasType matches @type values that may be a string or an array.
func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func recipeFromNode(node map[string]any, graph []map[string]any) *model.WebExtractionResult {
	result := &model.WebExtractionResult{
		Title:        stringOf(node["name"]),
		Author:       authorName(node["author"], graph),
		Servings:     yieldOf(node["recipeYield"]),
		PrepMinutes:  normalize.ISODurationMinutes(stringOf(node["prepTime"])),
		CookMinutes:  normalize.ISODurationMinutes(stringOf(node["cookTime"])),
		TotalMinutes: normalize.ISODurationMinutes(stringOf(node["totalTime"])),
	}

	if items, ok := node["recipeIngredient"].([]any); ok {
		for _, item := range items {
			if s := stringOf(item); s != "" {
				result.Ingredients = append(result.Ingredients, normalize.ParseIngredient(s))
			}
		}
	}

	appendInstructions(result, node["recipeInstructions"])

	result.Confidence = model.Confidence{Ingredients: 0.95, Steps: 0.95, Times: 0.9}
	if result.TotalMinutes == 0 && result.CookMinutes == 0 && result.PrepMinutes == 0 {
		result.Confidence.Times = 0
	}
	return result
}

// appendInstructions walks recipeInstructions, recursively expanding
// HowToSection/itemListElement nesting and keeping step images.
func appendInstructions(result *model.WebExtractionResult, instructions any) {
	switch v := instructions.(type) {
	case string:
		for _, line := range splitInstructionText(v) {
			addStep(result, line, "")
		}
	case []any:
		for _, item := range v {
			appendInstructions(result, item)
		}
	case map[string]any:
		if hasType(v, "HowToSection") {
			appendInstructions(result, v["itemListElement"])
			return
		}
		text := stringOf(v["text"])
		if text == "" {
			text = stringOf(v["name"])
		}
		addStep(result, text, imageURL(v["image"]))
		// Some generators nest steps under a plain list element.
		if text == "" {
			appendInstructions(result, v["itemListElement"])
		}
	}
}

func addStep(result *model.WebExtractionResult, text, image string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	result.Steps = append(result.Steps, model.Step{
		Order:    len(result.Steps) + 1,
		Text:     text,
		ImageURL: image,
	})
}

// splitInstructionText breaks a single instruction blob into sentences
// when a site dumps every step into one string.
func splitInstructionText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.Contains(text, "\n") {
		var out []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	return []string{text}
}

// authorName resolves the author field, which may be a string, an object,
// an array, or an @id back-reference into sibling graph nodes.
func authorName(author any, graph []map[string]any) string {
	switch v := author.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if name := authorName(item, graph); name != "" {
				return name
			}
		}
	case map[string]any:
		if name := stringOf(v["name"]); name != "" {
			return name
		}
		if id := stringOf(v["@id"]); id != "" {
			for _, node := range graph {
				if stringOf(node["@id"]) == id {
					return stringOf(node["name"])
				}
			}
		}
	}
	return ""
}

// imageURL handles image fields that are a URL string, an ImageObject,
// or an array of either.
func imageURL(image any) string {
	switch v := image.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if url := imageURL(item); url != "" {
				return url
			}
		}
	case map[string]any:
		if url := stringOf(v["url"]); url != "" {
			return url
		}
		return stringOf(v["contentUrl"])
	}
	return ""
}

func yieldOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return stringOf(t)
	case []any:
		if len(t) > 0 {
			return yieldOf(t[0])
		}
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int(t)) {
			return strconv.Itoa(int(t))
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
