package webx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/normalize"
)

// extractMicrodata reads schema.org microdata: an itemscope whose
// itemtype contains "Recipe", with itemprop fields analogous to the
// JSON-LD shape.
func extractMicrodata(doc *goquery.Document) *model.WebExtractionResult {
	scope := doc.Find(`[itemtype*="Recipe"]`).First()
	if scope.Length() == 0 {
		return nil
	}

	result := &model.WebExtractionResult{
		Title:        strings.TrimSpace(scope.Find(`[itemprop="name"]`).First().Text()),
		Author:       microdataAuthor(scope),
		Servings:     strings.TrimSpace(scope.Find(`[itemprop="recipeYield"]`).First().Text()),
		PrepMinutes:  microdataMinutes(scope, "prepTime"),
		CookMinutes:  microdataMinutes(scope, "cookTime"),
		TotalMinutes: microdataMinutes(scope, "totalTime"),
	}

	scope.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`).Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			result.Ingredients = append(result.Ingredients, normalize.ParseIngredient(text))
		}
	})

	scope.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, s *goquery.Selection) {
		// Either one element per step, or a single container with
		// list items inside.
		items := s.Find("li")
		if items.Length() == 0 {
			addStep(result, collapseSpace(s.Text()), microdataStepImage(s))
			return
		}
		items.Each(func(_ int, li *goquery.Selection) {
			addStep(result, collapseSpace(li.Text()), microdataStepImage(li))
		})
	})

	if result.Title == "" && len(result.Ingredients) == 0 && len(result.Steps) == 0 {
		return nil
	}

	result.Confidence = model.Confidence{Ingredients: 0.9, Steps: 0.9, Times: 0.85}
	if result.TotalMinutes == 0 && result.CookMinutes == 0 && result.PrepMinutes == 0 {
		result.Confidence.Times = 0
	}
	return result
}

// microdataMinutes prefers the machine-readable ISO duration in content
// or datetime attributes over display text.
func microdataMinutes(scope *goquery.Selection, prop string) int {
	sel := scope.Find(`[itemprop="` + prop + `"]`).First()
	if sel.Length() == 0 {
		return 0
	}
	if content, ok := sel.Attr("content"); ok {
		return normalize.ISODurationMinutes(content)
	}
	if dt, ok := sel.Attr("datetime"); ok {
		return normalize.ISODurationMinutes(dt)
	}
	return normalize.ISODurationMinutes(strings.TrimSpace(sel.Text()))
}

func microdataAuthor(scope *goquery.Selection) string {
	author := scope.Find(`[itemprop="author"]`).First()
	if author.Length() == 0 {
		return ""
	}
	if name := collapseSpace(author.Find(`[itemprop="name"]`).First().Text()); name != "" {
		return name
	}
	if content, ok := author.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return collapseSpace(author.Text())
}

func microdataStepImage(s *goquery.Selection) string {
	if src, ok := s.Find("img").First().Attr("src"); ok {
		return src
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
