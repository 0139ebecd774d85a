package webx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platewise/recipe-cli/internal/model"
)

// Elements that never carry recipe content and mostly add link noise.
var boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe"

// Containers probed for the main article body, most specific first.
var contentSelectors = []string{
	"article",
	"main",
	`[class*="recipe"]`,
	`[class*="post-content"]`,
	`[class*="entry-content"]`,
	`[class*="article-body"]`,
	`[id*="content"]`,
}

// extractReadability isolates the main article body, drops boilerplate,
// and re-runs the structured and heuristic extraction against the
// cleaned subtree. Useful when a cluttered page buries its recipe list
// among navigation and comment markup.
func extractReadability(doc *goquery.Document) *model.WebExtractionResult {
	body := mainContent(doc)
	if body == nil {
		return nil
	}

	html, err := goquery.OuterHtml(body)
	if err != nil || strings.TrimSpace(html) == "" {
		return nil
	}
	cleaned, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	cleaned.Find(boilerplateSelector).Remove()

	result := extractMicrodata(cleaned)
	if result == nil {
		result = extractHeuristic(cleaned)
	}
	if result == nil {
		return nil
	}
	if result.Title == "" {
		result.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// The cleaned subtree trades recall for precision; confidence floors
	// below the structured layers regardless of which extractor hit.
	clamp := func(c float64) float64 {
		if c > 0.6 {
			return 0.6
		}
		if c > 0 && c < 0.5 {
			return 0.5
		}
		return c
	}
	result.Confidence.Ingredients = clamp(result.Confidence.Ingredients)
	result.Confidence.Steps = clamp(result.Confidence.Steps)
	result.Confidence.Times = clamp(result.Confidence.Times)
	return result
}

// mainContent picks the densest content container: the first selector
// whose text is a meaningful share of the page, falling back to the
// longest-text candidate.
func mainContent(doc *goquery.Document) *goquery.Selection {
	pageLen := len(strings.TrimSpace(doc.Find("body").Text()))
	if pageLen == 0 {
		return nil
	}

	var best *goquery.Selection
	bestLen := 0
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		textLen := len(strings.TrimSpace(node.Text()))
		if textLen*4 >= pageLen {
			return node
		}
		if textLen > bestLen {
			best = node
			bestLen = textLen
		}
	}
	return best
}
