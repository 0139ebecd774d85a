package webx

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/internal/normalize"
)

// Lexical cues for the heuristic layer. Evaluation is strictly document
// order with no randomness, so repeated runs against the same markup are
// byte-identical.
var (
	measurementRe  = regexp.MustCompile(`(?i)\b(?:cups?|tbsps?|tablespoons?|tsps?|teaspoons?|grams?|kg|oz|ounces?|lbs?|pounds?|ml|liters?|litres?|pinch|cloves?|slices?|sticks?|cans?)\b`)
	quantityCueRe  = regexp.MustCompile(`^\s*(?:\d|½|⅓|⅔|¼|¾|⅛)`)
	cookingVerbRe  = regexp.MustCompile(`(?i)\b(?:preheat|heat|bake|cook|boil|simmer|fry|saute|sauté|roast|grill|whisk|stir|mix|combine|add|pour|chop|dice|slice|mince|season|drain|serve|garnish|knead|fold|melt|blend|toss|spread|cover|remove|transfer|place|bring|reduce|let|rest|chill|refrigerate)\b`)
	ingredientHint = regexp.MustCompile(`(?i)ingredient`)
	stepHint       = regexp.MustCompile(`(?i)instruction|direction|step|method`)
)

// Steps shorter than this without a cooking verb are fragments split off
// by incidental markup and get merged into the preceding step.
const stepFragmentLen = 50

// extractHeuristic scans candidate lists for ingredient- and
// instruction-like content using lexical cues.
func extractHeuristic(doc *goquery.Document) *model.WebExtractionResult {
	result := &model.WebExtractionResult{
		Title: strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	if result.Title == "" {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	ingList := bestList(doc, scoreIngredientList)
	if ingList != nil {
		source := pageText(doc)
		ingList.Find("li").Each(func(_ int, li *goquery.Selection) {
			text := collapseSpace(li.Text())
			if text == "" {
				return
			}
			ing := normalize.ParseIngredient(text)
			ing.Span = normalize.FindSpan(source, text, 0.7)
			result.Ingredients = append(result.Ingredients, ing)
		})
	}

	stepList := bestList(doc, scoreInstructionList)
	if stepList != nil && !sameSelection(ingList, stepList) {
		var texts []string
		var nodes []*goquery.Selection
		stepList.Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := collapseSpace(li.Text()); text != "" {
				texts = append(texts, text)
				nodes = append(nodes, li)
			}
		})
		texts, nodes = mergeFragments(texts, nodes)
		images := stepImages(stepList, nodes)
		for i, text := range texts {
			step := model.Step{Order: len(result.Steps) + 1, Text: text}
			if i < len(images) {
				step.ImageURL = images[i]
			}
			result.Steps = append(result.Steps, step)
		}
	}

	if len(result.Ingredients) == 0 && len(result.Steps) == 0 {
		return nil
	}

	// Confidence grows with evidence, capped well below the structured
	// layers.
	conf := func(n int) float64 {
		c := 0.3 + 0.05*float64(n)
		if c > 0.7 {
			c = 0.7
		}
		if n == 0 {
			c = 0
		}
		return c
	}
	result.Confidence = model.Confidence{
		Ingredients: conf(len(result.Ingredients)),
		Steps:       conf(len(result.Steps)),
	}
	return result
}

// bestList returns the highest-scoring ul/ol candidate, in document
// order for deterministic ties.
func bestList(doc *goquery.Document, score func(*goquery.Selection) float64) *goquery.Selection {
	var best *goquery.Selection
	bestScore := 0.0
	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		if s := score(list); s > bestScore {
			best = list
			bestScore = s
		}
	})
	return best
}

// scoreIngredientList scores by the fraction of items that read like
// measured ingredients, with a class-name hint bonus.
func scoreIngredientList(list *goquery.Selection) float64 {
	items := list.Find("li")
	n := items.Length()
	if n < 2 {
		return 0
	}

	matches := 0
	items.Each(func(_ int, li *goquery.Selection) {
		text := li.Text()
		if measurementRe.MatchString(text) || quantityCueRe.MatchString(text) {
			matches++
		}
	})

	score := float64(matches) / float64(n)
	if score < 0.4 {
		return 0
	}
	if hintMatches(list, ingredientHint) {
		score += 0.5
	}
	return score
}

// scoreInstructionList scores by cooking-verb density and average item
// length; instructions read as sentences, not measurements.
func scoreInstructionList(list *goquery.Selection) float64 {
	items := list.Find("li")
	n := items.Length()
	if n < 2 {
		return 0
	}

	verbs := 0
	totalLen := 0
	items.Each(func(_ int, li *goquery.Selection) {
		text := li.Text()
		totalLen += len(text)
		if cookingVerbRe.MatchString(text) {
			verbs++
		}
	})

	score := float64(verbs) / float64(n)
	if score < 0.5 {
		return 0
	}
	if totalLen/n > 40 {
		score += 0.3
	}
	if hintMatches(list, stepHint) {
		score += 0.5
	}
	return score
}

func hintMatches(list *goquery.Selection, re *regexp.Regexp) bool {
	class, _ := list.Attr("class")
	id, _ := list.Attr("id")
	if re.MatchString(class + " " + id) {
		return true
	}
	if parent := list.Parent(); parent.Length() > 0 {
		pc, _ := parent.Attr("class")
		pi, _ := parent.Attr("id")
		return re.MatchString(pc + " " + pi)
	}
	return false
}

// mergeFragments folds short verb-less items into their predecessor so
// multi-clause instructions split by incidental markup stay one step.
func mergeFragments(texts []string, nodes []*goquery.Selection) ([]string, []*goquery.Selection) {
	var outTexts []string
	var outNodes []*goquery.Selection
	for i, text := range texts {
		if len(outTexts) > 0 && len(text) < stepFragmentLen && !cookingVerbRe.MatchString(text) {
			outTexts[len(outTexts)-1] += " " + text
			continue
		}
		outTexts = append(outTexts, text)
		outNodes = append(outNodes, nodes[i])
	}
	return outTexts, outNodes
}

// stepImages associates images with steps by DOM proximity: same element,
// then parent, then adjacent siblings. When the page carries a separate
// image gallery with matching count, images distribute proportionally.
func stepImages(list *goquery.Selection, nodes []*goquery.Selection) []string {
	images := make([]string, len(nodes))
	found := 0
	for i, li := range nodes {
		if src := nearbyImage(li); src != "" {
			images[i] = src
			found++
		}
	}
	if found > 0 {
		return images
	}

	// Proportional fallback: images in the list's parent container
	// spread across the steps.
	var pool []string
	list.Parent().Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			pool = append(pool, src)
		}
	})
	if len(pool) == 0 || len(nodes) == 0 {
		return images
	}
	for i := range nodes {
		images[i] = pool[i*len(pool)/len(nodes)]
	}
	return images
}

func nearbyImage(li *goquery.Selection) string {
	if src, ok := li.Find("img").First().Attr("src"); ok {
		return src
	}
	if src, ok := li.Next().Find("img").First().Attr("src"); ok {
		return src
	}
	if src, ok := li.Prev().Find("img").First().Attr("src"); ok {
		return src
	}
	return ""
}

func sameSelection(a, b *goquery.Selection) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Length() == 0 || b.Length() == 0 {
		return false
	}
	return a.Nodes[0] == b.Nodes[0]
}

func pageText(doc *goquery.Document) string {
	return doc.Find("body").Text()
}
