// Package model defines the canonical types shared across the extraction
// pipeline. All other packages depend on model; model depends on nothing.
package model

import "time"

// ExtractionMethod identifies which extractor produced a recipe.
type ExtractionMethod string

const (
	MethodVideoAI       ExtractionMethod = "video-ai"
	MethodDescriptionAI ExtractionMethod = "description-ai"
	MethodJSONLD        ExtractionMethod = "structured-json-ld"
	MethodMicrodata     ExtractionMethod = "structured-microdata"
	MethodReadability   ExtractionMethod = "readability"
	MethodHeuristic     ExtractionMethod = "heuristic"
)

// Recipe is the canonical recipe card handed to the storage collaborator.
type Recipe struct {
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Servings     string           `json:"servings,omitempty"`
	PrepMinutes  int              `json:"prep_minutes,omitempty"`
	CookMinutes  int              `json:"cook_minutes,omitempty"`
	TotalMinutes int              `json:"total_minutes,omitempty"`
	Ingredients  []Ingredient     `json:"ingredients"`
	Steps        []Step           `json:"steps"`
	Tools        []string         `json:"tools,omitempty"`
	Tips         []string         `json:"tips,omitempty"`
	Creator      string           `json:"creator,omitempty"`
	SourceURL    string           `json:"source_url"`
	Platform     Platform         `json:"platform"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	Method       ExtractionMethod `json:"method"`
	Confidence   Confidence       `json:"confidence"`
	ExtractedAt  time.Time        `json:"extracted_at"`
}

// Confidence carries per-facet extraction confidence in [0,1].
type Confidence struct {
	Ingredients float64 `json:"ingredients"`
	Steps       float64 `json:"steps"`
	Times       float64 `json:"times"`
}

// Ingredient is a normalized ingredient line. Quantity stays text so
// fractions like "1/3" survive verbatim — never coerced to decimal.
type Ingredient struct {
	Raw      string `json:"raw"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Name     string `json:"name,omitempty"`
	Span     *Span  `json:"span,omitempty"`
}

// Step is a single instruction, strictly ordered 1..n.
type Step struct {
	Order            int    `json:"order"`
	Text             string `json:"text"`
	TimestampSeconds int    `json:"timestamp_seconds,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	Span             *Span  `json:"span,omitempty"`
}

// Span is a provenance range into the source text justifying an extracted
// field, with a per-span confidence.
type Span struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}
