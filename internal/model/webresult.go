package model

// WebLayer names one layer of the web extraction cascade.
type WebLayer string

const (
	LayerJSONLD      WebLayer = "structured-json-ld"
	LayerMicrodata   WebLayer = "structured-microdata"
	LayerReadability WebLayer = "readability"
	LayerHeuristic   WebLayer = "heuristic"
)

// WebDebug records which layers were attempted, for diagnostics.
type WebDebug struct {
	Attempts          []WebLayer `json:"attempts"`
	HasStructuredData bool       `json:"has_structured_data"`
	Rendered          bool       `json:"rendered"`
}

// WebExtractionResult is the output of the web cascade. One instance is
// produced per layer attempt; the pipeline keeps the first adequate one.
type WebExtractionResult struct {
	Layer        WebLayer     `json:"layer"`
	Title        string       `json:"title,omitempty"`
	Author       string       `json:"author,omitempty"`
	Servings     string       `json:"servings,omitempty"`
	PrepMinutes  int          `json:"prep_minutes,omitempty"`
	CookMinutes  int          `json:"cook_minutes,omitempty"`
	TotalMinutes int          `json:"total_minutes,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
	Steps        []Step       `json:"steps"`
	Confidence   Confidence   `json:"confidence"`
	Debug        WebDebug     `json:"debug"`
}

// Adequate reports whether a layer's output meets the adequacy threshold:
// at least 3 ingredients or at least 2 steps.
func (r *WebExtractionResult) Adequate() bool {
	return len(r.Ingredients) >= 3 || len(r.Steps) >= 2
}
