package video

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// extractionPrompt is the fixed structured-extraction request sent to the
// video-understanding service.
const extractionPrompt = `Watch the video and extract the recipe it demonstrates.
Respond with strict JSON only, no prose, using this shape:
{"title": "", "servings": "", "prep_time": "", "cook_time": "", "total_time": "",
"ingredients": ["..."], "steps": ["..."], "tools": ["..."], "tips": ["..."], "creator": ""}
Quantities stay exactly as spoken or shown, including fractions.
If the video contains no recipe, respond with {"title": ""}.`

// failureClass buckets a chat failure for the retry policy. Each class
// carries its own backoff because the upstream service recovers on
// different timescales.
type failureClass int

const (
	classFatal failureClass = iota
	classTransient
	classNoVideos         // indexing lag, needs longer backoff
	classInvalidStructure // parsed but semantically incomplete
)

// queryError is a classified chat failure.
type queryError struct {
	class failureClass
	msg   string
}

func (e *queryError) Error() string { return "video: query failed: " + e.msg }

func classOf(err error) failureClass {
	var qe *queryError
	if eris.As(err, &qe) {
		return qe.class
	}
	return classFatal
}

// Message substrings the service uses for conditions that resolve on
// their own. "no videos found" and "processing" are indexing lag;
// "abnormal" is the service's word for its own internal hiccups.
var transientIndicators = []string{"network", "abnormal", "timeout", "processing"}

// Numeric failure codes observed to be retryable.
var transientCodes = map[int]bool{42901: true, 50000: true, 50001: true, 50301: true}

// classifyFailure maps an explicit failure envelope to a failureClass.
func classifyFailure(code int, message string) *queryError {
	qe := &queryError{msg: fmt.Sprintf("code %d: %s", code, message)}
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "no videos found"):
		qe.class = classNoVideos
	case transientCodes[code]:
		qe.class = classTransient
	default:
		qe.class = classFatal
		for _, ind := range transientIndicators {
			if strings.Contains(lower, ind) {
				qe.class = classTransient
				break
			}
		}
	}
	return qe
}

// answerProbes is the ordered list of envelope paths checked for the
// response text. The service's answer field name is not stable across
// versions, so each path is probed in precedence order and the first
// non-empty string wins.
var answerProbes = [][]string{
	{"data", "response"},
	{"data", "answer"},
	{"data", "content"},
	{"response"},
	{"answer"},
	{"content"},
	{"result"},
}

// extractAnswer pulls the raw answer text out of a chat envelope.
func extractAnswer(envelope map[string]any) string {
	for _, path := range answerProbes {
		node := any(envelope)
		for _, key := range path {
			m, ok := node.(map[string]any)
			if !ok {
				node = nil
				break
			}
			node = m[key]
		}
		if s, ok := node.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// envelopeFailure inspects a chat envelope for explicit failure flags,
// returning a classified error or nil when the call succeeded.
func envelopeFailure(envelope map[string]any) *queryError {
	failed, _ := envelope["failed"].(bool)
	success, hasSuccess := envelope["success"].(bool)
	if !failed && (!hasSuccess || success) {
		return nil
	}

	message, _ := envelope["message"].(string)
	if message == "" {
		if m, ok := envelope["error"].(string); ok {
			message = m
		}
	}
	code := 0
	if c, ok := envelope["code"].(float64); ok {
		code = int(c)
	}
	return classifyFailure(code, message)
}
