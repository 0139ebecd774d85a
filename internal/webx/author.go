package webx

import (
	"regexp"
	"strings"

	"github.com/platewise/recipe-cli/internal/model"
)

// bylineRes match authorship buried in body copy. Many sites put a
// generic placeholder in their metadata and the real name in a byline
// sentence.
var bylineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brecipe\s+developed\s+by\s+([A-Z][\w.'-]+(?:\s+[A-Z][\w.'-]+){0,3})`),
	regexp.MustCompile(`(?i)\brecipe\s+by\s+([A-Z][\w.'-]+(?:\s+[A-Z][\w.'-]+){0,3})`),
	regexp.MustCompile(`\bBy\s+([A-Z][\w.'-]+(?:\s+[A-Z][\w.'-]+){0,3})`),
}

// Placeholder author values that should never win over a byline.
var genericAuthors = map[string]bool{
	"admin": true, "administrator": true, "editor": true, "staff": true,
	"team": true, "author": true, "user": true, "guest": true,
}

func isGenericAuthor(author string) bool {
	return author == "" || genericAuthors[strings.ToLower(strings.TrimSpace(author))]
}

// recoverAuthorByline scans step text for byline patterns when the
// structured author field is missing or a generic placeholder.
func recoverAuthorByline(result *model.WebExtractionResult) {
	if !isGenericAuthor(result.Author) {
		return
	}
	for _, step := range result.Steps {
		for _, re := range bylineRes {
			if m := re.FindStringSubmatch(step.Text); m != nil {
				result.Author = strings.TrimSpace(m[1])
				return
			}
		}
	}
}
