package snapshot

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxLabelledLen caps question and instruction text.
const maxLabelledLen = 1000

var (
	questionRe     = regexp.MustCompile(`(?is)(?:question|task|problem|what|calculate|find)[:.\s]+(.{20,500})`)
	instructionsRe = regexp.MustCompile(`(?is)(?:instruction|note|hint|guideline)s?[:.\s]+(.{20,500})`)
)

var stripPolicy = bluemonday.StrictPolicy()

// stripTags removes any markup left in a text fragment.
func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// findQuestion isolates the question from the visible text, falling back to
// the first heading or question-classed element in the DOM.
func findQuestion(doc *html.Node, text string) string {
	if m := questionRe.FindStringSubmatch(text); m != nil {
		if q := stripTags(m[1]); len(q) > 10 {
			return truncate(q, maxLabelledLen)
		}
	}

	el := findFirst(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.H1, atom.H2:
			return true
		}
		return attr(n, "id") == "question" || hasClassContaining(n, "question")
	})
	if el == nil {
		return ""
	}
	if q := collectText(el); len(q) > 10 {
		return truncate(q, maxLabelledLen)
	}
	return ""
}

func findInstructions(text string) string {
	if m := instructionsRe.FindStringSubmatch(text); m != nil {
		if s := stripTags(m[1]); len(s) > 10 {
			return truncate(s, maxLabelledLen)
		}
	}
	return ""
}
