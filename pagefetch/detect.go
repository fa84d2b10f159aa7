package pagefetch

import (
	"bytes"
	"strings"
)

// spaIndicators mark markup that only becomes a quiz once scripts run.
var spaIndicators = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	"<noscript>you need to enable javascript",
	"<noscript>enable javascript",
	"atob(",
	"document.write(",
	"innerhtml =",
	"innerhtml=",
}

// IsSufficient reports whether a plain HTTP response body can be used as-is,
// without rendering it in a browser. Short bodies, bodies that are mostly
// markup and bodies that build their content from scripts are not.
func IsSufficient(html []byte) bool {
	if len(html) < 256 {
		return false
	}

	textLen, markupLen := textMarkupRatio(html)
	total := textLen + markupLen
	if total == 0 {
		return false
	}
	if float64(textLen)/float64(total) < 0.10 {
		return false
	}
	if textLen < 200 {
		return false
	}

	lower := bytes.ToLower(html)
	for _, ind := range spaIndicators {
		if bytes.Contains(lower, []byte(ind)) {
			return false
		}
	}
	return true
}

// textMarkupRatio approximates the byte counts of visible text and markup.
// Script and style bodies count as markup.
func textMarkupRatio(html []byte) (text, markup int) {
	s := string(html)
	inTag := false
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '<':
			if n := rawTextLen(s[i:]); n > 0 {
				markup += n
				i += n
				continue
			}
			inTag = true
			markup++
		case ch == '>':
			inTag = false
			markup++
		case inTag:
			markup++
		case ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r':
			text++
		}
		i++
	}
	return text, markup
}

// rawTextLen returns the length of a script or style element starting at
// s, or 0 when s does not open one.
func rawTextLen(s string) int {
	head := strings.ToLower(s[:min(len(s), 7)])
	for _, name := range []string{"script", "style"} {
		if strings.HasPrefix(head, "<"+name) {
			return skipElement(s, name)
		}
	}
	return 0
}

// skipElement returns the length of s up to and including the closing tag
// of a raw-text element, or len(s) when it is unterminated.
func skipElement(s, name string) int {
	idx := strings.Index(strings.ToLower(s), "</"+name)
	if idx < 0 || idx >= len(s) {
		return len(s)
	}
	end := strings.IndexByte(s[idx:], '>')
	if end < 0 {
		return len(s)
	}
	return idx + end + 1
}
