// Package snapshot holds the structured view of one fetched quiz page and
// the extraction that produces it from raw markup and visible text.
//
// A Snapshot is built once per fetch and never mutated afterwards. Every
// optional field is best-effort: a page without a question or without an
// embedded payload still yields a valid Snapshot.
package snapshot

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// FileLink is a downloadable resource referenced by the page.
type FileLink struct {
	URL string `json:"url"`
	Ext string `json:"ext"` // lower-case, without the dot
}

// Snapshot is the extracted representation of one quiz page.
type Snapshot struct {
	SourceURL     string     `json:"source_url"`
	RawMarkup     string     `json:"-"`
	VisibleText   string     `json:"visible_text"`
	FileLinks     []FileLink `json:"file_links,omitempty"`
	SubmissionURL string     `json:"submission_url,omitempty"`
	QuestionText  string     `json:"question,omitempty"`
	Instructions  string     `json:"instructions,omitempty"`

	// DecodedPayload is the text of the first embedded base64 blob that
	// decodes to printable content.
	DecodedPayload string `json:"decoded_payload,omitempty"`

	// StructuredData is the first JSON object found in the decoded payload,
	// or failing that in the markup.
	StructuredData map[string]any `json:"structured_data,omitempty"`
}

// HasQuestion reports whether a question was extracted.
func (s *Snapshot) HasQuestion() bool { return s.QuestionText != "" }

// QuestionOrText returns the extracted question, or the whole visible text
// when no question could be isolated.
func (s *Snapshot) QuestionOrText() string {
	if s.QuestionText != "" {
		return s.QuestionText
	}
	return s.VisibleText
}

// Build extracts every Snapshot field from a page. visibleText is the
// rendered text when a browser produced it; when empty it is derived from
// the markup.
func Build(pageURL string, markup []byte, visibleText string) *Snapshot {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		// x/net/html is lenient enough that this only happens on reader
		// errors; keep going with regex-only extraction.
		doc = nil
	}

	if strings.TrimSpace(visibleText) == "" && doc != nil {
		visibleText = visibleTextOf(doc)
	}

	raw := string(markup)
	s := &Snapshot{
		SourceURL:   pageURL,
		RawMarkup:   raw,
		VisibleText: visibleText,
		FileLinks:   FindFileLinks(raw, pageURL),
	}

	s.SubmissionURL = findSubmissionURL(doc, raw, visibleText, pageURL)
	s.QuestionText = findQuestion(doc, visibleText)
	s.Instructions = findInstructions(visibleText)

	s.DecodedPayload = findPayload(visibleText)
	if s.DecodedPayload == "" {
		s.DecodedPayload = findPayload(raw)
	}
	if s.DecodedPayload != "" {
		s.StructuredData = FindJSONObject(s.DecodedPayload)
	}
	if s.StructuredData == nil {
		s.StructuredData = FindJSONObject(raw)
	}

	return s
}

// VisibleText renders the text a reader would see in markup, skipping
// scripts, styles and nodes hidden with inline styles.
func VisibleText(markup []byte) string {
	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	return visibleTextOf(doc)
}
