package snapshot

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// fileExtensions lists the downloadable resource types a quiz page may
// link to. xlsx must precede xls so the longer suffix wins.
const fileExtensions = `(csv|xlsx|xls|pdf|png|jpg|jpeg|gif|txt|json)`

var (
	hrefFileRe = regexp.MustCompile(`(?i)href=['"]([^'"]+\.` + fileExtensions + `)['"]`)
	srcFileRe  = regexp.MustCompile(`(?i)src=['"]([^'"]+\.` + fileExtensions + `)['"]`)
	bareFileRe = regexp.MustCompile(`(?i)(https?://[^\s<>"']+\.` + fileExtensions + `)`)
)

// FindFileLinks returns data file links in markup, resolved against
// baseURL. Order is href matches, then src, then bare URLs; duplicates by
// resolved URL keep their first position.
func FindFileLinks(markup, baseURL string) []FileLink {
	var links []FileLink
	seen := make(map[string]bool)

	for _, re := range []*regexp.Regexp{hrefFileRe, srcFileRe, bareFileRe} {
		for _, m := range re.FindAllStringSubmatch(markup, -1) {
			raw := html.UnescapeString(m[1])
			resolved, ok := resolveURL(baseURL, raw)
			if !ok || seen[resolved] {
				continue
			}
			seen[resolved] = true
			links = append(links, FileLink{URL: resolved, Ext: strings.ToLower(m[2])})
		}
	}
	return links
}

// ExtOf returns the lower-case extension of a URL path, without the dot.
func ExtOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
}

var submissionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)submit[_-]?url["']?\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)action=["']([^"']*(?:submit|answer|post)[^"']*)["']`),
	regexp.MustCompile(`(?i)api[_-]?url["']?\s*[:=]\s*["']([^"']+)["']`),
}

var textSubmitURLRe = regexp.MustCompile(`(?i)https?://[^\s<>"']*submit[^\s<>"']*`)

// findSubmissionURL locates the endpoint answers are posted to. Markup
// patterns win over form attributes, which win over a submit URL quoted in
// the visible text.
func findSubmissionURL(doc *html.Node, markup, text, baseURL string) string {
	for _, re := range submissionPatterns {
		if m := re.FindStringSubmatch(markup); m != nil {
			if u, ok := resolveURL(baseURL, html.UnescapeString(m[1])); ok {
				return u
			}
		}
	}

	if doc != nil {
		if form := findFirst(doc, func(n *html.Node) bool { return n.Data == "form" && attr(n, "action") != "" }); form != nil {
			if u, ok := resolveURL(baseURL, attr(form, "action")); ok {
				return u
			}
		}
		el := findFirst(doc, func(n *html.Node) bool {
			return attr(n, "data-submit-url") != "" || attr(n, "data-submission-url") != ""
		})
		if el != nil {
			v := attr(el, "data-submit-url")
			if v == "" {
				v = attr(el, "data-submission-url")
			}
			if u, ok := resolveURL(baseURL, v); ok {
				return u
			}
		}
	}

	if m := textSubmitURLRe.FindString(text); m != "" {
		return strings.TrimRight(m, ".,;:)")
	}
	return ""
}

// resolveURL makes ref absolute against base. Absolute http(s) references
// are returned unchanged.
func resolveURL(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref, true
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(r).String(), true
}
