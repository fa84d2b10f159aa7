package snapshot

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" {
			return true
		}
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}

// isBlock reports whether n starts a new line in rendered text.
func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Table, atom.Section,
		atom.Article, atom.Pre, atom.Form, atom.Ul, atom.Ol, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Hr:
		return true
	}
	return false
}

// visibleTextOf walks the DOM and collects text, one line per block element.
func visibleTextOf(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := strings.Join(strings.Fields(n.Data), " ")
			if text == "" {
				return
			}
			if sb.Len() > 0 {
				last := sb.String()[sb.Len()-1]
				if last != '\n' && last != ' ' {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(text)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			}
			if hasHiddenStyle(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			newline(&sb)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			newline(&sb)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}

func newline(sb *strings.Builder) {
	if sb.Len() == 0 {
		return
	}
	if sb.String()[sb.Len()-1] != '\n' {
		sb.WriteByte('\n')
	}
}

// collectText returns the flattened text of a subtree.
func collectText(n *html.Node) string {
	return strings.Join(strings.Fields(visibleTextOf(n)), " ")
}

// findFirst returns the first element, in document order, satisfying match.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClassContaining(n *html.Node, sub string) bool {
	return strings.Contains(strings.ToLower(attr(n, "class")), sub)
}
