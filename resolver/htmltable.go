package resolver

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseHTMLTables returns every <table> in markup as a table. The header
// row is the first row made of <th> cells, or the first row when none is.
// Rows without cells are dropped.
func parseHTMLTables(markup string) []*table {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var tables []*table
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			if t := tableFromNode(n); t != nil {
				tables = append(tables, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables
}

func tableFromNode(tbl *html.Node) *table {
	var rows [][]string
	headerIdx := -1

	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				// Nested tables are parsed on their own.
				continue
			case atom.Tr:
				cells, allTH := rowCells(c)
				if len(cells) == 0 {
					continue
				}
				if allTH && headerIdx < 0 {
					headerIdx = len(rows)
				}
				rows = append(rows, cells)
			default:
				walkRows(c)
			}
		}
	}
	walkRows(tbl)

	if len(rows) == 0 {
		return nil
	}
	if headerIdx < 0 {
		headerIdx = 0
	}
	return &table{headers: rows[headerIdx], rows: rows[headerIdx+1:]}
}

// rowCells returns the text of a row's td/th cells and whether every cell
// was a th.
func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	allTH := true
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Th:
		case atom.Td:
			allTH = false
		default:
			continue
		}
		cells = append(cells, cellText(c))
	}
	return cells, allTH && len(cells) > 0
}

func cellText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
