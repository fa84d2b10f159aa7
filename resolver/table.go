package resolver

import (
	"regexp"
	"sort"
	"strings"
)

// sumOfRe captures the column named in "sum of the Revenue column",
// "sum of 'amount' values" and similar phrasings. The capture is greedy and
// may run past the column name; matchColumn handles the overrun.
var sumOfRe = regexp.MustCompile(`(?i)sum\s+of\s+(?:the\s+)?['"]?([A-Za-z0-9_\s-]+)['"]?\s*(?:column|values?)?`)

// sumOfColumn returns the raw column phrase from text, or "".
func sumOfColumn(text string) string {
	m := sumOfRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// normalizeName lower-cases a header or phrase, strips surrounding quotes
// and collapses whitespace.
func normalizeName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// matchColumn finds the header named by phrase. An exact match wins;
// otherwise the longest header the phrase starts with (followed by a word
// break) is chosen, so "revenue column for q3" selects "Revenue".
func matchColumn(headers []string, phrase string) int {
	p := normalizeName(phrase)
	if p == "" {
		return -1
	}
	for i, h := range headers {
		if normalizeName(h) == p {
			return i
		}
	}

	type cand struct{ idx, n int }
	var cands []cand
	for i, h := range headers {
		nh := normalizeName(h)
		if nh != "" && strings.HasPrefix(p, nh+" ") {
			cands = append(cands, cand{i, len(nh)})
		}
	}
	if len(cands) == 0 {
		return -1
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].n > cands[b].n })
	return cands[0].idx
}

// table is a header row plus data rows of raw cell text.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(records [][]string) *table {
	if len(records) == 0 {
		return nil
	}
	return &table{headers: records[0], rows: records[1:]}
}

// sumColumn adds the numeric cells of column col, skipping blanks. ok is
// false when a non-blank cell is not numeric or the column is empty.
func (t *table) sumColumn(col int) (float64, bool) {
	var sum float64
	seen := false
	for _, row := range t.rows {
		if col >= len(row) {
			continue
		}
		v, empty, ok := parseCell(row[col])
		if empty {
			continue
		}
		if !ok {
			return 0, false
		}
		sum += v
		seen = true
	}
	return sum, seen
}

// sumNamedColumn adds the numeric cells of a column picked by name, skipping
// blanks and placeholders such as "N/A". ok is false when no cell is numeric.
func (t *table) sumNamedColumn(col int) (float64, bool) {
	var sum float64
	seen := false
	for _, row := range t.rows {
		if col >= len(row) {
			continue
		}
		if v, empty, ok := parseCell(row[col]); !empty && ok {
			sum += v
			seen = true
		}
	}
	return sum, seen
}

// firstNumericSum sums the first column whose non-blank cells are all
// numeric.
func (t *table) firstNumericSum() (float64, bool) {
	for col := range t.headers {
		if sum, ok := t.sumColumn(col); ok {
			return sum, true
		}
	}
	return 0, false
}

// analyze sums the column named in question, then a "value" column, then
// the first numeric column.
func (t *table) analyze(question string) (float64, bool) {
	if phrase := sumOfColumn(question); phrase != "" {
		if col := matchColumn(t.headers, phrase); col >= 0 {
			if sum, ok := t.sumNamedColumn(col); ok {
				return sum, true
			}
		}
	}
	if col := matchColumn(t.headers, defaultHint); col >= 0 {
		if sum, ok := t.sumNamedColumn(col); ok {
			return sum, true
		}
	}
	return t.firstNumericSum()
}
