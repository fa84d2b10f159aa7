package resolver

import (
	"regexp"
	"strconv"
	"strings"
)

// numberRe is the generic numeric token: optional minus, digits, optional
// fractional part.
var numberRe = regexp.MustCompile(`-?\d+\.?\d*`)

// thousandsRe accepts "1,234" and "-12,345.50" in table cells.
var thousandsRe = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// cellNumberRe is a plain decimal or scientific literal. ParseFloat alone
// would also accept "NaN", "Inf" and hex floats.
var cellNumberRe = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

// parseToken converts a numeric token; ok is false for malformed tokens.
func parseToken(tok string) (float64, bool) {
	tok = strings.TrimSuffix(tok, ".")
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SumNumbers adds every numeric token in text. ok is false when text holds
// no parseable token.
func SumNumbers(text string) (sum float64, ok bool) {
	for _, tok := range numberRe.FindAllString(text, -1) {
		if v, valid := parseToken(tok); valid {
			sum += v
			ok = true
		}
	}
	return sum, ok
}

// sumHinted adds the numbers labelled with hint ("value: 3", "value=4",
// `"value": 5`). Matching is case-insensitive.
func sumHinted(text, hint string) (sum float64, ok bool) {
	re, err := regexp.Compile(`(?i)"?` + regexp.QuoteMeta(hint) + `"?\s*[:=]\s*(-?\d+\.?\d*)`)
	if err != nil {
		return 0, false
	}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if v, valid := parseToken(m[1]); valid {
			sum += v
			ok = true
		}
	}
	return sum, ok
}

// sumValues sums the numbers labelled with hint, falling back to every
// numeric token when no labelled value exists. An empty hint goes straight
// to the fallback.
func sumValues(text, hint string) (float64, bool) {
	if hint != "" {
		if sum, ok := sumHinted(text, hint); ok {
			return sum, true
		}
	}
	return SumNumbers(text)
}

// parseCell parses one table cell as a number. Empty cells report
// empty=true so callers can skip them the way blank cells are skipped in a
// spreadsheet sum.
func parseCell(cell string) (v float64, empty bool, ok bool) {
	cell = strings.TrimSpace(strings.Trim(strings.TrimSpace(cell), `"'`))
	if cell == "" {
		return 0, true, false
	}
	if thousandsRe.MatchString(cell) {
		cell = strings.ReplaceAll(cell, ",", "")
	}
	if !cellNumberRe.MatchString(cell) {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false, false
	}
	return v, false, true
}
