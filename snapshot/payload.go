package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinBase64Len is the shortest run of base64 alphabet characters treated as
// an encoded blob. Shorter runs are mostly identifiers and hashes.
const MinBase64Len = 120

// minPrintableRatio rejects blobs that decode to binary (inline images).
const minPrintableRatio = 0.9

var base64Re = regexp.MustCompile(`[A-Za-z0-9+/=]{120,}`)

// FindBase64 returns base64-looking runs in text, in order of appearance.
func FindBase64(text string) []string {
	return base64Re.FindAllString(text, -1)
}

// DecodeBase64 decodes a candidate blob and returns its text with invalid
// UTF-8 dropped. ok is false when the blob is not valid base64.
func DecodeBase64(blob string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(blob, "="))
		if err != nil {
			return "", false
		}
	}
	return strings.ToValidUTF8(string(data), ""), true
}

// findPayload returns the first blob in text that decodes to printable text.
func findPayload(text string) string {
	for _, blob := range FindBase64(text) {
		decoded, ok := DecodeBase64(blob)
		if !ok || strings.TrimSpace(decoded) == "" {
			continue
		}
		if printableRatio(decoded) < minPrintableRatio {
			continue
		}
		return decoded
	}
	return ""
}

// printableRatio returns the share of printable runes in s.
func printableRatio(s string) float64 {
	if s == "" {
		return 1
	}
	total, printable := 0, 0
	for _, r := range s {
		total++
		if r == utf8.RuneError || (r >= 0xE000 && r <= 0xF8FF) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

// jsonObjectRe matches a JSON-looking object with at most one level of
// nested objects.
var jsonObjectRe = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// FindJSONObject returns the first JSON object embedded in text, or nil.
// Candidate objects are tried in order; failing that the text is decoded
// from its first '{', ignoring whatever follows the object.
func FindJSONObject(text string) map[string]any {
	for _, m := range jsonObjectRe.FindAllString(text, -1) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(m), &obj); err == nil {
			return obj
		}
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	return obj
}
