package resolver

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/quizchain/answer"
	"github.com/hazyhaar/quizchain/snapshot"
)

// DefaultStrategies returns the cascade in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "structured", Run: Structured},
		{Name: "payload", Run: Payload},
		{Name: "files", Run: Files},
		{Name: "inline-table", Run: InlineTable},
		{Name: "text-sum", Run: TextSum},
		{Name: "labelled", Run: Labelled},
	}
}

// Structured returns the "answer" or "solution" entry of the page's
// embedded JSON, in that order. Keys are case-sensitive.
func Structured(_ context.Context, in *Input) (answer.Answer, bool) {
	data := in.Snapshot.StructuredData
	if data == nil {
		return answer.Answer{}, false
	}
	for _, key := range []string{"answer", "solution"} {
		if v, present := data[key]; present {
			if a, ok := answer.FromValue(v); ok {
				return a, true
			}
		}
	}
	return answer.Answer{}, false
}

// Payload looks inside the decoded base64 payload: an "answer" key in its
// JSON wins, otherwise the values labelled "value" are summed (all numeric
// tokens when none is labelled). A zero sum counts.
func Payload(_ context.Context, in *Input) (answer.Answer, bool) {
	decoded := in.Snapshot.DecodedPayload
	if decoded == "" {
		return answer.Answer{}, false
	}
	if obj := snapshot.FindJSONObject(decoded); obj != nil {
		if v, present := obj["answer"]; present {
			if a, ok := answer.FromValue(v); ok {
				return a, true
			}
		}
	}
	if sum, ok := sumValues(decoded, defaultHint); ok {
		return answer.Number(sum), true
	}
	return answer.Answer{}, false
}

// Files downloads linked data files in page order and analyses each by
// extension. Files that fail to download or parse are skipped.
func Files(ctx context.Context, in *Input) (answer.Answer, bool) {
	question := in.Snapshot.QuestionOrText()
	for _, link := range in.Snapshot.FileLinks {
		if !supportedExt[link.Ext] {
			continue
		}
		data, err := in.Download(ctx, link.URL)
		if err != nil {
			in.Logger.Warn("resolver: file skipped", "file", link.URL, "error", err)
			continue
		}
		if a, ok := analyzeFile(link.Ext, data, question); ok {
			in.Logger.Debug("resolver: file analysed", "file", link.URL, "ext", link.Ext)
			return a, true
		}
	}
	return answer.Answer{}, false
}

// InlineTable sums a column of an HTML table embedded in the page when the
// text asks for "sum of <column>".
func InlineTable(_ context.Context, in *Input) (answer.Answer, bool) {
	s := in.Snapshot
	question := s.VisibleText
	if sumOfColumn(question) == "" {
		question = s.QuestionText
	}
	if sumOfColumn(question) == "" || !strings.Contains(strings.ToLower(s.RawMarkup), "<table") {
		return answer.Answer{}, false
	}
	phrase := sumOfColumn(question)
	for _, t := range parseHTMLTables(s.RawMarkup) {
		if col := matchColumn(t.headers, phrase); col >= 0 {
			if sum, ok := t.sumColumn(col); ok {
				return answer.Number(sum), true
			}
		}
		if sum, ok := t.firstNumericSum(); ok {
			return answer.Number(sum), true
		}
	}
	return answer.Answer{}, false
}

// TextSum adds every number in the visible text, on the first attempt only.
// A zero total is treated as no signal rather than an answer of 0: pages
// full of incidental digits (dates, ids) would otherwise produce confident
// garbage. This is a known heuristic limitation.
func TextSum(_ context.Context, in *Input) (answer.Answer, bool) {
	if in.Retry {
		return answer.Answer{}, false
	}
	sum, ok := SumNumbers(in.Snapshot.VisibleText)
	if !ok || sum == 0 {
		return answer.Answer{}, false
	}
	return answer.Number(sum), true
}

var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)answer["']?\s*[:=]\s*["']?([^"'\n]+)["']?`),
	regexp.MustCompile(`(?i)solution["']?\s*[:=]\s*["']?([^"'\n]+)["']?`),
	regexp.MustCompile(`(?i)result["']?\s*[:=]\s*["']?([^"'\n]+)["']?`),
}

// Labelled looks, on retries only, for an explicit "answer: x" style label
// in the visible text. Numeric values become numbers.
func Labelled(_ context.Context, in *Input) (answer.Answer, bool) {
	if !in.Retry {
		return answer.Answer{}, false
	}
	for _, re := range labelPatterns {
		m := re.FindStringSubmatch(in.Snapshot.VisibleText)
		if m == nil {
			continue
		}
		val := strings.TrimSpace(m[1])
		if val == "" {
			continue
		}
		if cellNumberRe.MatchString(val) {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return answer.Number(f), true
			}
		}
		return answer.Text(val), true
	}
	return answer.Answer{}, false
}
