package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/hazyhaar/quizchain/answer"
)

// supportedExt lists the file types the file strategy can analyse. Other
// links (images) are not downloaded.
var supportedExt = map[string]bool{
	"csv": true, "xlsx": true, "xls": true,
	"pdf":  true,
	"txt":  true,
	"json": true,
}

// analyzeFile derives an answer from one downloaded file. question is the
// extracted question, or the page text when none was isolated.
func analyzeFile(ext string, data []byte, question string) (answer.Answer, bool) {
	switch ext {
	case "csv", "xlsx", "xls":
		t, err := parseSpreadsheet(ext, data)
		if err != nil {
			return answer.Answer{}, false
		}
		if sum, ok := t.analyze(question); ok {
			return answer.Number(sum), true
		}

	case "pdf":
		text, err := pdfText(data)
		if err != nil {
			return answer.Answer{}, false
		}
		hint := ""
		if strings.TrimSpace(question) != "" {
			hint = defaultHint
		}
		if sum, ok := sumValues(text, hint); ok {
			return answer.Number(sum), true
		}

	case "json":
		if sum, ok, err := sumJSONLeaves(data); err == nil && ok {
			return answer.Number(sum), true
		}
		if sum, ok := SumNumbers(string(data)); ok {
			return answer.Number(sum), true
		}

	case "txt":
		if sum, ok := SumNumbers(string(data)); ok {
			return answer.Number(sum), true
		}
	}
	return answer.Answer{}, false
}

// sumJSONLeaves adds every numeric leaf of a JSON document in document
// order, through nested objects and arrays. The decoder yields object keys
// as strings, so numeric-looking keys are never counted. ok is false when
// the document holds no number; err is set when data is not valid JSON.
func sumJSONLeaves(data []byte) (sum float64, ok bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	for {
		tok, tokErr := dec.Token()
		if errors.Is(tokErr, io.EOF) {
			return sum, ok, nil
		}
		if tokErr != nil {
			return 0, false, tokErr
		}
		n, isNum := tok.(json.Number)
		if !isNum {
			continue
		}
		if v, convErr := n.Float64(); convErr == nil {
			sum += v
			ok = true
		}
	}
}
