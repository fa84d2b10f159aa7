// Package answer defines the value submitted to a quiz endpoint.
//
// An Answer is a tagged union: a number, a piece of text, or a structured
// JSON value (object, array or boolean). The zero Answer carries nothing and
// is what resolvers return when no strategy produced a value.
package answer

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant an Answer holds.
type Kind int

const (
	KindNone Kind = iota
	KindNumber
	KindText
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	default:
		return "none"
	}
}

// Answer is one of Number, Text or Structured.
type Answer struct {
	kind Kind
	num  float64
	text string
	val  any
}

// Number wraps a numeric answer.
func Number(v float64) Answer { return Answer{kind: KindNumber, num: v} }

// Text wraps a textual answer.
func Text(s string) Answer { return Answer{kind: KindText, text: s} }

// Structured wraps a decoded JSON object, array or boolean.
func Structured(v any) Answer { return Answer{kind: KindStructured, val: v} }

// FromValue converts a decoded JSON value into an Answer. It reports false
// for JSON null, which never counts as an answer.
func FromValue(v any) (Answer, bool) {
	switch t := v.(type) {
	case nil:
		return Answer{}, false
	case float64:
		return Number(t), true
	case int:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Text(t.String()), true
		}
		return Number(f), true
	case string:
		return Text(t), true
	default:
		return Structured(t), true
	}
}

// Kind returns the variant held by a.
func (a Answer) Kind() Kind { return a.kind }

// IsZero reports whether a carries no value.
func (a Answer) IsZero() bool { return a.kind == KindNone }

// Float returns the numeric value. ok is false for non-number answers.
func (a Answer) Float() (v float64, ok bool) {
	return a.num, a.kind == KindNumber
}

// Str returns the textual value. ok is false for non-text answers.
func (a Answer) Str() (s string, ok bool) {
	return a.text, a.kind == KindText
}

// Value returns the wrapped value as it will be serialised.
func (a Answer) Value() any {
	switch a.kind {
	case KindNumber:
		return a.num
	case KindText:
		return a.text
	case KindStructured:
		return a.val
	default:
		return nil
	}
}

// Equal reports whether two answers hold the same variant and value.
// Structured values are compared through their JSON encoding.
func (a Answer) Equal(b Answer) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNumber:
		return a.num == b.num
	case KindText:
		return a.text == b.text
	case KindStructured:
		x, errA := json.Marshal(a.val)
		y, errB := json.Marshal(b.val)
		return errA == nil && errB == nil && string(x) == string(y)
	default:
		return true
	}
}

func (a Answer) String() string {
	switch a.kind {
	case KindNumber:
		return strconv.FormatFloat(a.num, 'f', -1, 64)
	case KindText:
		return a.text
	case KindStructured:
		data, err := json.Marshal(a.val)
		if err != nil {
			return fmt.Sprintf("%v", a.val)
		}
		return string(data)
	default:
		return "<none>"
	}
}

// MarshalJSON emits the wrapped value directly, so a Number(42) answer is
// encoded as 42 and a Text answer as a JSON string.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// UnmarshalJSON decodes any JSON value into the matching variant.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	got, _ := FromValue(v)
	*a = got
	return nil
}
