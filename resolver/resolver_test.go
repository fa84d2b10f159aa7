package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hazyhaar/quizchain/answer"
	"github.com/hazyhaar/quizchain/snapshot"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestResolver(cfg Config) *Resolver {
	cfg.Logger = quietLogger
	return New(cfg)
}

// fakeFiles serves file bodies from a map and counts requests per URL.
type fakeFiles struct {
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFiles(bodies map[string]string) *fakeFiles {
	f := &fakeFiles{bodies: make(map[string][]byte), calls: make(map[string]int)}
	for k, v := range bodies {
		f.bodies[k] = []byte(v)
	}
	return f
}

func (f *fakeFiles) source(_ context.Context, url string) ([]byte, error) {
	f.calls[url]++
	data, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("404")
	}
	return data, nil
}

func mustResolve(t *testing.T, r *Resolver, snap *snapshot.Snapshot, files FileSource, retry bool) answer.Answer {
	t.Helper()
	a, ok := r.Resolve(context.Background(), snap, files, retry)
	if !ok {
		t.Fatal("expected an answer, got none")
	}
	return a
}

func TestResolve_StructuredAnswer(t *testing.T) {
	// WHAT: An "answer" key in the page's structured data is returned as-is.
	// WHY: It is the most explicit signal a page can carry.
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{StructuredData: map[string]any{"answer": 42}}

	got := mustResolve(t, r, snap, nil, false)
	if !got.Equal(answer.Number(42)) {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestResolve_StructuredWinsOverEverything(t *testing.T) {
	// WHAT: The structured answer wins even when every other strategy could fire.
	files := newFakeFiles(map[string]string{"https://q.test/d.txt": "100 200"})
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{
		VisibleText:    "numbers 1 2 3, answer: 77",
		DecodedPayload: `value: 9`,
		FileLinks:      []snapshot.FileLink{{URL: "https://q.test/d.txt", Ext: "txt"}},
		StructuredData: map[string]any{"answer": "paris", "solution": "rome"},
	}

	got := mustResolve(t, r, snap, files.source, false)
	if !got.Equal(answer.Text("paris")) {
		t.Fatalf("got %v, want paris", got)
	}
	if len(files.calls) != 0 {
		t.Errorf("files downloaded although an earlier strategy answered: %v", files.calls)
	}
}

func TestStructured_KeyOrder(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want answer.Answer
		ok   bool
	}{
		{"solution only", map[string]any{"solution": "abc"}, answer.Text("abc"), true},
		{"null answer falls through", map[string]any{"answer": nil, "solution": 5.0}, answer.Number(5), true},
		{"object answer", map[string]any{"answer": map[string]any{"x": 1.0}}, answer.Structured(map[string]any{"x": 1.0}), true},
		{"case sensitive", map[string]any{"Answer": 1.0}, answer.Answer{}, false},
		{"nil map", nil, answer.Answer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Input{Snapshot: &snapshot.Snapshot{StructuredData: tt.data}, Logger: quietLogger}
			got, ok := Structured(context.Background(), in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    answer.Answer
		ok      bool
	}{
		{"answer key", `secret: {"answer": "paris", "value": 3}`, answer.Text("paris"), true},
		{"hinted values", "value: 3\nnoise 100\nvalue=4", answer.Number(7), true},
		{"fallback to all numbers", "10 and 20", answer.Number(30), true},
		{"zero sum counts", "total 0", answer.Number(0), true},
		{"no numbers", "nothing here", answer.Answer{}, false},
		{"empty", "", answer.Answer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Input{Snapshot: &snapshot.Snapshot{DecodedPayload: tt.payload}, Logger: quietLogger}
			got, ok := Payload(context.Background(), in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_CSVNamedColumn(t *testing.T) {
	// WHAT: "sum of the Revenue column" sums that column of the linked CSV.
	// WHY: Named-column sums are the common file quiz.
	csv := "Region,Revenue,Units\nNorth,1000,3\nSouth,500.5,4\nEast,30,5\n"
	files := newFakeFiles(map[string]string{"https://q.test/data.csv": csv})
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{
		VisibleText:  "Find the sum of the Revenue column",
		QuestionText: "Find the sum of the Revenue column",
		FileLinks:    []snapshot.FileLink{{URL: "https://q.test/data.csv", Ext: "csv"}},
	}

	got := mustResolve(t, r, snap, files.source, false)
	if !got.Equal(answer.Number(1530.5)) {
		t.Fatalf("got %v, want 1530.5", got)
	}
}

func TestResolve_FilesSkipFailures(t *testing.T) {
	// WHAT: Failed downloads are skipped and images are never fetched.
	files := newFakeFiles(map[string]string{"https://q.test/c.txt": "1 2 3"})
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{
		FileLinks: []snapshot.FileLink{
			{URL: "https://q.test/logo.png", Ext: "png"},
			{URL: "https://q.test/missing.csv", Ext: "csv"},
			{URL: "https://q.test/c.txt", Ext: "txt"},
		},
	}

	got := mustResolve(t, r, snap, files.source, true)
	if !got.Equal(answer.Number(6)) {
		t.Fatalf("got %v, want 6", got)
	}
	if files.calls["https://q.test/logo.png"] != 0 {
		t.Error("image link was downloaded")
	}
	if files.calls["https://q.test/missing.csv"] != 1 {
		t.Errorf("missing csv calls = %d, want 1", files.calls["https://q.test/missing.csv"])
	}
}

func TestResolve_FileTooLarge(t *testing.T) {
	// WHAT: Files over MaxFileSize are treated as download failures.
	files := newFakeFiles(map[string]string{"https://q.test/big.txt": "1 2 3 4 5"})
	r := newTestResolver(Config{MaxFileSize: 4})
	snap := &snapshot.Snapshot{FileLinks: []snapshot.FileLink{{URL: "https://q.test/big.txt", Ext: "txt"}}}

	if a, ok := r.Resolve(context.Background(), snap, files.source, true); ok {
		t.Fatalf("expected no answer, got %v", a)
	}
}

func TestResolve_JSONFileLeaves(t *testing.T) {
	// WHAT: A JSON file sums every numeric leaf, nested ones included.
	doc := `{"a": 1, "b": [2, {"c": 3.5}], "d": "7", "10": true}`
	files := newFakeFiles(map[string]string{"https://q.test/d.json": doc})
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{FileLinks: []snapshot.FileLink{{URL: "https://q.test/d.json", Ext: "json"}}}

	got := mustResolve(t, r, snap, files.source, false)
	if !got.Equal(answer.Number(6.5)) {
		t.Fatalf("got %v, want 6.5", got)
	}
}

func TestResolve_InlineTable(t *testing.T) {
	markup := `<html><body><p>What is the sum of the Amount column?</p>
<table><tr><th>Item</th><th>Amount</th></tr>
<tr><td>a</td><td>10</td></tr><tr><td>b</td><td>2.5</td></tr></table></body></html>`

	tests := []struct {
		name string
		text string
	}{
		{"named column", "What is the sum of the Amount column?"},
		{"first numeric fallback", "Compute the sum of the totals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(Config{})
			snap := &snapshot.Snapshot{RawMarkup: markup, VisibleText: tt.text}
			got := mustResolve(t, r, snap, nil, true)
			if !got.Equal(answer.Number(12.5)) {
				t.Fatalf("got %v, want 12.5", got)
			}
		})
	}
}

func TestResolve_TextSum(t *testing.T) {
	tests := []struct {
		name string
		text string
		want answer.Answer
		ok   bool
	}{
		{"repeated year", "in 2024 and 2024", answer.Number(4048), true},
		{"decimals and negatives", "a -3 b 4.5", answer.Number(1.5), true},
		{"zero sum is no signal", "balance -5 then 5", answer.Answer{}, false},
		{"no digits", "nothing to add", answer.Answer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(Config{})
			got, ok := r.Resolve(context.Background(), &snapshot.Snapshot{VisibleText: tt.text}, nil, false)
			if ok != tt.ok {
				t.Fatalf("ok = %v (%v), want %v", ok, got, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_RetryModes(t *testing.T) {
	// WHAT: The generic sum runs only on the first attempt, labels only on retry.
	// WHY: A retry must vary the strategy rather than resubmit the same guess.
	r := newTestResolver(Config{})

	labelled := &snapshot.Snapshot{VisibleText: "The answer: Paris"}
	if a, ok := r.Resolve(context.Background(), labelled, nil, false); ok {
		t.Errorf("first attempt: expected no answer, got %v", a)
	}
	if got := mustResolve(t, r, labelled, nil, true); !got.Equal(answer.Text("Paris")) {
		t.Errorf("retry: got %v, want Paris", got)
	}

	numeric := &snapshot.Snapshot{VisibleText: "result = 17.25"}
	if got := mustResolve(t, r, numeric, nil, true); !got.Equal(answer.Number(17.25)) {
		t.Errorf("retry numeric: got %v, want 17.25", got)
	}

	plain := &snapshot.Snapshot{VisibleText: "numbers 3 and 4"}
	if a, ok := r.Resolve(context.Background(), plain, nil, true); ok {
		t.Errorf("retry without label: expected no answer, got %v", a)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	// WHAT: Resolving the same snapshot twice yields the same answer.
	files := newFakeFiles(map[string]string{"https://q.test/v.csv": "value\n1\n2\n"})
	r := newTestResolver(Config{})
	snap := &snapshot.Snapshot{
		VisibleText: "download the file, 2025",
		FileLinks:   []snapshot.FileLink{{URL: "https://q.test/v.csv", Ext: "csv"}},
	}

	first := mustResolve(t, r, snap, files.source, false)
	second := mustResolve(t, r, snap, files.source, false)
	if !first.Equal(second) || !first.Equal(answer.Number(3)) {
		t.Fatalf("first %v, second %v, want 3 both times", first, second)
	}
}

func TestInput_DownloadCachedPerResolve(t *testing.T) {
	// WHAT: Downloads are cached within one Resolve call, not across calls.
	files := newFakeFiles(map[string]string{"https://q.test/f.txt": "1"})
	probe := func(ctx context.Context, in *Input) (answer.Answer, bool) {
		in.Download(ctx, "https://q.test/f.txt")
		return answer.Answer{}, false
	}
	r := newTestResolver(Config{Strategies: []Strategy{{Name: "a", Run: probe}, {Name: "b", Run: probe}}})
	snap := &snapshot.Snapshot{}

	r.Resolve(context.Background(), snap, files.source, false)
	if got := files.calls["https://q.test/f.txt"]; got != 1 {
		t.Fatalf("calls after one resolve = %d, want 1", got)
	}
	r.Resolve(context.Background(), snap, files.source, false)
	if got := files.calls["https://q.test/f.txt"]; got != 2 {
		t.Fatalf("calls after two resolves = %d, want 2", got)
	}
}

func TestResolve_NilSnapshot(t *testing.T) {
	r := newTestResolver(Config{})
	if _, ok := r.Resolve(context.Background(), nil, nil, false); ok {
		t.Fatal("expected no answer for nil snapshot")
	}
}

func TestDefaultStrategies_Order(t *testing.T) {
	want := []string{"structured", "payload", "files", "inline-table", "text-sum", "labelled"}
	got := New(Config{}).Strategies()
	if len(got) != len(want) {
		t.Fatalf("got %d strategies, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.Name != want[i] {
			t.Errorf("strategy %d = %q, want %q", i, s.Name, want[i])
		}
	}
}
