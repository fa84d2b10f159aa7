package pagefetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hazyhaar/quizchain/horosafe"
	"github.com/hazyhaar/quizchain/pagefetch/internal/browser"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const staticQuiz = `<!DOCTYPE html><html><head><title>Quiz</title></head><body>
<h1>Quiz 1</h1>
<p>Question: What is the sum of the numbers in the attached data file? Read the file carefully,
add every value in the value column and post your answer as JSON to the submit endpoint below.
The answer must be a number. You have three attempts before the quiz is closed for the session.</p>
<a href="/data.csv">data.csv</a>
<form action="/submit"></form>
</body></html>`

const shellQuiz = `<!DOCTYPE html><html><head><title>App</title></head><body>
<div id="root"></div>
<script>document.getElementById("root").innerHTML = atob("PHA+UXVlc3Rpb246IHN1bSBvZiAxIGFuZCAyPC9wPg==");</script>
</body></html>`

func newQuizServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/static", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "seen", Value: "1", Path: "/"})
		w.Write([]byte(staticQuiz))
	})
	mux.HandleFunc("/shell", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(shellQuiz))
	})
	mux.HandleFunc("/data.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("value\n1\n2\n"))
	})
	mux.HandleFunc("/big.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("9", 2048)))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect", http.StatusFound)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeRenderer pretends to be a browser context.
type fakeRenderer struct {
	html, text string
	err        error
	renders    int
	closed     bool
}

func (r *fakeRenderer) Render(_ context.Context, pageURL string) (*browser.Rendered, error) {
	r.renders++
	if r.err != nil {
		return nil, r.err
	}
	return &browser.Rendered{URL: pageURL, HTML: []byte(r.html), Text: r.text}, nil
}

func (r *fakeRenderer) Close() error {
	r.closed = true
	return nil
}

func newTestSession(mode Mode, r renderer, cfg Config) *Session {
	cfg.Mode = mode
	cfg.Logger = quietLogger
	cfg.URLValidator = horosafe.SchemeOnly
	s := New(cfg).NewSession()
	s.open = func() (renderer, error) {
		if r == nil {
			return nil, ErrNoBrowser
		}
		return r, nil
	}
	return s
}

func TestSession_HTTPMode(t *testing.T) {
	srv := newQuizServer(t)
	s := newTestSession(ModeHTTP, nil, Config{})
	defer s.Close()

	snap, err := s.FetchSnapshot(context.Background(), srv.URL+"/static")
	if err != nil {
		t.Fatal(err)
	}
	if snap.SourceURL != srv.URL+"/static" {
		t.Errorf("source url = %q", snap.SourceURL)
	}
	if snap.SubmissionURL != srv.URL+"/submit" {
		t.Errorf("submission url = %q", snap.SubmissionURL)
	}
	if len(snap.FileLinks) != 1 || snap.FileLinks[0].URL != srv.URL+"/data.csv" {
		t.Errorf("file links = %+v", snap.FileLinks)
	}
	if !strings.Contains(snap.VisibleText, "What is the sum") {
		t.Errorf("visible text = %q", snap.VisibleText)
	}
}

func TestSession_AutoStaticSkipsBrowser(t *testing.T) {
	// WHAT: A page with real content is used without rendering.
	srv := newQuizServer(t)
	r := &fakeRenderer{html: "<p>rendered</p>", text: "rendered"}
	s := newTestSession(ModeAuto, r, Config{})
	defer s.Close()

	if _, err := s.FetchSnapshot(context.Background(), srv.URL+"/static"); err != nil {
		t.Fatal(err)
	}
	if r.renders != 0 {
		t.Fatalf("renders = %d, want 0", r.renders)
	}
}

func TestSession_AutoEscalatesShell(t *testing.T) {
	// WHAT: A script shell is rendered in the browser.
	// WHY: The question only exists after scripts run.
	srv := newQuizServer(t)
	r := &fakeRenderer{html: "<html><body><p>Question: sum of 1 and 2</p></body></html>", text: "Question: sum of 1 and 2"}
	s := newTestSession(ModeAuto, r, Config{})

	snap, err := s.FetchSnapshot(context.Background(), srv.URL+"/shell")
	if err != nil {
		t.Fatal(err)
	}
	if r.renders != 1 || snap.VisibleText != "Question: sum of 1 and 2" {
		t.Fatalf("renders = %d, text = %q", r.renders, snap.VisibleText)
	}

	if _, err := s.FetchSnapshot(context.Background(), srv.URL+"/shell"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !r.closed {
		t.Error("browser context not closed with the session")
	}
}

func TestSession_AutoWithoutBrowser(t *testing.T) {
	// WHAT: Auto mode falls back to the HTTP body when no browser runs.
	srv := newQuizServer(t)
	s := newTestSession(ModeAuto, nil, Config{})

	snap, err := s.FetchSnapshot(context.Background(), srv.URL+"/shell")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(snap.RawMarkup, `id="root"`) {
		t.Errorf("expected the raw shell markup, got %q", snap.RawMarkup)
	}
}

func TestSession_AutoRenderFailure(t *testing.T) {
	srv := newQuizServer(t)
	r := &fakeRenderer{err: errors.New("tab crashed")}
	s := newTestSession(ModeAuto, r, Config{})

	snap, err := s.FetchSnapshot(context.Background(), srv.URL+"/shell")
	if err != nil || snap == nil {
		t.Fatalf("snap = %v, err = %v", snap, err)
	}
}

func TestSession_BrowserMode(t *testing.T) {
	r := &fakeRenderer{html: "<html><body><a href='f.json'>f</a></body></html>", text: "answer inside"}
	s := newTestSession(ModeBrowser, r, Config{})

	snap, err := s.FetchSnapshot(context.Background(), "https://quiz.example.com/q/")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.FileLinks) != 1 || snap.FileLinks[0].URL != "https://quiz.example.com/q/f.json" {
		t.Errorf("file links = %+v", snap.FileLinks)
	}

	noBrowser := newTestSession(ModeBrowser, nil, Config{})
	if _, err := noBrowser.FetchSnapshot(context.Background(), "https://quiz.example.com/"); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("expected ErrNoBrowser, got %v", err)
	}
}

func TestSession_Errors(t *testing.T) {
	srv := newQuizServer(t)
	s := newTestSession(ModeHTTP, nil, Config{MaxFileSize: 1024})
	ctx := context.Background()

	if _, err := s.FetchSnapshot(ctx, srv.URL+"/gone"); !errors.Is(err, ErrHTTPStatus) {
		t.Errorf("gone: expected ErrHTTPStatus, got %v", err)
	}
	if _, err := s.FetchSnapshot(ctx, srv.URL+"/redirect"); err == nil || !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("redirect loop: got %v", err)
	}
	if _, err := s.DownloadFile(ctx, srv.URL+"/big.csv"); !errors.Is(err, horosafe.ErrTooLarge) {
		t.Errorf("big file: expected ErrTooLarge, got %v", err)
	}
	data, err := s.DownloadFile(ctx, srv.URL+"/data.csv")
	if err != nil || string(data) != "value\n1\n2\n" {
		t.Errorf("download = %q, %v", data, err)
	}
	if _, err := s.FetchSnapshot(ctx, "file:///etc/passwd"); !errors.Is(err, horosafe.ErrUnsafeScheme) {
		t.Errorf("file url: expected ErrUnsafeScheme, got %v", err)
	}
}

func TestSession_DefaultValidatorBlocksLoopback(t *testing.T) {
	srv := newQuizServer(t)
	s := New(Config{Mode: ModeHTTP, Logger: quietLogger}).NewSession()
	if _, err := s.DownloadFile(context.Background(), srv.URL+"/data.csv"); !errors.Is(err, horosafe.ErrSSRF) {
		t.Fatalf("expected ErrSSRF, got %v", err)
	}
}

func TestSession_CookiesIsolated(t *testing.T) {
	// WHAT: Cookies persist within a session and never leak to another one.
	srv := newQuizServer(t)
	f := New(Config{Mode: ModeHTTP, Logger: quietLogger, URLValidator: horosafe.SchemeOnly})
	a, b := f.NewSession(), f.NewSession()

	a.FetchSnapshot(context.Background(), srv.URL+"/static")
	if n := len(a.client.Jar.Cookies(mustParse(t, srv.URL))); n != 1 {
		t.Fatalf("session a cookies = %d, want 1", n)
	}
	if n := len(b.client.Jar.Cookies(mustParse(t, srv.URL))); n != 0 {
		t.Fatalf("session b cookies = %d, want 0", n)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "HTTP": ModeHTTP, " browser ": ModeBrowser, "auto": ModeAuto} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("chrome"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestFetcher_HTTPModeStart(t *testing.T) {
	f := New(Config{Mode: ModeHTTP, Logger: quietLogger})
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.BrowserAvailable() {
		t.Fatal("http mode should not start a browser")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}
