package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"solana-sandwich-bot/internal/domain"
)

type recordingArchiver struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return a.err
}

func (a *recordingArchiver) archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func readEvents(t *testing.T, path string) []domain.Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []domain.Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev domain.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func event(sig string) domain.Event {
	return domain.Event{
		Kind:      domain.EventSwapDecoded,
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Signature: sig,
		Swap:      &domain.SwapRecord{Signature: sig, Pool: "pool", AmountIn: 10_000, MinimumOut: 9_800},
	}
}

func TestWriter_AppendsJSONLines(t *testing.T) {
	w, err := NewWriter(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Emit(context.Background(), event("a"))
	w.Emit(context.Background(), event("b"))

	path := w.Path()
	if !strings.HasPrefix(filepath.Base(path), "events-") || !strings.HasSuffix(path, ".jsonl") {
		t.Errorf("unexpected file name %s", path)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := readEvents(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Signature != "a" || got[1].Signature != "b" {
		t.Errorf("order %s, %s", got[0].Signature, got[1].Signature)
	}
	if got[0].Swap == nil || got[0].Swap.AmountIn != 10_000 {
		t.Errorf("swap not round-tripped: %+v", got[0].Swap)
	}
	if w.Failures() != 0 {
		t.Errorf("failures = %d", w.Failures())
	}
}

func TestWriter_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	archiver := &recordingArchiver{}
	w, err := NewWriter(Options{Dir: dir, MaxBytes: 10, Archiver: archiver})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// Every line exceeds 10 bytes, so each event after the first rotates.
	for _, sig := range []string{"a", "b", "c"} {
		if err := w.Write(event(sig)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	paths := archiver.archived()
	if len(paths) != 3 {
		t.Fatalf("expected 3 archived files, got %d", len(paths))
	}
	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			t.Errorf("file %s archived twice", p)
		}
		seen[p] = true
		if evs := readEvents(t, p); len(evs) != 1 {
			t.Errorf("%s holds %d events", p, len(evs))
		}
	}
}

func TestWriter_RotatesByAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	archiver := &recordingArchiver{}
	w, err := NewWriter(Options{Dir: t.TempDir(), MaxAge: time.Hour, Archiver: archiver})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.now = func() time.Time { return now }

	_ = w.Write(event("a"))
	now = now.Add(30 * time.Minute)
	_ = w.Write(event("b"))
	first := w.Path()
	now = now.Add(31 * time.Minute)
	_ = w.Write(event("c"))

	if w.Path() == first {
		t.Fatal("expected rotation after MaxAge")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if evs := readEvents(t, first); len(evs) != 2 {
		t.Errorf("first file holds %d events, want 2", len(evs))
	}
	if n := len(archiver.archived()); n != 2 {
		t.Errorf("archived %d files, want 2", n)
	}
}

func TestWriter_ArchiveFailureKeepsFile(t *testing.T) {
	archiver := &recordingArchiver{err: errors.New("bucket gone")}
	w, err := NewWriter(Options{Dir: t.TempDir(), Archiver: archiver})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = w.Write(event("a"))
	path := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file removed after failed archive: %v", err)
	}
}

func TestWriter_Closed(t *testing.T) {
	w, err := NewWriter(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close on empty writer: %v", err)
	}
	if err := w.Write(event("a")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	w.Emit(context.Background(), event("b"))
	if w.Failures() != 1 {
		t.Errorf("failures = %d, want 1", w.Failures())
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewWriter_RequiresDir(t *testing.T) {
	if _, err := NewWriter(Options{}); err == nil {
		t.Error("expected error without dir")
	}
}

func TestS3Archiver_UploadsFile(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "events-20260101T000000Z-0001.jsonl")
	if err := os.WriteFile(file, []byte(`{"kind":"outcome"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := NewS3Archiver(context.Background(), S3Config{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "journal",
		Prefix:         "sandwich/events",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
		RemoveLocal:    true,
	})
	if err != nil {
		t.Fatalf("NewS3Archiver: %v", err)
	}
	if err := a.Archive(context.Background(), file); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method %s", method)
	}
	if path != "/journal/sandwich/events/events-20260101T000000Z-0001.jsonl" {
		t.Errorf("path %s", path)
	}
	if !strings.Contains(body, `{"kind":"outcome"}`) {
		t.Errorf("body %q", body)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("expected local file removed, stat err %v", err)
	}
}

func TestNewS3Archiver_Validation(t *testing.T) {
	if _, err := NewS3Archiver(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewS3Archiver(context.Background(), S3Config{Bucket: "b"}); err == nil {
		t.Error("expected error without region")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		ssl  bool
		want string
	}{
		{"https://r2.example.com", false, "https://r2.example.com"},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal", true, "https://minio.internal"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.ssl); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.ssl, got, tt.want)
		}
	}
}
