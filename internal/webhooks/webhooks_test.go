package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/slub/qucosa-migrate/internal/pipeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeWebhookURLs(t *testing.T) {
	urls := []string{
		"http://example.com/hook/{document_id}",
		"ftp://invalid.example.com/hook",
		"http://example.com/hook/{document_id}/",
		"  ",
		"https://example.com/other/",
	}
	got := normalizeWebhookURLs(urls, quietLogger())
	want := []string{
		"http://example.com/hook/{document_id}",
		"https://example.com/other",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPutDeadLetterPostsPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		paths    []string
		payloads []Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New([]string{srv.URL + "/dl/{document_id}", srv.URL + "/all"}, quietLogger())
	err := n.PutDeadLetter(context.Background(), pipeline.DeadLetter{
		RunID:    "run-1",
		ID:       "4711",
		PID:      "qucosa:4711",
		Attempts: 5,
		Error:    "status 503",
		Package:  []byte("<mets/>"),
		FailedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PutDeadLetter failed: %v", err)
	}

	sort.Strings(paths)
	if !reflect.DeepEqual(paths, []string{"/all", "/dl/4711"}) {
		t.Errorf("unexpected paths %v", paths)
	}
	p := payloads[0]
	if p.Event != "dead_letter" || p.PID != "qucosa:4711" || p.Attempts != 5 || p.FailedAt != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestPutDeadLetterIgnoresDeliveryFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New([]string{srv.URL}, quietLogger())
	if err := n.PutDeadLetter(context.Background(), pipeline.DeadLetter{ID: "1"}); err != nil {
		t.Errorf("delivery failures must not fail the sink: %v", err)
	}
}
