// Package webhooks notifies external endpoints about dead-lettered
// records.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/slub/qucosa-migrate/internal/pipeline"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 4
)

// Payload is the webhook payload for a dead letter. The package itself is
// not sent; it stays in the local store.
type Payload struct {
	Event      string `json:"event"`
	RunID      string `json:"run_id"`
	DocumentID string `json:"document_id"`
	PID        string `json:"pid"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
	FailedAt   string `json:"failed_at"`
}

// Notifier posts dead letters to a set of URLs. It is a
// pipeline.DeadLetterSink; delivery failures are logged, not returned.
type Notifier struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

// New creates a notifier for the given URL templates. Invalid and
// duplicate URLs are dropped.
func New(urls []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webhooks")
	return &Notifier{
		urls:   normalizeWebhookURLs(urls, logger),
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// URLs returns the effective webhook URLs.
func (n *Notifier) URLs() []string {
	return n.urls
}

// PutDeadLetter notifies every URL and waits for the deliveries.
func (n *Notifier) PutDeadLetter(ctx context.Context, dl pipeline.DeadLetter) error {
	if len(n.urls) == 0 {
		return nil
	}
	payload := Payload{
		Event:      "dead_letter",
		RunID:      dl.RunID,
		DocumentID: dl.ID,
		PID:        dl.PID,
		Attempts:   dl.Attempts,
		Error:      dl.Error,
		FailedAt:   dl.FailedAt.UTC().Format(time.RFC3339),
	}
	targets := make([]string, 0, len(n.urls))
	for _, u := range n.urls {
		targets = append(targets, applyTemplate(u, payload))
	}
	n.dispatchURLs(ctx, targets, payload)
	return nil
}

func normalizeWebhookURLs(urls []string, logger *slog.Logger) []string {
	if len(urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(urls))
	var normalized []string

	for _, raw := range urls {
		trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
		if trimmed == "" {
			continue
		}
		// validate with placeholders filled so templated hosts still parse
		if !isValidWebhookURL(applyTemplate(trimmed, Payload{DocumentID: "0", PID: "qucosa:0", RunID: "run"})) {
			logger.Warn("skipping invalid webhook url", "url", trimmed)
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	result := strings.ReplaceAll(raw, "{document_id}", url.PathEscape(payload.DocumentID))
	result = strings.ReplaceAll(result, "{pid}", url.PathEscape(payload.PID))
	result = strings.ReplaceAll(result, "{run_id}", url.PathEscape(payload.RunID))
	return result
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func (n *Notifier) dispatchURLs(ctx context.Context, urls []string, payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to encode payload", "err", err)
		return
	}

	workers := defaultConcurrency
	if len(urls) < workers {
		workers = len(urls)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				if err := n.sendWebhook(ctx, endpoint, body); err != nil {
					n.logger.Warn("webhook delivery failed", "url", endpoint, "err", err)
				}
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()
}

func (n *Notifier) sendWebhook(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
