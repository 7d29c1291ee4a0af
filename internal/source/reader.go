package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("source record not found")

// Reader fetches source records by document id.
type Reader interface {
	Get(ctx context.Context, id string) (*Record, error)
}

// HTTPReader fetches records from the document server's web API at
// {BaseURL}/document/{id}.
type HTTPReader struct {
	BaseURL  string
	User     string
	Password string
	Client   *http.Client
}

// NewHTTPReader creates a reader with a default client timeout.
func NewHTTPReader(baseURL, user, password string) *HTTPReader {
	return &HTTPReader{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		User:     user,
		Password: password,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Get fetches and parses one record.
func (h *HTTPReader) Get(ctx context.Context, id string) (*Record, error) {
	endpoint := h.BaseURL + "/document/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if h.User != "" {
		req.SetBasicAuth(h.User, h.Password)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source record %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch source record %s: unexpected status %s", id, resp.Status)
	}

	rec, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse source record %s: %w", id, err)
	}
	return rec, nil
}

// DirReader reads records from <Dir>/<id>.xml.
type DirReader struct {
	Dir string
}

// Get reads and parses one record file.
func (d DirReader) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid document id: %q", id)
	}
	f, err := os.Open(filepath.Join(d.Dir, id+".xml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open source record %s: %w", id, err)
	}
	defer f.Close()

	rec, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse source record %s: %w", id, err)
	}
	return rec, nil
}
