// Package repository talks to the target repository: datastream reads go
// to the Fedora REST API, deposits go to the SWORD endpoint.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the object or datastream does not exist.
var ErrNotFound = errors.New("datastream not found")

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 512
)

// RemoteError is a failed call to the repository. Retryable is set for
// network failures and server side (5xx) errors.
type RemoteError struct {
	Op        string
	Status    int
	Body      string
	Retryable bool
	Err       error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a repository error worth retrying.
func IsRetryable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Retryable
}

// Options configures a Client.
type Options struct {
	FedoraURL string
	SwordURL  string
	User      string
	Password  string
	// UseSlug sends the object id as Slug header on deposit so the
	// repository reuses it instead of minting a new one.
	UseSlug bool
	// Purge deletes an existing object before a first-time deposit.
	Purge   bool
	Timeout time.Duration
}

// Deposit is one package submission.
type Deposit struct {
	PID         string
	Collection  string
	OnBehalfOf  string
	NoOp        bool
	ContentType string
	Package     []byte
	// Initial creates the object instead of updating it.
	Initial bool
}

// Client is an HTTP client for the repository.
type Client struct {
	opts Options
	http *http.Client
}

// New creates a client. A zero timeout selects the default.
func New(opts Options) *Client {
	opts.FedoraURL = strings.TrimRight(opts.FedoraURL, "/")
	opts.SwordURL = strings.TrimRight(opts.SwordURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{opts: opts, http: &http.Client{Timeout: opts.Timeout}}
}

// Datastream returns the current content of a datastream.
func (c *Client) Datastream(ctx context.Context, pid, dsid string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/objects/%s/datastreams/%s/content",
		c.opts.FedoraURL, url.PathEscape(pid), url.PathEscape(dsid))
	op := fmt.Sprintf("get %s/%s", pid, dsid)

	resp, err := c.do(ctx, op, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, statusError(op, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Retryable: true, Err: err}
	}
	return data, nil
}

// Deposit submits a package. Updates are sent with PUT to the object,
// first-time deposits with POST to the collection, preceded by a purge
// if configured.
func (c *Client) Deposit(ctx context.Context, d Deposit) error {
	if d.PID == "" || d.Collection == "" {
		return fmt.Errorf("deposit requires pid and collection")
	}
	collection := c.opts.SwordURL + "/" + url.PathEscape(d.Collection)
	object := collection + "/" + url.PathEscape(d.PID)

	if d.Initial && c.opts.Purge && !d.NoOp {
		if err := c.purge(ctx, d, object); err != nil {
			return err
		}
	}

	method, endpoint := http.MethodPut, object
	if d.Initial {
		method, endpoint = http.MethodPost, collection
	}

	header := http.Header{}
	header.Set("Content-Type", d.ContentType)
	if d.OnBehalfOf != "" {
		header.Set("X-On-Behalf-Of", d.OnBehalfOf)
	}
	if d.NoOp {
		header.Set("X-No-Op", "true")
	}
	if c.opts.UseSlug {
		header.Set("Slug", d.PID)
	}

	op := fmt.Sprintf("deposit %s", d.PID)
	resp, err := c.do(ctx, op, method, endpoint, header, d.Package)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) purge(ctx context.Context, d Deposit, object string) error {
	op := fmt.Sprintf("purge %s", d.PID)
	header := http.Header{}
	if d.OnBehalfOf != "" {
		header.Set("X-On-Behalf-Of", d.OnBehalfOf)
	}
	resp, err := c.do(ctx, op, http.MethodDelete, object, header, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, header http.Header, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if c.opts.User != "" {
		req.SetBasicAuth(c.opts.User, c.opts.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// a cancelled caller is not a remote failure
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return nil, &RemoteError{Op: op, Retryable: true, Err: err}
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{
		Op:        op,
		Status:    resp.StatusCode,
		Body:      strings.TrimSpace(string(snippet)),
		Retryable: resp.StatusCode >= 500,
	}
}
