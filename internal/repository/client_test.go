package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   string
}

type fakeRepo struct {
	mu       sync.Mutex
	requests []recorded
	status   map[string]int
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{r.Method, r.URL.Path, r.Header.Clone(), string(body)})
	status := f.status[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != "fedoraAdmin" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method == http.MethodGet && status == http.StatusOK {
		_, _ = io.WriteString(w, "<mods:mods/>")
	}
	if status >= 400 {
		_, _ = io.WriteString(w, "nope")
	}
}

func newTestClient(t *testing.T, status map[string]int, opts Options) (*Client, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{status: status}
	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)

	opts.FedoraURL = srv.URL + "/fedora/"
	opts.SwordURL = srv.URL + "/sword"
	opts.User = "fedoraAdmin"
	opts.Password = "secret"
	return New(opts), repo
}

func TestDatastream(t *testing.T) {
	client, repo := newTestClient(t, nil, Options{})

	data, err := client.Datastream(context.Background(), "qucosa:4711", "MODS")
	require.NoError(t, err)
	assert.Equal(t, "<mods:mods/>", string(data))
	require.Len(t, repo.requests, 1)
	assert.Equal(t, "/fedora/objects/qucosa:4711/datastreams/MODS/content", repo.requests[0].path)
}

func TestDatastreamNotFound(t *testing.T) {
	client, _ := newTestClient(t, map[string]int{
		"GET /fedora/objects/qucosa:1/datastreams/SLUB-INFO/content": http.StatusNotFound,
	}, Options{})

	_, err := client.Datastream(context.Background(), "qucosa:1", "SLUB-INFO")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepositUpdate(t *testing.T) {
	client, repo := newTestClient(t, nil, Options{UseSlug: true})

	err := client.Deposit(context.Background(), Deposit{
		PID:         "qucosa:4711",
		Collection:  "qucosa",
		OnBehalfOf:  "slub",
		NoOp:        true,
		ContentType: "application/vnd.qucosa.mets+xml",
		Package:     []byte("<mets/>"),
	})
	require.NoError(t, err)
	require.Len(t, repo.requests, 1)

	req := repo.requests[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/sword/qucosa/qucosa:4711", req.path)
	assert.Equal(t, "<mets/>", req.body)
	assert.Equal(t, "slub", req.header.Get("X-On-Behalf-Of"))
	assert.Equal(t, "true", req.header.Get("X-No-Op"))
	assert.Equal(t, "application/vnd.qucosa.mets+xml", req.header.Get("Content-Type"))
	assert.Equal(t, "qucosa:4711", req.header.Get("Slug"))
}

func TestDepositInitialPurgesFirst(t *testing.T) {
	client, repo := newTestClient(t, map[string]int{
		"DELETE /sword/qucosa/qucosa:4711": http.StatusNotFound,
		"POST /sword/qucosa":               http.StatusCreated,
	}, Options{Purge: true})

	err := client.Deposit(context.Background(), Deposit{
		PID:         "qucosa:4711",
		Collection:  "qucosa",
		ContentType: "application/vnd.qucosa.mets+xml",
		Package:     []byte("<mets/>"),
		Initial:     true,
	})
	require.NoError(t, err)
	require.Len(t, repo.requests, 2)
	assert.Equal(t, http.MethodDelete, repo.requests[0].method)
	assert.Equal(t, http.MethodPost, repo.requests[1].method)
	assert.Equal(t, "/sword/qucosa", repo.requests[1].path)
	assert.Empty(t, repo.requests[1].header.Get("X-No-Op"))
	assert.Empty(t, repo.requests[1].header.Get("Slug"))
}

func TestDepositErrorsClassified(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		client, _ := newTestClient(t, map[string]int{"PUT /sword/c/qucosa:1": tt.status}, Options{})
		err := client.Deposit(context.Background(), Deposit{PID: "qucosa:1", Collection: "c", Package: []byte("x")})

		var re *RemoteError
		require.True(t, errors.As(err, &re), "status %d", tt.status)
		assert.Equal(t, tt.status, re.Status)
		assert.Equal(t, "nope", re.Body)
		assert.Equal(t, tt.retryable, IsRetryable(err), "status %d", tt.status)
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(Options{SwordURL: srv.URL})
	err := client.Deposit(context.Background(), Deposit{PID: "qucosa:1", Collection: "c"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCancelledContextIsNotRetryable(t *testing.T) {
	client, _ := newTestClient(t, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Datastream(ctx, "qucosa:1", "MODS")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.ErrorIs(t, err, context.Canceled)
}
