package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slub/qucosa-migrate/internal/deposit"
	"github.com/slub/qucosa-migrate/internal/mapping"
	"github.com/slub/qucosa-migrate/internal/repository"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

type memSource map[string]*source.Record

func (m memSource) Get(ctx context.Context, id string) (*source.Record, error) {
	rec, ok := m[id]
	if !ok {
		return nil, source.ErrNotFound
	}
	return rec, nil
}

type fakeRepo struct {
	mu          sync.Mutex
	streams     map[string][]byte
	depositErr  func(pid string, attempt int) error
	attempts    map[string]int
	deposits    []repository.Deposit
	hold        time.Duration
	inFlight    int
	maxInFlight int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{streams: map[string][]byte{}, attempts: map[string]int{}}
}

func (f *fakeRepo) Datastream(ctx context.Context, pid, dsid string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.streams[pid+"/"+dsid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return data, nil
}

func (f *fakeRepo) Deposit(ctx context.Context, d repository.Deposit) error {
	f.mu.Lock()
	f.attempts[d.PID]++
	attempt := f.attempts[d.PID]
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.hold > 0 {
		time.Sleep(f.hold)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.depositErr != nil {
		if err := f.depositErr(d.PID, attempt); err != nil {
			return err
		}
	}
	f.deposits = append(f.deposits, d)
	return nil
}

type memSink struct {
	mu      sync.Mutex
	letters []DeadLetter
}

func (m *memSink) PutDeadLetter(ctx context.Context, dl DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func fixture(t *testing.T) *source.Record {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "source", "testdata", "4711.xml"))
	require.NoError(t, err)
	defer f.Close()
	rec, err := source.Parse(f)
	require.NoError(t, err)
	return rec
}

func minimal(t *testing.T, id string) *source.Record {
	t.Helper()
	rec, err := source.Parse(strings.NewReader(fmt.Sprintf(
		`<Opus_Document Id="%s" Type="article" Language="eng"><TitleMain Language="eng" Value="Record %s"/></Opus_Document>`, id, id)))
	require.NoError(t, err)
	return rec
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) backoff() *Backoff {
	b := DefaultBackoff()
	b.Sleep = func(ctx context.Context, d time.Duration) error {
		r.mu.Lock()
		r.delays = append(r.delays, d)
		r.mu.Unlock()
		return nil
	}
	return &b
}

func newTestPipeline(src source.Reader, repo Repository, sink DeadLetterSink, backoff *Backoff, opts Options) *Pipeline {
	if backoff == nil {
		backoff = (&recordedSleeps{}).backoff()
	}
	return New(Config{
		Source:      src,
		Repository:  repo,
		Packager:    &deposit.Builder{NewID: func() string { return "pkg" }},
		DeadLetters: sink,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Backoff:     backoff,
		RunID:       "run-test",
		Options:     opts,
	})
}

func depositedPackage(t *testing.T, d repository.Deposit) *xmltree.Node {
	t.Helper()
	tree, err := xmltree.ParseBytes(d.Package)
	require.NoError(t, err)
	return tree
}

func TestMissingTargetUsesTemplateAndIsDirty(t *testing.T) {
	repo := newFakeRepo()
	// only the extension document exists, already in sync
	src := fixture(t)
	slub := schema.NewSlub()
	_, err := mapping.Apply(src, schema.NewMods(), slub, mapping.Mappers(mapping.Options{}))
	require.NoError(t, err)
	data, err := xmltree.Marshal(slub, schema.Prefixes)
	require.NoError(t, err)
	repo.streams["qucosa:4711/SLUB-INFO"] = data

	p := newTestPipeline(memSource{"4711": src}, repo, &memSink{}, nil, Options{Collection: "qucosa"})
	res := p.Process(context.Background(), "4711")

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeMigrated, res.Outcome)
	assert.True(t, res.Mods)
	assert.False(t, res.Slub)

	require.Len(t, repo.deposits, 1)
	d := repo.deposits[0]
	assert.Equal(t, "qucosa:4711", d.PID)
	assert.Equal(t, deposit.ContentType, d.ContentType)
	assert.False(t, d.Initial)

	pkg := depositedPackage(t, d)
	assert.NotNil(t, pkg.Child(schema.Mets("dmdSec")))
	assert.Nil(t, pkg.Child(schema.Mets("amdSec")), "unchanged extension must not be embedded")
}

func TestUnchangedRecordIsSkipped(t *testing.T) {
	repo := newFakeRepo()
	src := fixture(t)
	mods, slub := schema.NewMods(), schema.NewSlub()
	_, err := mapping.Apply(src, mods, slub, mapping.Mappers(mapping.Options{}))
	require.NoError(t, err)
	for dsid, doc := range map[string]*xmltree.Node{schema.DSMods: mods, schema.DSSlub: slub} {
		data, err := xmltree.Marshal(doc, schema.Prefixes)
		require.NoError(t, err)
		repo.streams["qucosa:4711/"+dsid] = data
	}

	p := newTestPipeline(memSource{"4711": src}, repo, &memSink{}, nil, Options{Collection: "qucosa", Diff: true})
	res := p.Process(context.Background(), "4711")

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "unchanged", res.Reason)
	assert.Empty(t, res.Diffs)
	assert.Empty(t, repo.deposits)
}

func TestDiscardIgnoresExistingTargets(t *testing.T) {
	repo := newFakeRepo()
	repo.streams["qucosa:1/MODS"] = []byte("not even xml")

	p := newTestPipeline(memSource{"1": minimal(t, "1")}, repo, &memSink{}, nil, Options{Collection: "c", Discard: true, Diff: true})
	res := p.Process(context.Background(), "1")

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeMigrated, res.Outcome)
	assert.Contains(t, res.Diffs[schema.DSMods], "+  <mods:titleInfo")
}

func TestBrokenTargetFailsRecord(t *testing.T) {
	repo := newFakeRepo()
	repo.streams["qucosa:1/MODS"] = []byte("<other/>")

	p := newTestPipeline(memSource{"1": minimal(t, "1")}, repo, &memSink{}, nil, Options{Collection: "c"})
	res := p.Process(context.Background(), "1")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "fetch targets", res.Reason)
	assert.Empty(t, repo.deposits)
}

func TestSourceNotFoundIsSkipped(t *testing.T) {
	p := newTestPipeline(memSource{}, newFakeRepo(), &memSink{}, nil, Options{Collection: "c"})
	res := p.Process(context.Background(), "404")

	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.Equal(t, "source not found", res.Reason)
	assert.NoError(t, res.Err)
}

func TestMappingErrorFailsOnlyThatRecord(t *testing.T) {
	bad, err := source.Parse(strings.NewReader(`<Opus_Document Id="2" Type="mystery"/>`))
	require.NoError(t, err)
	repo := newFakeRepo()
	sink := &memSink{}

	p := newTestPipeline(memSource{"1": minimal(t, "1"), "2": bad}, repo, sink, nil, Options{Collection: "c"})
	results, summary := (&Batch{Pipeline: p, Jobs: 2}).Run(context.Background(), []string{"1", "2"})

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeMigrated, results[0].Outcome)
	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.Equal(t, "map", results[1].Reason)
	var mapErr *mapping.Error
	assert.ErrorAs(t, results[1].Err, &mapErr)
	assert.Empty(t, sink.letters, "mapping failures are not dead-lettered")
	assert.NotZero(t, summary.ExitCode())
}

func TestExhaustedRetriesAreDeadLettered(t *testing.T) {
	repo := newFakeRepo()
	repo.depositErr = func(pid string, attempt int) error {
		if pid == "qucosa:1" {
			return &repository.RemoteError{Op: "deposit", Status: http.StatusServiceUnavailable, Retryable: true}
		}
		return nil
	}
	sink := &memSink{}
	sleeps := &recordedSleeps{}

	p := newTestPipeline(memSource{"1": minimal(t, "1"), "2": minimal(t, "2")}, repo, sink, sleeps.backoff(), Options{Collection: "c"})
	var reported []string
	var mu sync.Mutex
	batch := &Batch{Pipeline: p, Jobs: 1, OnResult: func(r Result) {
		mu.Lock()
		reported = append(reported, r.ID+" "+string(r.Outcome))
		mu.Unlock()
	}}
	results, summary := batch.Run(context.Background(), []string{"1", "2"})

	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, 5, results[0].Attempts)
	assert.Equal(t, 5, repo.attempts["qucosa:1"])
	assert.Equal(t, OutcomeMigrated, results[1].Outcome, "batch continues after a dead letter")
	assert.Equal(t, []string{"1 failed", "2 migrated"}, reported)

	require.Len(t, sink.letters, 1)
	dl := sink.letters[0]
	assert.Equal(t, "1", dl.ID)
	assert.Equal(t, "qucosa:1", dl.PID)
	assert.Equal(t, "run-test", dl.RunID)
	assert.Equal(t, 5, dl.Attempts)
	assert.NotEmpty(t, dl.Package)
	assert.Contains(t, dl.Error, "503")

	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second}, sleeps.delays)
	assert.Equal(t, 5, summary.ExitCode())
}

func TestFatalDepositErrorIsNotRetried(t *testing.T) {
	repo := newFakeRepo()
	repo.depositErr = func(string, int) error {
		return &repository.RemoteError{Op: "deposit", Status: http.StatusBadRequest}
	}
	sink := &memSink{}

	p := newTestPipeline(memSource{"1": minimal(t, "1")}, repo, sink, nil, Options{Collection: "c"})
	res := p.Process(context.Background(), "1")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, sink.letters, 1)
}

func TestRetryRecovers(t *testing.T) {
	repo := newFakeRepo()
	repo.depositErr = func(pid string, attempt int) error {
		if attempt < 3 {
			return &repository.RemoteError{Op: "deposit", Retryable: true}
		}
		return nil
	}
	sink := &memSink{}

	p := newTestPipeline(memSource{"1": minimal(t, "1")}, repo, sink, nil, Options{Collection: "c"})
	res := p.Process(context.Background(), "1")

	assert.Equal(t, OutcomeMigrated, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, sink.letters)
}

func TestDepositsAreThrottled(t *testing.T) {
	repo := newFakeRepo()
	repo.hold = 20 * time.Millisecond

	src := memSource{}
	var ids []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprint(i + 1)
		src[id] = minimal(t, id)
		ids = append(ids, id)
	}

	p := newTestPipeline(src, repo, &memSink{}, nil, Options{Collection: "c"})
	results, summary := (&Batch{Pipeline: p, Jobs: 20}).Run(context.Background(), ids)

	assert.Len(t, results, 20)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Len(t, repo.deposits, 20)
	assert.LessOrEqual(t, repo.maxInFlight, MaxConcurrentDeposits)
	assert.Greater(t, repo.maxInFlight, 1)
}

func TestInitialDepositEmbedsEverything(t *testing.T) {
	repo := newFakeRepo()
	p := newTestPipeline(memSource{"4711": fixture(t)}, repo, &memSink{}, nil, Options{Collection: "qucosa", Initial: true, OnBehalfOf: "slub"})
	res := p.Process(context.Background(), "4711")

	require.NoError(t, res.Err)
	require.Len(t, repo.deposits, 1)
	d := repo.deposits[0]
	assert.True(t, d.Initial)
	assert.Equal(t, "slub", d.OnBehalfOf)

	pkg := depositedPackage(t, d)
	for _, local := range []string{"metsHdr", "dmdSec", "amdSec", "fileSec", "structMap"} {
		assert.NotNil(t, pkg.Child(schema.Mets(local)), local)
	}
}

func TestCancelledBeforeDepositHasNoSideEffects(t *testing.T) {
	repo := newFakeRepo()
	sink := &memSink{}
	p := newTestPipeline(memSource{"1": minimal(t, "1")}, repo, sink, nil, Options{Collection: "c"})

	// take every slot so the record waits for the throttle
	require.NoError(t, p.throttle.Acquire(context.Background(), MaxConcurrentDeposits))
	defer p.throttle.Release(MaxConcurrentDeposits)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := p.Process(ctx, "1")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Empty(t, repo.deposits)
	assert.Empty(t, sink.letters)
}

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 48 * time.Second, time.Minute, time.Minute}
	for i, w := range want {
		assert.Equal(t, w, b.Delay(i+1), "attempt %d", i+1)
	}
}
