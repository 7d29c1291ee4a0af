package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slub/qucosa-migrate/internal/pipeline"
	"github.com/slub/qucosa-migrate/internal/store"
	"github.com/slub/qucosa-migrate/internal/testutil"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.New(testutil.TempDB(t))

	require.NoError(t, s.Runs.Start(ctx, store.Run{ID: "run-1", Collection: "qucosa", OnBehalfOf: "slub", NoOp: true}))

	results := []pipeline.Result{
		{ID: "1", PID: "qucosa:1", Outcome: pipeline.OutcomeMigrated, Mods: true, Attempts: 1},
		{ID: "2", PID: "qucosa:2", Outcome: pipeline.OutcomeSkipped, Reason: "unchanged"},
		{ID: "3", PID: "qucosa:3", Outcome: pipeline.OutcomeFailed, Reason: "deposit", Attempts: 5, Err: errors.New("status 503")},
	}
	for _, r := range results {
		require.NoError(t, s.Runs.RecordOutcome(ctx, "run-1", r))
	}
	// a retried record replaces its earlier outcome
	require.NoError(t, s.Runs.RecordOutcome(ctx, "run-1", pipeline.Result{ID: "2", PID: "qucosa:2", Outcome: pipeline.OutcomeMigrated, Slub: true}))

	run, err := s.Runs.Finish(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Migrated)
	assert.Equal(t, 0, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.True(t, run.NoOp)
	assert.Equal(t, "slub", run.OnBehalfOf)
	assert.NotEmpty(t, run.FinishedAt)

	outcomes, err := s.Runs.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "status 503", outcomes[2].Error)
	assert.Equal(t, 5, outcomes[2].Attempts)
	assert.True(t, outcomes[1].Slub)

	runs, err := s.Runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	_, err = s.Runs.Finish(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeadLetters(t *testing.T) {
	ctx := context.Background()
	s := store.New(testutil.TempDB(t))

	var sink pipeline.DeadLetterSink = s.DeadLetters
	failedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.PutDeadLetter(ctx, pipeline.DeadLetter{
		RunID: "run-1", ID: "1", PID: "qucosa:1", Attempts: 5,
		Error: "deposit qucosa:1: status 503", Package: []byte("<mets/>"), FailedAt: failedAt,
	}))
	require.NoError(t, sink.PutDeadLetter(ctx, pipeline.DeadLetter{
		RunID: "run-2", ID: "2", PID: "qucosa:2", Attempts: 1,
		Error: "deposit qucosa:2: status 400", Package: []byte("<mets/>"), FailedAt: failedAt.Add(time.Hour),
	}))

	open, err := s.DeadLetters.List(ctx, store.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "1", open[0].DocumentID)
	assert.Equal(t, "2024-01-02T03:04:05Z", open[0].FailedAt)
	assert.Nil(t, open[0].Package)

	full, err := s.DeadLetters.Get(ctx, open[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "<mets/>", string(full.Package))

	require.NoError(t, s.DeadLetters.Resolve(ctx, open[0].ID))
	assert.ErrorIs(t, s.DeadLetters.Resolve(ctx, open[0].ID), store.ErrNotFound)

	open, err = s.DeadLetters.List(ctx, store.DeadLetterFilter{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "2", open[0].DocumentID)

	all, err := s.DeadLetters.List(ctx, store.DeadLetterFilter{All: true, RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ResolvedAt)

	_, err = s.DeadLetters.Get(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeadLetterPagination(t *testing.T) {
	ctx := context.Background()
	s := store.New(testutil.TempDB(t))

	// two share a timestamp so the id breaks the tie
	failedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{failedAt, failedAt, failedAt.Add(time.Minute)} {
		docID := string(rune('1' + i))
		require.NoError(t, s.DeadLetters.PutDeadLetter(ctx, pipeline.DeadLetter{
			RunID: "run", ID: docID, PID: "qucosa:" + docID, Attempts: 5, Error: "status 503", FailedAt: at,
		}))
	}

	var seen []string
	filter := store.DeadLetterFilter{Limit: 2}
	for page := 0; page < 3; page++ {
		letters, err := s.DeadLetters.List(ctx, filter)
		require.NoError(t, err)
		for _, dl := range letters {
			seen = append(seen, dl.DocumentID)
		}
		next := store.NextDeadLetterCursor(letters, filter.Limit)
		if next == nil {
			break
		}
		encoded, err := next.Encode()
		require.NoError(t, err)
		filter.After, err = store.DecodeDeadLetterCursor(encoded)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"1", "2", "3"}, seen)
}
