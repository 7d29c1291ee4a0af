package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestBackoffStopsOnFatalError(t *testing.T) {
	b := DefaultBackoff()
	b.Sleep = func(context.Context, time.Duration) error { return nil }

	fatal := errors.New("fatal")
	attempts, err := b.Do(context.Background(), isTransient, func(attempt int) error {
		if attempt == 2 {
			return fatal
		}
		return errTransient
	})
	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, err, fatal)
}

func TestBackoffStopsWhenContextEndsDuringWait(t *testing.T) {
	b := DefaultBackoff()
	b.Sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	attempts, err := b.Do(context.Background(), isTransient, func(int) error { return errTransient })
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errTransient, "the last attempt's error is reported")
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDeadLetterSinksJoinErrors(t *testing.T) {
	ok := &memSink{}
	sinks := DeadLetterSinks{ok, nil, failingSink{}}
	err := sinks.PutDeadLetter(context.Background(), DeadLetter{ID: "1"})
	assert.Error(t, err)
	assert.Len(t, ok.letters, 1, "a failing sink does not hide the others")
}

type failingSink struct{}

func (failingSink) PutDeadLetter(context.Context, DeadLetter) error { return errors.New("down") }
