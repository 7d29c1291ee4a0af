package pipeline

import (
	"context"
	"errors"
	"time"
)

// DeadLetter is a record whose deposit failed for good. The package is
// kept so the deposit can be replayed.
type DeadLetter struct {
	RunID    string
	ID       string
	PID      string
	Attempts int
	Error    string
	Package  []byte
	FailedAt time.Time
}

// DeadLetterSink receives dead letters. Implementations must be safe for
// concurrent use.
type DeadLetterSink interface {
	PutDeadLetter(ctx context.Context, dl DeadLetter) error
}

// DeadLetterSinks fans a dead letter out to every sink.
type DeadLetterSinks []DeadLetterSink

func (s DeadLetterSinks) PutDeadLetter(ctx context.Context, dl DeadLetter) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.PutDeadLetter(ctx, dl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
