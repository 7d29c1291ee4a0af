package pipeline

import (
	"context"
	"sync"

	"github.com/slub/qucosa-migrate/internal/bulk"
	"github.com/slub/qucosa-migrate/internal/id"
)

// Batch runs a pipeline over a list of record ids.
type Batch struct {
	Pipeline *Pipeline
	Jobs     int
	// OnResult is called once per record as soon as it is done.
	OnResult func(Result)
	// ShowProgress renders a progress line on a terminal.
	ShowProgress bool
}

// Run processes every id. Results are returned in input order together
// with the bulk summary; failed records count as failed items.
func (b *Batch) Run(ctx context.Context, ids []string) ([]Result, *bulk.Result) {
	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(ids))
	)

	op := &bulk.Operation{
		Jobs:            b.Jobs,
		ContinueOnError: true,
		ShowProgress:    b.ShowProgress,
	}
	summary := op.Execute(ctx, ids, func(ctx context.Context, docID string) error {
		res := b.Pipeline.Process(ctx, docID)
		mu.Lock()
		results[docID] = res
		mu.Unlock()
		if b.OnResult != nil {
			b.OnResult(res)
		}
		if res.Outcome == OutcomeFailed {
			return res.Err
		}
		return nil
	})

	ordered := make([]Result, 0, len(ids))
	for _, docID := range ids {
		res, ok := results[docID]
		if !ok {
			// never started, e.g. the batch was cancelled
			res = Result{ID: docID, PID: id.FormatPID(docID), Outcome: OutcomeFailed, Reason: "not started", Err: ctx.Err()}
			if b.OnResult != nil {
				b.OnResult(res)
			}
		}
		ordered = append(ordered, res)
	}
	return ordered, summary
}
