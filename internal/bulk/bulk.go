// Package bulk runs a function over a list of items with a bounded number
// of workers and collects per-item failures.
package bulk

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Ordered         bool
	ShowProgress    bool
	// Report is called once per finished item, from the worker goroutine.
	Report func(item string, err error)
	// Progress receives the progress line; defaults to stderr.
	Progress io.Writer
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item
type ItemFunc func(ctx context.Context, item string) error

// Execute runs fn for every item. Items not started before ctx is done
// are recorded as failed with the context error.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{TotalItems: len(items)}
	if len(items) == 0 {
		return result
	}

	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if op.Ordered || jobs == 1 {
		return op.executeSequential(ctx, items, fn)
	}
	return op.executeParallel(ctx, items, fn, jobs)
}

func (op *Operation) executeSequential(ctx context.Context, items []string, fn ItemFunc) *Result {
	c := &collector{op: op, result: &Result{TotalItems: len(items)}}
	progress := op.startProgress(len(items), 1)
	defer progress.stop()

	for _, item := range items {
		err := ctx.Err()
		if err == nil {
			err = fn(ctx, item)
		}
		c.finish(item, err)
		progress.done(err)

		if err != nil && !op.ContinueOnError {
			break
		}
	}
	return c.result
}

func (op *Operation) executeParallel(ctx context.Context, items []string, fn ItemFunc, workers int) *Result {
	c := &collector{op: op, result: &Result{TotalItems: len(items)}}
	progress := op.startProgress(len(items), workers)
	defer progress.stop()

	var stopped atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, item := range items {
		if !op.ContinueOnError && stopped.Load() {
			break
		}
		item := item
		g.Go(func() error {
			if !op.ContinueOnError && stopped.Load() {
				return nil
			}
			err := ctx.Err()
			if err == nil {
				err = fn(ctx, item)
			}
			c.finish(item, err)
			progress.done(err)
			if err != nil {
				stopped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	return c.result
}

type collector struct {
	op     *Operation
	mu     sync.Mutex
	result *Result
}

func (c *collector) finish(item string, err error) {
	c.mu.Lock()
	if err != nil {
		c.result.Failed++
		c.result.Errors = append(c.result.Errors, ItemError{Item: item, Error: err})
	} else {
		c.result.Succeeded++
	}
	c.mu.Unlock()
	if c.op.Report != nil {
		c.op.Report(item, err)
	}
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	if r.Failed == 0 {
		fmt.Fprintf(w, "\n✓ All %d records succeeded\n", r.TotalItems)
	} else if r.Succeeded == 0 {
		fmt.Fprintf(w, "\n✗ All %d records failed\n", r.TotalItems)
	} else {
		fmt.Fprintf(w, "\n⚠ Partial success: %d succeeded, %d failed (out of %d)\n",
			r.Succeeded, r.Failed, r.TotalItems)
	}

	errs := r.Errors
	if len(errs) > 10 {
		fmt.Fprintf(w, "\nShowing first 10 errors (of %d):\n", len(errs))
		errs = errs[:10]
	} else if len(errs) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
	}
	for _, e := range errs {
		fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
	}
}

type progress struct {
	w         io.Writer
	total     int
	workers   int
	completed atomic.Int32
	failed    atomic.Int32
	quit      chan struct{}
	wg        sync.WaitGroup
}

func (op *Operation) startProgress(total, workers int) *progress {
	p := &progress{total: total, workers: workers}
	if !op.ShowProgress {
		return p
	}
	p.w = op.Progress
	if p.w == nil {
		if !isatty(os.Stderr) {
			return p
		}
		p.w = os.Stderr
	}
	p.quit = make(chan struct{})
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-p.quit:
				return
			case <-ticker.C:
				p.render()
			}
		}
	}()
	return p
}

func (p *progress) done(err error) {
	p.completed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}
}

func (p *progress) render() {
	c := int(p.completed.Load())
	f := int(p.failed.Load())
	pct := c * 100 / p.total
	fmt.Fprintf(p.w, "\rProcessing with %d workers... [%s] %d/%d (✓ %d ✗ %d)",
		p.workers, progressBar(pct, 20), c, p.total, c-f, f)
}

func (p *progress) stop() {
	if p.quit == nil {
		return
	}
	close(p.quit)
	p.wg.Wait()
	fmt.Fprintf(p.w, "\r\033[K") // Clear line
}

// progressBar creates a simple ASCII progress bar
func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// isatty checks if the file descriptor is a terminal
func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
