// Package pipeline drives the migration of single records: fetch the
// source, fetch both target documents, map, package and deposit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/slub/qucosa-migrate/internal/deposit"
	"github.com/slub/qucosa-migrate/internal/diff"
	"github.com/slub/qucosa-migrate/internal/id"
	"github.com/slub/qucosa-migrate/internal/mapping"
	"github.com/slub/qucosa-migrate/internal/repository"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

// MaxConcurrentDeposits bounds deposits in flight across all records.
const MaxConcurrentDeposits = 5

// Outcome is the final state of one record.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Repository is the part of the repository client the pipeline uses.
type Repository interface {
	Datastream(ctx context.Context, pid, dsid string) ([]byte, error)
	Deposit(ctx context.Context, d repository.Deposit) error
}

// Options are the per-run settings.
type Options struct {
	Collection string
	OnBehalfOf string
	NoOp       bool
	// Discard ignores existing target documents and maps onto templates.
	Discard bool
	// Initial marks a first-time migration: both documents are mapped onto
	// templates and deposited with provenance and file locations.
	Initial bool
	// Diff renders a unified diff of each changed document.
	Diff    bool
	Mapping mapping.Options
}

// Result reports what happened to one record.
type Result struct {
	ID       string
	PID      string
	Outcome  Outcome
	Reason   string
	Mods     bool
	Slub     bool
	Attempts int
	Diffs    map[string]string
	Err      error
}

// Pipeline processes records. It is safe for concurrent use; all records
// share one deposit throttle.
type Pipeline struct {
	source      source.Reader
	repo        Repository
	packager    *deposit.Builder
	deadLetters DeadLetterSink
	logger      *slog.Logger
	backoff     Backoff
	throttle    *semaphore.Weighted
	opts        Options
	mappers     []mapping.Mapper
	runID       string
	now         func() time.Time
}

// Config wires a Pipeline. Source, Repository and Packager are required.
type Config struct {
	Source      source.Reader
	Repository  Repository
	Packager    *deposit.Builder
	DeadLetters DeadLetterSink
	Logger      *slog.Logger
	Backoff     *Backoff
	// Throttle is shared between pipelines of one process; nil creates a
	// new one of MaxConcurrentDeposits.
	Throttle *semaphore.Weighted
	RunID    string
	Options  Options
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		source:      cfg.Source,
		repo:        cfg.Repository,
		packager:    cfg.Packager,
		deadLetters: cfg.DeadLetters,
		logger:      cfg.Logger,
		backoff:     DefaultBackoff(),
		throttle:    cfg.Throttle,
		opts:        cfg.Options,
		mappers:     mapping.Mappers(cfg.Options.Mapping),
		runID:       cfg.RunID,
		now:         time.Now,
	}
	if cfg.Backoff != nil {
		p.backoff = *cfg.Backoff
	}
	if p.throttle == nil {
		p.throttle = semaphore.NewWeighted(MaxConcurrentDeposits)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// Process migrates one record. Failures are reported in the result, never
// returned, so one record cannot abort a batch.
func (p *Pipeline) Process(ctx context.Context, docID string) Result {
	pid := id.FormatPID(docID)
	res := Result{ID: docID, PID: pid}
	log := p.logger.With("id", docID, "pid", pid)

	fail := func(stage string, err error) Result {
		res.Outcome = OutcomeFailed
		res.Reason = stage
		res.Err = err
		log.Error("record failed", "stage", stage, "err", err)
		return res
	}

	rec, err := p.source.Get(ctx, docID)
	if errors.Is(err, source.ErrNotFound) {
		log.Info("source record not found")
		res.Outcome = OutcomeSkipped
		res.Reason = "source not found"
		return res
	}
	if err != nil {
		return fail("fetch source", err)
	}

	mods, slub, err := p.fetchTargets(ctx, pid, log)
	if err != nil {
		return fail("fetch targets", err)
	}
	var before map[string][]byte
	if p.opts.Diff {
		if before, err = encodeAll(mods, slub); err != nil {
			return fail("encode", err)
		}
	}

	changes, err := mapping.Apply(rec, mods, slub, p.mappers)
	if err != nil {
		return fail("map", err)
	}
	res.Mods, res.Slub = changes.Mods(), changes.Slub()

	if p.opts.Diff {
		if res.Diffs, err = diffAll(before, mods, slub); err != nil {
			return fail("diff", err)
		}
	}

	if !changes.Any() && !p.opts.Initial {
		log.Info("no changes, skipping deposit")
		res.Outcome = OutcomeSkipped
		res.Reason = "unchanged"
		return res
	}

	in := deposit.Input{PID: pid, Initial: p.opts.Initial, Record: rec}
	if changes.Mods() || p.opts.Initial {
		in.Mods = mods
	}
	if changes.Slub() || p.opts.Initial {
		in.Slub = slub
	}
	pkg, err := p.packager.Build(in)
	if err != nil {
		return fail("package", err)
	}

	attempts, err := p.deposit(ctx, pid, pkg, log)
	res.Attempts = attempts
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// abandoned while waiting for a deposit slot; nothing was sent
		return fail("deposit", err)
	}
	if err != nil {
		p.deadLetter(ctx, res, pkg, attempts, err, log)
		return fail("deposit", err)
	}

	log.Info("record migrated", "mods", res.Mods, "slub", res.Slub, "attempts", attempts)
	res.Outcome = OutcomeMigrated
	return res
}

// fetchTargets fetches both target documents concurrently.
func (p *Pipeline) fetchTargets(ctx context.Context, pid string, log *slog.Logger) (mods, slub *xmltree.Node, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mods, err = p.fetchTarget(gctx, pid, schema.DSMods, log)
		return err
	})
	g.Go(func() error {
		var err error
		slub, err = p.fetchTarget(gctx, pid, schema.DSSlub, log)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return mods, slub, nil
}

func (p *Pipeline) fetchTarget(ctx context.Context, pid, dsid string, log *slog.Logger) (*xmltree.Node, error) {
	if p.opts.Discard || p.opts.Initial {
		return schema.Template(dsid), nil
	}
	data, err := p.repo.Datastream(ctx, pid, dsid)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("datastream not found, using template", "dsid", dsid)
		return schema.Template(dsid), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", dsid, err)
	}
	doc, err := xmltree.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", dsid, err)
	}
	if want := schema.Template(dsid).Name; doc.Name != want {
		return nil, fmt.Errorf("%s: unexpected root element {%s}%s", dsid, doc.Name.Space, doc.Name.Local)
	}
	return doc, nil
}

// deposit submits the package under the global throttle. The slot is held
// for one attempt only, so backoff waits do not block other records. A
// started attempt is not cancelled with ctx.
func (p *Pipeline) deposit(ctx context.Context, pid string, pkg []byte, log *slog.Logger) (int, error) {
	d := repository.Deposit{
		PID:         pid,
		Collection:  p.opts.Collection,
		OnBehalfOf:  p.opts.OnBehalfOf,
		NoOp:        p.opts.NoOp,
		ContentType: deposit.ContentType,
		Package:     pkg,
		Initial:     p.opts.Initial,
	}
	return p.backoff.Do(ctx, repository.IsRetryable, func(attempt int) error {
		if err := p.throttle.Acquire(ctx, 1); err != nil {
			return err
		}
		defer p.throttle.Release(1)

		err := p.repo.Deposit(context.WithoutCancel(ctx), d)
		if err != nil {
			log.Warn("deposit attempt failed", "attempt", attempt, "err", err)
		}
		return err
	})
}

func (p *Pipeline) deadLetter(ctx context.Context, res Result, pkg []byte, attempts int, cause error, log *slog.Logger) {
	if p.deadLetters == nil {
		return
	}
	dl := DeadLetter{
		RunID:    p.runID,
		ID:       res.ID,
		PID:      res.PID,
		Attempts: attempts,
		Error:    cause.Error(),
		Package:  pkg,
		FailedAt: p.now().UTC(),
	}
	if err := p.deadLetters.PutDeadLetter(context.WithoutCancel(ctx), dl); err != nil {
		log.Error("dead letter not stored", "err", err)
		return
	}
	log.Warn("record dead-lettered", "attempts", attempts)
}

func encodeAll(mods, slub *xmltree.Node) (map[string][]byte, error) {
	out := make(map[string][]byte, 2)
	for dsid, doc := range map[string]*xmltree.Node{schema.DSMods: mods, schema.DSSlub: slub} {
		data, err := xmltree.Marshal(doc, schema.Prefixes)
		if err != nil {
			return nil, err
		}
		out[dsid] = data
	}
	return out, nil
}

func diffAll(before map[string][]byte, mods, slub *xmltree.Node) (map[string]string, error) {
	after, err := encodeAll(mods, slub)
	if err != nil {
		return nil, err
	}
	diffs := map[string]string{}
	for dsid, data := range after {
		d, err := diff.Unified(dsid, before[dsid], data, 3)
		if err != nil {
			return nil, err
		}
		if d != "" {
			diffs[dsid] = d
		}
	}
	return diffs, nil
}
