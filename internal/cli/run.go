package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/cli/appctx"
	"github.com/slub/qucosa-migrate/internal/config"
	"github.com/slub/qucosa-migrate/internal/deposit"
	"github.com/slub/qucosa-migrate/internal/idlist"
	"github.com/slub/qucosa-migrate/internal/mapping"
	"github.com/slub/qucosa-migrate/internal/pipeline"
	"github.com/slub/qucosa-migrate/internal/repository"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/store"
	"github.com/slub/qucosa-migrate/internal/webhooks"
)

var runCmd = &cobra.Command{
	Use:   "run [document-id...]",
	Short: "Migrate documents into the repository",
	Long: `Maps each source document onto its current MODS and SLUB documents and
deposits whatever changed. Documents are given as arguments, with --id, or
in an id list file (--ids, one id per line, # starts a comment).

One outcome line is printed per document. Deposits that keep failing are
stored as dead letters (see 'qucosa-migrate deadletters').

Exit codes: 0 all documents migrated or skipped, 5 some failed, 1 all failed
or the run could not start.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRun),
}

var (
	runCollection string
	runOwner      string
	runIDs        []string
	runIDFile     string
	runNoOp       bool
	runDiscard    bool
	runPurge      bool
	runSlug       bool
	runInitial    bool
	runJobs       int
	runDiff       bool
	runProgress   bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runCollection, "collection", "", "Target collection (overrides QM_COLLECTION)")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "Owner id sent as X-On-Behalf-Of (overrides QM_ON_BEHALF_OF)")
	runCmd.Flags().StringSliceVar(&runIDs, "id", nil, "Document id or pid to migrate (repeatable)")
	runCmd.Flags().StringVar(&runIDFile, "ids", "", "File with one document id per line")
	runCmd.Flags().BoolVar(&runNoOp, "noop", false, "Ask the repository to validate deposits without storing them")
	runCmd.Flags().BoolVar(&runDiscard, "discard", false, "Ignore existing MODS and SLUB documents and map onto empty ones")
	runCmd.Flags().BoolVar(&runPurge, "purge", false, "Delete existing objects before an initial deposit")
	runCmd.Flags().BoolVar(&runSlug, "slug", false, "Send the pid as Slug so the repository reuses it")
	runCmd.Flags().BoolVar(&runInitial, "initial", false, "First-time migration: deposit complete packages with provenance and files")
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Documents processed in parallel (overrides QM_JOBS)")
	runCmd.Flags().BoolVar(&runDiff, "diff", false, "Print a unified diff of each changed document")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Show a progress bar on the terminal")
}

func runRun(app *appctx.App, cmd *cobra.Command, args []string) error {
	cfg := app.Config
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return exitError(1, err)
	}

	ids, err := collectIDs(args, runIDs, runIDFile)
	if err != nil {
		return exitError(1, err)
	}
	if len(ids) == 0 {
		return exitError(1, fmt.Errorf("no document ids given (use arguments, --id or --ids)"))
	}

	aliases, err := cfg.LoadAliases()
	if err != nil {
		return exitError(1, err)
	}
	timeout, _ := cfg.Timeout()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger := app.Logger.With("run", runID)

	sinks := pipeline.DeadLetterSinks{app.Store.DeadLetters}
	if len(cfg.DeadLetterWebhooks) > 0 {
		notifier := webhooks.New(cfg.DeadLetterWebhooks, logger)
		logger.Debug("dead letter webhooks", "urls", notifier.URLs())
		sinks = append(sinks, notifier)
	}

	p := pipeline.New(pipeline.Config{
		Source: newSourceReader(cfg, timeout),
		Repository: repository.New(repository.Options{
			FedoraURL: cfg.FedoraURL,
			SwordURL:  cfg.SwordURL,
			User:      cfg.User,
			Password:  cfg.Password,
			UseSlug:   cfg.UseSlug,
			Purge:     cfg.Purge,
			Timeout:   timeout,
		}),
		Packager:    &deposit.Builder{Agent: cfg.Agent, FilesURL: cfg.FilesURL, RunID: runID},
		DeadLetters: sinks,
		Logger:      logger,
		RunID:       runID,
		Options: pipeline.Options{
			Collection: cfg.Collection,
			OnBehalfOf: cfg.OnBehalfOf,
			NoOp:       runNoOp,
			Discard:    runDiscard,
			Initial:    runInitial,
			Diff:       runDiff,
			Mapping: mapping.Options{
				Aliases:          aliases,
				Distributor:      cfg.Distributor,
				DistributorPlace: cfg.DistributorPlace,
			},
		},
	})

	if err := app.Store.Runs.Start(ctx, store.Run{
		ID:         runID,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		Collection: cfg.Collection,
		OnBehalfOf: cfg.OnBehalfOf,
		Initial:    runInitial,
		NoOp:       runNoOp,
	}); err != nil {
		return exitError(1, err)
	}
	logger.Info("run started", "documents", len(ids), "jobs", cfg.Jobs, "initial", runInitial, "noop", runNoOp)

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	batch := &pipeline.Batch{
		Pipeline:     p,
		Jobs:         cfg.Jobs,
		ShowProgress: runProgress,
		OnResult: func(res pipeline.Result) {
			// outcomes are recorded even when the run is being cancelled
			if err := app.Store.Runs.RecordOutcome(context.WithoutCancel(ctx), runID, res); err != nil {
				logger.Error("outcome not recorded", "id", res.ID, "err", err)
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out, formatOutcome(res))
			printDiffs(out, res.Diffs)
		},
	}
	_, summary := batch.Run(ctx, ids)

	run, err := app.Store.Runs.Finish(context.WithoutCancel(ctx), runID)
	if err != nil {
		logger.Error("run not finished", "err", err)
	} else {
		logger.Info("run finished", "migrated", run.Migrated, "skipped", run.Skipped, "failed", run.Failed)
	}

	summary.PrintSummary(cmd.ErrOrStderr())
	if code := summary.ExitCode(); code != 0 {
		return exitError(code, fmt.Errorf("%d of %d documents failed (run %s)", summary.Failed, summary.TotalItems, runID))
	}
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("collection") {
		cfg.Collection = runCollection
	}
	if flags.Changed("owner") {
		cfg.OnBehalfOf = runOwner
	}
	if flags.Changed("purge") {
		cfg.Purge = runPurge
	}
	if flags.Changed("slug") {
		cfg.UseSlug = runSlug
	}
	if flags.Changed("jobs") {
		cfg.Jobs = runJobs
	}
}

// collectIDs merges positional ids, --id values and the id file, keeping
// the first occurrence of each id.
func collectIDs(args, flagIDs []string, file string) ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	add := func(raw string) error {
		docID, err := idlist.Normalize(raw)
		if err != nil {
			return err
		}
		if !seen[docID] {
			seen[docID] = true
			ids = append(ids, docID)
		}
		return nil
	}
	for _, raw := range append(append([]string{}, args...), flagIDs...) {
		if err := add(raw); err != nil {
			return nil, err
		}
	}
	if file != "" {
		fromFile, err := idlist.Load(file)
		if err != nil {
			return nil, err
		}
		for _, docID := range fromFile {
			if err := add(docID); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

func newSourceReader(cfg *config.Config, timeout time.Duration) source.Reader {
	if cfg.SourceDir != "" {
		return source.DirReader{Dir: cfg.SourceDir}
	}
	r := source.NewHTTPReader(cfg.SourceURL, cfg.SourceUser, cfg.SourcePassword)
	if timeout > 0 {
		r.Client.Timeout = timeout
	}
	return r
}

// formatOutcome renders the outcome line of one document.
func formatOutcome(res pipeline.Result) string {
	fields := []string{res.ID, res.PID, string(res.Outcome)}
	switch res.Outcome {
	case pipeline.OutcomeMigrated:
		var docs []string
		if res.Mods {
			docs = append(docs, "mods")
		}
		if res.Slub {
			docs = append(docs, "slub")
		}
		if len(docs) > 0 {
			fields = append(fields, strings.Join(docs, ","))
		}
		fields = append(fields, fmt.Sprintf("attempts=%d", res.Attempts))
	case pipeline.OutcomeSkipped:
		fields = append(fields, res.Reason)
	case pipeline.OutcomeFailed:
		reason := res.Reason
		if res.Err != nil {
			reason += ": " + res.Err.Error()
		}
		fields = append(fields, reason)
	}
	return strings.Join(fields, "\t")
}

func printDiffs(w io.Writer, diffs map[string]string) {
	dsids := make([]string, 0, len(diffs))
	for dsid := range diffs {
		dsids = append(dsids, dsid)
	}
	sort.Strings(dsids)
	for _, dsid := range dsids {
		fmt.Fprint(w, diffs[dsid])
	}
}
