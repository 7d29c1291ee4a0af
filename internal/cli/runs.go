package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/cli/appctx"
	"github.com/slub/qucosa-migrate/internal/render"
	"github.com/slub/qucosa-migrate/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List migration runs, or the outcomes of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(appctx.ReadOnly(), runRuns),
}

var (
	runsLimit  int
	runsOutput outputFlags
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
	runsOutput.register(runsCmd)
}

func runRuns(app *appctx.App, cmd *cobra.Command, args []string) error {
	r, err := runsOutput.renderer(app, cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return renderOutcomes(app, cmd, r, args[0])
	}

	runs, err := app.Store.Runs.List(commandContext(cmd), runsLimit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	table := render.Table{Headers: []string{"RUN", "STARTED", "FINISHED", "COLLECTION", "TOTAL", "MIGRATED", "SKIPPED", "FAILED"}}
	for _, run := range runs {
		table.Rows = append(table.Rows, []string{
			run.ID,
			run.StartedAt,
			run.FinishedAt,
			run.Collection,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Migrated),
			strconv.Itoa(run.Skipped),
			strconv.Itoa(run.Failed),
		})
	}
	return r.Render(runs, table)
}

func renderOutcomes(app *appctx.App, cmd *cobra.Command, r *render.Renderer, runID string) error {
	// fails with store.ErrNotFound for unknown runs
	if _, err := app.Store.Runs.Get(commandContext(cmd), runID); err != nil {
		return err
	}
	outcomes, err := app.Store.Runs.Outcomes(commandContext(cmd), runID)
	if err != nil {
		return err
	}
	if outcomes == nil {
		outcomes = []store.Outcome{}
	}
	table := render.Table{Headers: []string{"DOCUMENT", "PID", "OUTCOME", "REASON", "MODS", "SLUB", "ATTEMPTS"}}
	for _, o := range outcomes {
		table.Rows = append(table.Rows, []string{
			o.DocumentID,
			o.PID,
			o.Outcome,
			o.Reason,
			strconv.FormatBool(o.Mods),
			strconv.FormatBool(o.Slub),
			strconv.Itoa(o.Attempts),
		})
	}
	return r.Render(outcomes, table)
}
