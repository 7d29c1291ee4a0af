package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/cli/appctx"
	"github.com/slub/qucosa-migrate/internal/render"
	"github.com/slub/qucosa-migrate/internal/store"
)

var deadLettersCmd = &cobra.Command{
	Use:     "deadletters",
	Aliases: []string{"dl"},
	Short:   "List documents whose deposit failed for good",
	Long: `Lists unresolved dead letters: documents whose deposit still failed after
all retries. The stored package can be printed with 'deadletters show' and
the entry closed with 'deadletters resolve'.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.ReadOnly(), runDeadLettersList),
}

var deadLettersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the stored deposit package of a dead letter",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.ReadOnly(), runDeadLettersShow),
}

var deadLettersResolveCmd = &cobra.Command{
	Use:   "resolve <id>...",
	Short: "Mark dead letters as handled",
	Args:  cobra.MinimumNArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runDeadLettersResolve),
}

var (
	deadLettersAll    bool
	deadLettersRun    string
	deadLettersLimit  int
	deadLettersCursor string
	deadLettersOutput outputFlags
)

func init() {
	rootCmd.AddCommand(deadLettersCmd)
	deadLettersCmd.AddCommand(deadLettersShowCmd, deadLettersResolveCmd)

	deadLettersCmd.Flags().BoolVar(&deadLettersAll, "all", false, "Include resolved dead letters")
	deadLettersCmd.Flags().StringVar(&deadLettersRun, "run", "", "Only dead letters of this run")
	deadLettersCmd.Flags().IntVar(&deadLettersLimit, "limit", 0, "Maximum number of entries (0 = no limit)")
	deadLettersCmd.Flags().StringVar(&deadLettersCursor, "cursor", "", "Continue after the cursor printed with the previous page")
	deadLettersOutput.register(deadLettersCmd)
}

func runDeadLettersList(app *appctx.App, cmd *cobra.Command, args []string) error {
	r, err := deadLettersOutput.renderer(app, cmd)
	if err != nil {
		return err
	}
	filter := store.DeadLetterFilter{
		All:   deadLettersAll,
		RunID: deadLettersRun,
		Limit: deadLettersLimit,
	}
	if deadLettersCursor != "" {
		if filter.After, err = store.DecodeDeadLetterCursor(deadLettersCursor); err != nil {
			return err
		}
	}
	letters, err := app.Store.DeadLetters.List(commandContext(cmd), filter)
	if err != nil {
		return err
	}
	if letters == nil {
		letters = []store.DeadLetterRecord{}
	}

	table := render.Table{Headers: []string{"ID", "DOCUMENT", "PID", "ATTEMPTS", "FAILED", "ERROR"}}
	if deadLettersAll {
		table.Headers = append(table.Headers, "RESOLVED")
	}
	for _, dl := range letters {
		row := []string{
			strconv.FormatInt(dl.ID, 10),
			dl.DocumentID,
			dl.PID,
			strconv.Itoa(dl.Attempts),
			dl.FailedAt,
			dl.Error,
		}
		if deadLettersAll {
			row = append(row, dl.ResolvedAt)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := r.Render(letters, table); err != nil {
		return err
	}

	if next := store.NextDeadLetterCursor(letters, filter.Limit); next != nil {
		encoded, err := next.Encode()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "next page: --cursor %s\n", encoded)
	}
	return nil
}

func runDeadLettersShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	id, err := parseDeadLetterID(args[0])
	if err != nil {
		return err
	}
	dl, err := app.Store.DeadLetters.Get(commandContext(cmd), id)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(dl.Package)
	return err
}

func runDeadLettersResolve(app *appctx.App, cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		id, err := parseDeadLetterID(arg)
		if err != nil {
			return err
		}
		if err := app.Store.DeadLetters.Resolve(commandContext(cmd), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "resolved %d\n", id)
	}
	return nil
}

func parseDeadLetterID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid dead letter id: %q", s)
	}
	return id, nil
}
