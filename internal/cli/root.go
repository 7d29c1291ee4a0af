package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qucosa-migrate",
	Short: "Migrate Qucosa documents into MODS and SLUB metadata",
	Long: `qucosa-migrate maps legacy Qucosa document records onto MODS and the
SLUB extension, and deposits the changed documents into the repository.
Mapping is idempotent: running it twice over the same record deposits nothing
the second time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// commandContext returns the command's context, or the background context
// when the command is run outside of Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides QM_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides QM_LOG_LEVEL)")
}
