package cli

import (
	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/cli/appctx"
	"github.com/slub/qucosa-migrate/internal/render"
)

// outputFlags are the format flags shared by listing commands.
type outputFlags struct {
	format string
	json   bool
	yaml   bool
	porcelain bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "output", "o", "", "Output format: table, tsv, json or yaml (overrides QM_OUTPUT)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&o.yaml, "yaml", false, "Output as YAML")
	cmd.Flags().BoolVar(&o.porcelain, "porcelain", false, "Stable machine-readable output")
}

func (o *outputFlags) renderer(app *appctx.App, cmd *cobra.Command) (*render.Renderer, error) {
	name := app.Config.Output
	switch {
	case o.json:
		name = string(render.FormatJSON)
	case o.yaml:
		name = string(render.FormatYAML)
	case o.format != "":
		name = o.format
	}
	format, err := render.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: format, Porcelain: o.porcelain}), nil
}
