package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slub/qucosa-migrate/internal/cli/appctx"
	"github.com/slub/qucosa-migrate/internal/diff"
	"github.com/slub/qucosa-migrate/internal/mapping"
	"github.com/slub/qucosa-migrate/internal/schema"
	"github.com/slub/qucosa-migrate/internal/source"
	"github.com/slub/qucosa-migrate/internal/xmltree"
)

var mapCmd = &cobra.Command{
	Use:   "map <source-file>",
	Short: "Map a local source record without touching the repository",
	Long: `Maps a source record file onto empty documents, or onto existing ones given
with --mods and --slub, and prints the resulting MODS and SLUB documents.
With --diff only the changes are printed. With --out the documents are
written to MODS.xml and SLUB-INFO.xml in that directory.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.Options{NeedsDB: false}, runMap),
}

var (
	mapModsFile string
	mapSlubFile string
	mapDiff     bool
	mapOutDir   string
)

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().StringVar(&mapModsFile, "mods", "", "Existing MODS document to map onto")
	mapCmd.Flags().StringVar(&mapSlubFile, "slub", "", "Existing SLUB document to map onto")
	mapCmd.Flags().BoolVar(&mapDiff, "diff", false, "Print unified diffs instead of the documents")
	mapCmd.Flags().StringVar(&mapOutDir, "out", "", "Write the documents into this directory")
}

func runMap(app *appctx.App, cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open source record: %w", err)
	}
	defer f.Close()
	rec, err := source.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	mods, err := loadTarget(mapModsFile, schema.DSMods)
	if err != nil {
		return err
	}
	slub, err := loadTarget(mapSlubFile, schema.DSSlub)
	if err != nil {
		return err
	}
	before := map[string]*xmltree.Node{schema.DSMods: mods.Clone(), schema.DSSlub: slub.Clone()}

	aliases, err := app.Config.LoadAliases()
	if err != nil {
		return err
	}
	changes, err := mapping.Apply(rec, mods, slub, mapping.Mappers(mapping.Options{
		Aliases:          aliases,
		Distributor:      app.Config.Distributor,
		DistributorPlace: app.Config.DistributorPlace,
	}))
	if err != nil {
		return err
	}
	app.Logger.Info("mapped record", "id", rec.ID(), "mods_changed", changes.Mods(), "slub_changed", changes.Slub())

	out := cmd.OutOrStdout()
	for _, doc := range []struct {
		dsid string
		node *xmltree.Node
	}{{schema.DSMods, mods}, {schema.DSSlub, slub}} {
		data, err := xmltree.Marshal(doc.node, schema.Prefixes)
		if err != nil {
			return err
		}
		switch {
		case mapDiff:
			old, err := xmltree.Marshal(before[doc.dsid], schema.Prefixes)
			if err != nil {
				return err
			}
			d, err := diff.Unified(doc.dsid, old, data, 3)
			if err != nil {
				return err
			}
			fmt.Fprint(out, d)
		case mapOutDir != "":
			path := filepath.Join(mapOutDir, doc.dsid+".xml")
			if err := os.MkdirAll(mapOutDir, 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintln(out, path)
		default:
			fmt.Fprintf(out, "%s", data)
		}
	}
	return nil
}

// loadTarget reads an existing target document, or returns the empty
// template when path is empty.
func loadTarget(path, dsid string) (*xmltree.Node, error) {
	if path == "" {
		return schema.Template(dsid), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s document: %w", dsid, err)
	}
	doc, err := xmltree.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if want := schema.Template(dsid).Name; doc.Name != want {
		return nil, fmt.Errorf("%s: expected a %s document, found {%s}%s", path, dsid, doc.Name.Space, doc.Name.Local)
	}
	return doc, nil
}
