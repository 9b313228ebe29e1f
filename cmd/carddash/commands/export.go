package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"carddash/internal/source"
	"carddash/pkg/models"
)

const formatCSV = "csv"

// mirrorFile is the payload shape the card API serves, so an exported file
// can be fed to carddash mirror or source.file.
type mirrorFile struct {
	Data []models.Card `json:"data"`
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		flags  criteriaFlags
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered cards to CSV or a mirror JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatCSV && format != formatJSON {
				return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
			}

			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			session, err := collect(cmd.Context(), cfg, logger, flags)
			if err != nil {
				return err
			}
			subset := session.Filtered()

			if out == "-" {
				return export(cmd.OutOrStdout(), format, subset)
			}

			if err := os.MkdirAll(filepath.Dir(out), renderDirPerm); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := export(f, format, subset); err != nil {
				return fmt.Errorf("export %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d cards to %s\n", len(subset), out)
			return f.Close()
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "cards.csv", `output path, "-" for stdout`)
	cmd.Flags().StringVarP(&format, "format", "f", formatCSV, "output format: csv or json")
	return cmd
}

func export(w io.Writer, format string, all []models.Card) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(mirrorFile{Data: all})
	}
	return source.WriteCSV(w, all)
}
