package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"carddash/internal/dashboard"
)

const renderDirPerm = 0o750

func newRenderCommand(opts *globalOptions) *cobra.Command {
	var (
		flags criteriaFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the dashboard as a standalone HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			session, err := collect(cmd.Context(), cfg, logger, flags)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := dashboard.RenderHTML(&buf, session.Current()); err != nil {
				return fmt.Errorf("render: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(out), renderDirPerm); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, humanize.Bytes(uint64(buf.Len())))
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "dashboard.html", "output HTML file")
	return cmd
}
