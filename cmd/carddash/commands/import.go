package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"carddash/internal/source"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <cards.csv>",
		Short: "Store a CSV export as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			repo, closeDB, err := openRepo(cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			snap, err := source.NewLoader(source.NewCSVSource(args[0]), logger).Load(ctx)
			if err != nil {
				return err
			}

			store := retainingStore{repo: repo, keep: cfg.Database.Keep, logger: logger.Named("snapshot")}
			if err := store.Save(ctx, snap); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported snapshot %s: %s cards from %s\n", snap.ID, humanize.Comma(int64(len(snap.Cards))), args[0])
			return nil
		},
	}
}
