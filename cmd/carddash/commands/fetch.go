package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"carddash/internal/snapshot"
	"carddash/internal/source"
)

const defaultListLimit = 10

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var (
		listOnly bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the collection and store it as a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			w := cmd.OutOrStdout()

			if !listOnly {
				loader := source.NewLoader(newSource(cfg.Source), logger)
				snap, err := loader.Load(ctx)
				if err != nil {
					return err
				}
				store := retainingStore{repo: repo, keep: cfg.Database.Keep, logger: logger.Named("snapshot")}
				if err := store.Save(ctx, snap); err != nil {
					return fmt.Errorf("save snapshot: %w", err)
				}
				fmt.Fprintf(w, "stored snapshot %s: %s cards from %s\n", snap.ID, humanize.Comma(int64(len(snap.Cards))), snap.Source)
			}

			return listSnapshots(ctx, w, repo, limit)
		},
	}

	cmd.Flags().BoolVarP(&listOnly, "list", "l", false, "only list stored snapshots")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "snapshots to list")
	return cmd
}

func listSnapshots(ctx context.Context, w io.Writer, repo *snapshot.Repo, limit int) error {
	infos, err := repo.List(ctx, limit)
	if err != nil {
		return err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"ID", "Source", "Fetched", "Cards"})
	for _, info := range infos {
		tbl.AppendRow(table.Row{info.ID, info.Source, humanize.Time(info.FetchedAt), humanize.Comma(int64(info.CardCount))})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d snapshots", len(infos))})
	fmt.Fprintln(w, tbl.Render())
	return nil
}
