package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"carddash/internal/dashboard"
	"carddash/pkg/models"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown format (want table, json or yaml)")

// statsReport is the machine-readable stats output.
type statsReport struct {
	Snapshot models.SnapshotInfo `json:"snapshot" yaml:"snapshot"`
	Summary  dashboard.Summary   `json:"summary" yaml:"summary"`
	Options  dashboard.Options   `json:"options" yaml:"options"`
	Charts   []dashboard.Chart   `json:"charts" yaml:"charts"`
}

func newStatsCommand(opts *globalOptions) *cobra.Command {
	var (
		flags  criteriaFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard statistics for a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatTable && format != formatJSON && format != formatYAML {
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

			info, _ := session.Loaded()
			view := session.Current()
			report := statsReport{
				Snapshot: info,
				Summary:  view.Summary,
				Options:  session.Options(),
				Charts:   view.Charts(),
			}
			return writeStats(cmd.OutOrStdout(), format, report)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}

func writeStats(w io.Writer, format string, r statsReport) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeStatsTables(w, r)
	}
}

func writeStatsTables(w io.Writer, r statsReport) error {
	heading := color.New(color.FgCyan, color.Bold)

	heading.Fprintln(w, "Collection")
	summary := newTable()
	summary.AppendRows([]table.Row{
		{"Snapshot", r.Snapshot.ID},
		{"Source", r.Snapshot.Source},
		{"Fetched", humanize.Time(r.Snapshot.FetchedAt)},
		{"Cards", humanize.Comma(int64(r.Summary.Total))},
		{"Displayed", humanize.Comma(int64(r.Summary.Displayed))},
		{"Errata", humanize.Comma(int64(r.Summary.Errata))},
		{"Works", r.Summary.Chips.Works},
		{"Rarities", r.Summary.Chips.Rarities},
		{"Characters", r.Summary.Chips.Characters},
		{"Sets", r.Summary.Chips.Sets},
		{"Types", r.Summary.Chips.Types},
	})
	fmt.Fprintln(w, summary.Render())

	for _, c := range r.Charts {
		fmt.Fprintln(w)
		heading.Fprintln(w, c.Title)
		if c.Empty() {
			color.New(color.FgYellow).Fprintln(w, "  no data")
			continue
		}
		fmt.Fprintln(w, chartTable(c, r.Summary.Displayed).Render())
	}
	return nil
}

// chartTable lays a chart out as one row per label and one column per
// dataset. Single-series charts get a share column.
func chartTable(c dashboard.Chart, displayed int) table.Writer {
	tbl := newTable()

	single := len(c.Data.Datasets) == 1
	header := table.Row{""}
	for _, ds := range c.Data.Datasets {
		name := ds.Label
		if single || name == "" {
			name = "Cards"
		}
		header = append(header, name)
	}
	if single {
		header = append(header, "Share")
	}
	tbl.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(header)-1)
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tbl.SetColumnConfigs(configs)

	for i, label := range c.Data.Labels {
		row := table.Row{label}
		for _, ds := range c.Data.Datasets {
			row = append(row, humanize.Comma(int64(ds.Data[i])))
		}
		if single {
			row = append(row, share(c.Data.Datasets[0].Data[i], displayed))
		}
		tbl.AppendRow(row)
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d buckets", len(c.Data.Labels))})
	return tbl
}

// newTable returns a light table that keeps header and footer case.
func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	return tbl
}

func share(n, total int) string {
	if total == 0 {
		return "-"
	}
	return strconv.FormatFloat(100*float64(n)/float64(total), 'f', 1, 64) + "%"
}
