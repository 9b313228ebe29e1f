// Package commands holds the carddash cobra commands.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carddash/internal/dashboard"
	"carddash/internal/filter"
	"carddash/internal/logging"
	"carddash/internal/snapshot"
	"carddash/internal/source"
	"carddash/pkg/database"
	"carddash/pkg/models"
	"carddash/pkg/utils"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the carddash command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "carddash",
		Short: "Card collection dashboard",
		Long: `carddash loads a trading-card collection and serves aggregate
statistics about it.

Commands:
  serve    HTTP, gRPC and sync servers
  stats    print the dashboard tables for a filter
  render   write the dashboard as a standalone HTML page
  export   write the filtered cards to CSV or a mirror JSON file
  fetch    fetch and persist a snapshot
  import   store a CSV export as a snapshot
  watch    stream reload events from a running server
  mirror   serve a local JSON file as the card API
  token    hash an admin password`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default carddash.yaml in . or ~/.carddash)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level")

	root.AddCommand(
		newServeCommand(opts),
		newStatsCommand(opts),
		newRenderCommand(opts),
		newExportCommand(opts),
		newFetchCommand(opts),
		newImportCommand(opts),
		newWatchCommand(opts),
		newMirrorCommand(opts),
		newTokenCommand(),
	)
	return root
}

// setup loads the configuration and builds the logger from it.
func (o *globalOptions) setup() (*utils.Config, *zap.Logger, error) {
	cfg, err := utils.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// logger builds a logger for commands that need no configuration.
func (o *globalOptions) logger() (*zap.Logger, error) {
	return logging.New(o.logLevel, false)
}

// newSource picks the configured source. A file wins over a URL.
func newSource(cfg utils.SourceConfig) source.Source {
	if cfg.File != "" {
		return source.NewFileSource(cfg.File)
	}
	return source.NewHTTPSource(cfg.URL, cfg.Timeout)
}

func newBuilder(cfg utils.DashboardConfig) dashboard.Builder {
	return dashboard.Builder{
		PrimaryFeature:   cfg.PrimaryFeature,
		SecondaryFeature: cfg.SecondaryFeature,
	}
}

// openRepo opens the snapshot database at cfg.Path.
func openRepo(cfg utils.DatabaseConfig) (*snapshot.Repo, func() error, error) {
	db, err := database.Open(database.Config{Path: cfg.Path})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return snapshot.NewRepo(db), db.Close, nil
}

// retainingStore saves snapshots and prunes all but the newest keep.
// keep <= 0 keeps everything.
type retainingStore struct {
	repo   *snapshot.Repo
	keep   int
	logger *zap.Logger
}

func (s retainingStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := s.repo.Save(ctx, snap); err != nil {
		return err
	}
	n, err := s.repo.Prune(ctx, s.keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if n > 0 {
		s.logger.Debug("pruned snapshots", zap.Int("removed", n), zap.Int("keep", s.keep))
	}
	return nil
}

// criteriaFlags binds the filter flags shared by the offline commands.
type criteriaFlags struct {
	filter.Criteria
	offline bool
}

func (f *criteriaFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Search, "search", "q", "", "case-insensitive search over card names and participating works")
	cmd.Flags().StringVar(&f.Rarity, "rarity", "", "only this rarity")
	cmd.Flags().StringVar(&f.Feature, "feature", "", "only this feature")
	cmd.Flags().StringVar(&f.Section, "section", "", "only this set")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "use the latest stored snapshot instead of fetching")
}

// collect loads the collection once and applies the filter flags.
func collect(ctx context.Context, cfg *utils.Config, logger *zap.Logger, f criteriaFlags) (*dashboard.Session, error) {
	session := dashboard.NewSession(
		dashboard.WithBuilder(newBuilder(cfg.Dashboard)),
		dashboard.WithLoader(source.NewLoader(newSource(cfg.Source), logger)),
		dashboard.WithLogger(logger),
	)

	if f.offline {
		repo, closeDB, err := openRepo(cfg.Database)
		if err != nil {
			return nil, err
		}
		defer closeDB()

		snap, err := repo.Latest(ctx)
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return nil, fmt.Errorf("%w in %s; run carddash fetch first", err, cfg.Database.Path)
		}
		if err != nil {
			return nil, err
		}
		session.Restore(snap)
	} else if _, err := session.OnReload(ctx); err != nil {
		return nil, err
	}

	session.OnFilterChanged(f.Criteria)
	return session, nil
}
