package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carddash/internal/api"
	"carddash/internal/auth"
	"carddash/internal/dashboard"
	"carddash/internal/grpcserver"
	"carddash/internal/metrics"
	"carddash/internal/notify"
	"carddash/internal/snapshot"
	"carddash/internal/source"
	synchub "carddash/internal/sync"
	"carddash/pkg/utils"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, gRPC, sync and notify servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *utils.Config, logger *zap.Logger) error {
	var (
		repo  *snapshot.Repo
		store dashboard.Store
		ping  func(context.Context) error
	)
	if cfg.Database.Enabled {
		r, closeDB, err := openRepo(cfg.Database)
		if err != nil {
			return err
		}
		defer closeDB()
		repo = r
		store = retainingStore{repo: r, keep: cfg.Database.Keep, logger: logger.Named("snapshot")}
		ping = r.DB.PingContext
	}

	m := metrics.New()
	hub := synchub.NewHub(logger)
	defer hub.Close()

	udp := notify.NewServer(cfg.Sync.UDPAddr, nil, logger)

	// assigned before any reload can run
	var grpcSrv *grpcserver.Server

	session := dashboard.NewSession(
		dashboard.WithLoader(source.NewLoader(newSource(cfg.Source), logger)),
		dashboard.WithStore(store),
		dashboard.WithBuilder(newBuilder(cfg.Dashboard)),
		dashboard.WithLogger(logger),
		dashboard.WithMetrics(m),
		dashboard.WithObserver(hub.OnReload),
		dashboard.WithObserver(udp.OnReload),
		dashboard.WithObserver(func(ev dashboard.ReloadEvent) { grpcSrv.OnReload(ev) }),
	)

	if repo != nil {
		restore(ctx, repo, session, m, logger)
	}
	grpcSrv = grpcserver.NewServer(session, logger)

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTTTL,
	}
	authHandler := auth.NewHandler(cfg.Auth.AdminPasswordHash, tokens)
	if !authHandler.Enabled() {
		logger.Warn("admin password not configured; reload is unauthenticated")
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(api.Deps{
			Session: session,
			Auth:    authHandler,
			Hub:     hub,
			Metrics: m.Handler(),
			Ping:    ping,
			Logger:  logger,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if cfg.Sync.TCPAddr != "" {
		tcpSrv := synchub.NewServer(cfg.Sync.TCPAddr, hub)
		g.Go(func() error {
			if err := tcpSrv.Run(gctx); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			return nil
		})
	}

	if cfg.Sync.UDPAddr != "" {
		g.Go(func() error {
			if err := udp.Run(gctx); err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			return nil
		})
	}

	if cfg.GRPC.Addr != "" {
		gs := grpcserver.NewGRPCServer(grpcSrv)
		g.Go(func() error {
			ln, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
			return gs.Serve(ln)
		})
		g.Go(func() error {
			<-gctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		// a failed first fetch leaves the restored snapshot, if any, in place
		if _, err := session.OnReload(gctx); err != nil {
			logger.Warn("initial load failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	logger.Info("servers stopped")
	return err
}

// restore seeds session with the newest stored snapshot.
func restore(ctx context.Context, repo *snapshot.Repo, session *dashboard.Session, m *metrics.Metrics, logger *zap.Logger) {
	snap, err := repo.Latest(ctx)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		return
	case err != nil:
		logger.Warn("restore snapshot", zap.Error(err))
		return
	}
	if session.Restore(snap) {
		m.SetCardsLoaded(len(snap.Cards))
	}
}
