package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carddash/internal/api"
	"carddash/internal/source"
)

// ErrNoMirrorFile is returned when --file is not set.
var ErrNoMirrorFile = errors.New("mirror file is required (use --file)")

func newMirrorCommand(opts *globalOptions) *cobra.Command {
	var (
		file string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Serve a local JSON file as the card API at /cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return ErrNoMirrorFile
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              addr,
				Handler:           newMirrorRouter(file, logger),
				ReadHeaderTimeout: readHeaderTimeout,
			}

			stopShutdown := context.AfterFunc(ctx, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			})
			defer stopShutdown()

			logger.Info("mirror listening", zap.String("addr", addr), zap.String("file", file))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file to serve")
	cmd.Flags().StringVar(&addr, "addr", ":9000", "listen address")
	return cmd
}

// newMirrorRouter serves path at GET /cards. The file is re-read on every
// request and rejected when it is not valid JSON.
func newMirrorRouter(path string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(api.RequestID(), api.Logger(logger.Named("mirror")), gin.Recovery())

	router.GET("/cards", func(c *gin.Context) {
		b, err := os.ReadFile(path)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("cannot read %s: %v", path, err)})
			return
		}
		if _, err := source.Decode(b); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", path, err)})
			return
		}
		c.Data(http.StatusOK, "application/json", b)
	})
	return router
}
