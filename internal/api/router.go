// Package api is the HTTP surface of the dashboard.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carddash/internal/auth"
	"carddash/internal/dashboard"
	synchub "carddash/internal/sync"
)

// Deps are the collaborators the router wires together. Only Session is
// required.
type Deps struct {
	Session *dashboard.Session
	Auth    *auth.Handler
	Hub     *synchub.Hub
	Metrics http.Handler
	Ping    func(ctx context.Context) error // database health, optional
	Logger  *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(RequestID(), Logger(logger.Named("http")), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", ready(d))

	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics))
	}
	if d.Hub != nil {
		router.GET("/ws", synchub.WSHandler(d.Hub))
	}

	h := NewHandler(d.Session, d.Auth, logger)
	h.RegisterRoutes(router.Group("/dashboard"))
	router.GET("/dashboard.html", h.html)
	router.GET("/cards", h.cards)

	d.Auth.RegisterRoutes(router.Group("/auth"))

	return router
}

// ready reports 503 until a collection is loaded or while the database is
// unreachable.
func ready(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ready"}
		status := http.StatusOK

		if d.Hub != nil {
			stats := d.Hub.Stats()
			body["tcp_clients"] = stats.TCPClients
			body["ws_clients"] = stats.WSClients
		}

		info, loaded := d.Session.Loaded()
		if loaded {
			body["snapshot"] = info
		} else {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
			body["reason"] = "no collection loaded"
		}

		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "not_ready"
				body["db_error"] = err.Error()
			} else {
				body["db"] = "ok"
			}
		}

		c.JSON(status, body)
	}
}
