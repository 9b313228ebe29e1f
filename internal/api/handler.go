package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carddash/internal/auth"
	"carddash/internal/dashboard"
	"carddash/internal/filter"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Handler serves the dashboard session over HTTP.
type Handler struct {
	Session *dashboard.Session
	Auth    *auth.Handler // nil disables reload auth
	Logger  *zap.Logger
}

func NewHandler(s *dashboard.Session, a *auth.Handler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Session: s, Auth: a, Logger: logger.Named("api")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.dashboard)                             // GET /dashboard
	rg.PUT("/filter", h.setFilter)                      // PUT /dashboard/filter
	rg.GET("/options", h.options)                       // GET /dashboard/options
	rg.GET("/charts/:id", h.chart)                      // GET /dashboard/charts/:id
	rg.POST("/reload", h.Auth.RequireAdmin(), h.reload) // POST /dashboard/reload
}

type dashboardResp struct {
	Criteria filter.Criteria   `json:"criteria"`
	Summary  dashboard.Summary `json:"summary"`
	Charts   []dashboard.Chart `json:"charts"`
}

func respond(v dashboard.View) dashboardResp {
	return dashboardResp{Criteria: v.Criteria, Summary: v.Summary, Charts: v.Charts()}
}

// viewFor returns the session's current view, or a one-off view when the
// request carries filter parameters.
func (h *Handler) viewFor(c *gin.Context) dashboard.View {
	if !hasFilter(c) {
		return h.Session.Current()
	}
	return h.Session.View(filter.FromQuery(c.Request.URL.Query()))
}

func hasFilter(c *gin.Context) bool {
	for _, k := range []string{"q", "rarity", "feature", "section"} {
		if _, ok := c.GetQuery(k); ok {
			return true
		}
	}
	return false
}

func (h *Handler) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, respond(h.viewFor(c)))
}

func (h *Handler) setFilter(c *gin.Context) {
	var cr filter.Criteria
	if err := c.ShouldBindJSON(&cr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.JSON(http.StatusOK, respond(h.Session.OnFilterChanged(cr)))
}

func (h *Handler) options(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Options())
}

func (h *Handler) chart(c *gin.Context) {
	ch, ok := h.viewFor(c).Chart(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chart"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) reload(c *gin.Context) {
	v, err := h.Session.OnReload(c.Request.Context())
	switch {
	case err == nil:
		info, _ := h.Session.Loaded()
		c.JSON(http.StatusOK, gin.H{
			"snapshot":  info,
			"dashboard": respond(v),
		})
	case errors.Is(err, dashboard.ErrStaleReload):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dashboard.ErrNoLoader):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.Logger.Warn("reload request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// html renders the go-echarts page for the query's filter.
func (h *Handler) html(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := dashboard.RenderHTML(c.Writer, h.viewFor(c)); err != nil {
		h.Logger.Error("render html", zap.Error(err))
	}
}

// cards lists the filtered records a page at a time.
func (h *Handler) cards(c *gin.Context) {
	limit := parseInt(c.Query("limit"), defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := parseInt(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	items := filter.Apply(h.Session.Cards(), filter.FromQuery(c.Request.URL.Query()))
	total := len(items)

	start := min(offset, total)
	end := min(start+limit, total)

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items[start:end],
	})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
