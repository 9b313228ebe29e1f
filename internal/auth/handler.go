// Package auth guards the reload endpoint: an administrator exchanges the
// configured password for a short-lived JWT.
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLen = 72

type Handler struct {
	PasswordHash []byte
	Tokens       TokenService
}

// NewHandler returns nil when passwordHash is empty, which disables auth.
func NewHandler(passwordHash string, tokens TokenService) *Handler {
	if passwordHash == "" {
		return nil
	}
	return &Handler{PasswordHash: []byte(passwordHash), Tokens: tokens}
}

// Enabled is safe to call on a nil handler.
func (h *Handler) Enabled() bool {
	return h != nil
}

// RequireAdmin guards admin routes; with auth disabled it lets everything
// through.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	if !h.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return AuthMiddleware(h.Tokens, RoleAdmin)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.token)
}

type tokenReq struct {
	Password string `json:"password"`
}

func (h *Handler) token(c *gin.Context) {
	if !h.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "auth disabled"})
		return
	}

	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Password == "" || len(req.Password) > maxPasswordLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(h.PasswordHash, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := h.Tokens.Sign("admin-"+uuid.NewString(), RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

// HashPassword returns the bcrypt hash to configure as the admin password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
