package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"purescan-service/config"
	"purescan-service/database"
	"purescan-service/history"
	"purescan-service/service"
	"purescan-service/version"
)

// Handlers holds the HTTP surface of the scan service.
type Handlers struct {
	cfg     *config.Config
	scanner *service.Scanner
	auth    *database.AuthService
	db      *database.Database
	history *history.Store
	// payments posts upgrade requests to the external payment provider.
	payments *http.Client
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, scanner *service.Scanner, auth *database.AuthService, db *database.Database, store *history.Store) *Handlers {
	return &Handlers{
		cfg:      cfg,
		scanner:  scanner,
		auth:     auth,
		db:       db,
		history:  store,
		payments: &http.Client{Timeout: 15 * time.Second},
	}
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "purescan-service",
	})
}

// Version returns build and runtime information.
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get("purescan-service"))
}
