package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/encoder"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/snapshot"
)

var healthBody = []byte(`{"status":"healthy"}`)

// Handler serves the exposition endpoints. It only reads the published
// snapshot and never waits for the refresh loop.
type Handler struct {
	store  *snapshot.Store
	enc    *encoder.Encoder
	logger *logrus.Logger
}

func NewHandler(store *snapshot.Store, enc *encoder.Encoder, logger *logrus.Logger) *Handler {
	return &Handler{store: store, enc: enc, logger: logger}
}

func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/metrics", h.metricsHandler)
	router.GET("/health", h.healthHandler)
	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "404 page not found")
	})
}

func (h *Handler) metricsHandler(c *gin.Context) {
	body, err := h.enc.Encode(h.store.Load())
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode metrics")
		c.String(http.StatusInternalServerError, "Error encoding metrics")
		return
	}
	c.Data(http.StatusOK, encoder.ContentType, body)
}

func (h *Handler) healthHandler(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", healthBody)
}
