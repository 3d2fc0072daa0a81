// Package api exposes the pipeline to the host application over a local HTTP surface.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/pod"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/UnknownOlympus/hermes/internal/session"
	"github.com/gin-gonic/gin"
)

type Tracker interface {
	Start(ctx context.Context, driverID string) (capture.StartResult, error)
	Stop(ctx context.Context) error
	Status() capture.Status
}

type QueueSizer interface {
	Size(ctx context.Context) (int, error)
}

type RouteOptimizer interface {
	Optimize(ctx context.Context, stops []models.DeliveryStop, start models.Coordinates) (routing.Result, error)
	ClearCache()
}

type ProofOfDelivery interface {
	SavePOD(ctx context.Context, bundle models.OfflineBundle) (pod.SaveOutcome, error)
	SyncPending(ctx context.Context) (pod.SyncReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the control endpoints.
type Handler struct {
	tracker   Tracker
	identity  session.Identity
	queue     QueueSizer
	optimizer RouteOptimizer
	pod       ProofOfDelivery
	db        Pinger
	log       *slog.Logger
}

func NewHandler(
	tracker Tracker,
	identity session.Identity,
	queue QueueSizer,
	optimizer RouteOptimizer,
	pod ProofOfDelivery,
	db Pinger,
	log *slog.Logger,
) *Handler {
	return &Handler{
		tracker:   tracker,
		identity:  identity,
		queue:     queue,
		optimizer: optimizer,
		pod:       pod,
		db:        db,
		log:       log,
	}
}

// RegisterRoutes registers the control routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/tracking/start", h.StartTracking)
		v1.POST("/tracking/stop", h.StopTracking)
		v1.GET("/tracking/status", h.TrackingStatus)
		v1.GET("/queue", h.QueueSize)
		v1.POST("/routes/optimize", h.OptimizeRoute)
		v1.DELETE("/routes/cache", h.ClearRouteCache)
		v1.POST("/pod", h.SavePOD)
		v1.POST("/pod/sync", h.SyncPOD)
	}
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// Health checks the database.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.ErrorContext(ctx, "Health check failed", "error", err)
		errorJSON(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startRequest struct {
	DriverID string `json:"driver_id"`
}

// StartTracking starts location capture for the driver in the body or, without one, the
// signed-in driver.
func (h *Handler) StartTracking(c *gin.Context) {
	ctx := c.Request.Context()

	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	driverID := req.DriverID
	if driverID == "" {
		id, err := h.identity.DriverID(ctx)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			h.log.ErrorContext(ctx, "Failed to resolve driver identity", "error", err)
			errorJSON(c, http.StatusInternalServerError, "failed to resolve driver")
			return
		}
		driverID = id
	}

	result, err := h.tracker.Start(ctx, driverID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, capture.ErrNoDriverSession):
		errorJSON(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, capture.ErrPermissionDenied):
		errorJSON(c, http.StatusForbidden, err.Error())
	case errors.Is(err, capture.ErrAlreadyTracking):
		errorJSON(c, http.StatusConflict, err.Error())
	default:
		h.log.ErrorContext(ctx, "Failed to start tracking", "driver", driverID, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to start tracking")
	}
}

func (h *Handler) StopTracking(c *gin.Context) {
	if err := h.tracker.Stop(c.Request.Context()); err != nil {
		h.log.ErrorContext(c.Request.Context(), "Failed to stop tracking", "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to stop tracking")
		return
	}

	c.JSON(http.StatusOK, h.tracker.Status())
}

func (h *Handler) TrackingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Status())
}

func (h *Handler) QueueSize(c *gin.Context) {
	size, err := h.queue.Size(c.Request.Context())
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Failed to read queue size", "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to read queue")
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": size})
}

type optimizeRequest struct {
	Start *models.Coordinates   `json:"start" binding:"required"`
	Stops []models.DeliveryStop `json:"stops"`
}

func (h *Handler) OptimizeRoute(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.optimizer.Optimize(c.Request.Context(), req.Stops, *req.Start)
	if errors.Is(err, routing.ErrInvalidStart) {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Route optimization failed", "stops", len(req.Stops), "error", err)
		errorJSON(c, http.StatusInternalServerError, "route optimization failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ClearRouteCache(c *gin.Context) {
	h.optimizer.ClearCache()
	c.Status(http.StatusNoContent)
}

type podRequest struct {
	BookingReference string            `json:"booking_reference" binding:"required"`
	Fields           map[string]string `json:"fields"`
	Blobs            []models.Blob     `json:"blobs"`
}

// SavePOD accepts a proof of delivery. Blob data is base64 encoded in the JSON body.
func (h *Handler) SavePOD(c *gin.Context) {
	var req podRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	bundle := models.NewOfflineBundle(req.BookingReference, req.Blobs, req.Fields, time.Now())
	outcome, err := h.pod.SavePOD(c.Request.Context(), bundle)
	if errors.Is(err, pod.ErrInvalidBundle) {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Failed to save proof of delivery",
			"booking", req.BookingReference, "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to save proof of delivery")
		return
	}

	c.JSON(http.StatusAccepted, outcome)
}

func (h *Handler) SyncPOD(c *gin.Context) {
	report, err := h.pod.SyncPending(c.Request.Context())
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Proof of delivery sync failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "sync failed")
		return
	}

	c.JSON(http.StatusOK, report)
}
