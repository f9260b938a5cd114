// Package items exposes explicit user actions on plan items and the
// provider callback intake over HTTP.
package items

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/pipeline"
	"github.com/reelcast/autopilot/internal/store"
	"github.com/reelcast/autopilot/internal/streams"
)

// Actions are the pipeline operations reachable over HTTP.
type Actions interface {
	ApproveScript(ctx context.Context, itemID uint) error
	RejectScript(ctx context.Context, itemID uint) error
	GenerateScript(ctx context.Context, itemID uint) error
	GenerateItemVideo(ctx context.Context, itemID uint) error
	RetryItem(ctx context.Context, itemID uint) (models.ItemStatus, error)
	HandleTaskUpdate(ctx context.Context, provider, taskID string) error
}

// ItemFinder loads items.
type ItemFinder interface {
	FindItem(ctx context.Context, id uint) (*models.PlanItem, error)
}

// CallbackPublisher hands provider callbacks to the worker.
type CallbackPublisher interface {
	PublishCallback(ctx context.Context, cb streams.TaskCallback) (string, error)
}

// Handlers serves item actions. Dispatch and Callbacks are optional: without
// them video generation and callbacks are handled in the request.
type Handlers struct {
	Actions   Actions
	Items     ItemFinder
	Dispatch  pipeline.Dispatcher
	Callbacks CallbackPublisher
	Logger    *slog.Logger
}

// Register mounts item routes on api and callback routes on callbacks.
func (h *Handlers) Register(api, callbacks *gin.RouterGroup) {
	api.GET("/items/:id", h.GetItem)
	api.POST("/items/:id/approve", h.Approve)
	api.POST("/items/:id/reject", h.Reject)
	api.POST("/items/:id/generate-script", h.GenerateScript)
	api.POST("/items/:id/generate-video", h.GenerateVideo)
	api.POST("/items/:id/retry", h.Retry)

	callbacks.POST("/:provider", h.ProviderCallback)
}

type itemResponse struct {
	ID              uint                `json:"id"`
	PlanID          uint                `json:"plan_id"`
	ScheduledDate   string              `json:"scheduled_date"`
	Slot            int                 `json:"slot"`
	Topic           string              `json:"topic"`
	Research        *models.Research    `json:"research,omitempty"`
	Script          *string             `json:"script"`
	ScriptStatus    models.ScriptStatus `json:"script_status"`
	Status          models.ItemStatus   `json:"status"`
	VideoID         *uint               `json:"video_id,omitempty"`
	ScheduledPostID *uint               `json:"scheduled_post_id,omitempty"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toResponse(item *models.PlanItem) itemResponse {
	return itemResponse{
		ID:              item.ID,
		PlanID:          item.PlanID,
		ScheduledDate:   item.ScheduledDate,
		Slot:            item.Slot,
		Topic:           item.Topic,
		Research:        item.Research,
		Script:          item.Script,
		ScriptStatus:    item.ScriptStatus,
		Status:          item.Status,
		VideoID:         item.VideoID,
		ScheduledPostID: item.ScheduledPostID,
		ErrorMessage:    item.ErrorMessage,
		UpdatedAt:       item.UpdatedAt,
	}
}

// GetItem returns an item.
func (h *Handlers) GetItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	h.respondItem(c, id, http.StatusOK)
}

// Approve approves a draft script.
func (h *Handlers) Approve(c *gin.Context) {
	h.action(c, h.Actions.ApproveScript)
}

// Reject discards a draft script so a new one is written.
func (h *Handlers) Reject(c *gin.Context) {
	h.action(c, h.Actions.RejectScript)
}

// GenerateScript writes a script for a ready item now instead of on the next tick.
func (h *Handlers) GenerateScript(c *gin.Context) {
	h.action(c, h.Actions.GenerateScript)
}

// GenerateVideo starts video generation for an approved item. With a
// dispatcher the request returns once the work is queued.
func (h *Handlers) GenerateVideo(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if h.Dispatch == nil {
		h.action(c, h.Actions.GenerateItemVideo)
		return
	}

	item, err := h.Items.FindItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if item.Status != models.ItemStatusApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "item is " + string(item.Status) + ", expected approved"})
		return
	}
	if err := h.Dispatch(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "queued"})
}

// Retry returns a failed item to the stage it failed in.
func (h *Handlers) Retry(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	status, err := h.Actions.RetryItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (h *Handlers) action(c *gin.Context, fn func(context.Context, uint) error) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondItem(c, id, http.StatusOK)
}

func (h *Handlers) respondItem(c *gin.Context, id uint, status int) {
	item, err := h.Items.FindItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, toResponse(item))
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.Logger.Error("Item request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return uint(id), true
}
