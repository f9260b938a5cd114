package items

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reelcast/autopilot/internal/store"
	"github.com/reelcast/autopilot/internal/streams"
)

// taskIDKeys and envelopes cover the callback bodies of the supported
// vendors: kie and poyo nest the id under data, heygen under event_data.
var (
	taskIDKeys = []string{"taskId", "task_id", "video_id", "id"}
	envelopes  = []string{"data", "event_data"}
)

// ProviderCallback accepts a vendor's completion notice. The body is only
// mined for the task id; the task's state is always re-fetched from the vendor.
func (h *Handlers) ProviderCallback(c *gin.Context) {
	provider := c.Param("provider")

	taskID := c.Query("task_id")
	if taskID == "" {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		taskID, _ = TaskIDFromPayload(body)
	}
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no task id in callback"})
		return
	}

	cb := streams.TaskCallback{
		CallbackID: uuid.NewString(),
		Provider:   provider,
		TaskID:     taskID,
		ReceivedAt: time.Now().UTC(),
	}
	log := h.Logger.With("callback_id", cb.CallbackID, "provider", provider, "task_id", taskID)

	if h.Callbacks != nil {
		if _, err := h.Callbacks.PublishCallback(c.Request.Context(), cb); err != nil {
			log.Error("Failed to publish callback", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "callback not accepted"})
			return
		}
		log.Info("Callback queued")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	err := h.Actions.HandleTaskUpdate(c.Request.Context(), provider, taskID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("Failed to apply callback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback not applied"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// TaskIDFromPayload finds the vendor task id in a callback body.
func TaskIDFromPayload(body []byte) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", false
	}
	if id, ok := lookupTaskID(doc); ok {
		return id, true
	}
	for _, key := range envelopes {
		if inner, ok := doc[key].(map[string]any); ok {
			if id, ok := lookupTaskID(inner); ok {
				return id, true
			}
		}
	}
	return "", false
}

func lookupTaskID(doc map[string]any) (string, bool) {
	for _, key := range taskIDKeys {
		if id, ok := doc[key].(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
