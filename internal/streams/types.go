package streams

import "time"

// Stream name constants
const (
	StreamProviderCallbacks = "provider:callbacks"
)

// Consumer group constants
const (
	GroupWorkers = "autopilot-workers"
)

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// TaskCallback is a provider's notification that a generation task changed.
// It carries no status: the consumer re-fetches the task from the provider.
type TaskCallback struct {
	CallbackID string    `json:"callback_id"`
	Provider   string    `json:"provider"`
	TaskID     string    `json:"task_id"`
	ReceivedAt time.Time `json:"received_at"`
}
