// Package providers defines the contract between the video orchestrator and
// third-party generation vendors, plus the pieces every vendor client shares:
// error classification, the poll loop and result-URL extraction.
package providers

import (
	"context"
	"encoding/json"
)

// State is the internal task vocabulary every vendor status collapses onto.
type State string

// Internal task states
const (
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// CreateTaskRequest carries everything a vendor needs to start a generation task.
type CreateTaskRequest struct {
	Model           string
	Prompt          string
	Script          string
	AspectRatio     string
	DurationSeconds int
	RemoveWatermark bool
	CallbackURL     string
}

// TaskDetail is a vendor task status normalized to the internal vocabulary.
// Raw keeps the vendor payload for result extraction.
type TaskDetail struct {
	TaskID   string
	State    State
	RawState string
	Error    string
	Raw      json.RawMessage
}

// VideoProvider is implemented by each video generation vendor client.
type VideoProvider interface {
	// Name is the provider tag persisted on videos.
	Name() string
	// CreateTask starts a generation task and returns the vendor task id.
	CreateTask(ctx context.Context, req CreateTaskRequest) (string, error)
	// GetTaskStatus fetches the current state of a task.
	GetTaskStatus(ctx context.Context, taskID string) (*TaskDetail, error)
	// ResultURL extracts the playable URL from a completed task.
	ResultURL(detail *TaskDetail) (string, error)
}

// Registry maps provider tags to clients.
type Registry map[string]VideoProvider

// NewRegistry indexes the given providers by name. Nil entries are ignored.
func NewRegistry(list ...VideoProvider) Registry {
	r := make(Registry, len(list))
	for _, p := range list {
		if p == nil {
			continue
		}
		r[p.Name()] = p
	}
	return r
}

// Get looks up a provider, returning a configuration error when it is unknown.
func (r Registry) Get(name string) (VideoProvider, error) {
	p, ok := r[name]
	if !ok {
		return nil, &Error{Kind: KindConfiguration, Provider: name, Message: "provider not configured"}
	}
	return p, nil
}
