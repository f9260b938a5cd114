// Package stub provides offline stand-ins for every external vendor so the
// pipeline can run end to end in development without credentials.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelcast/autopilot/internal/providers"
	"github.com/reelcast/autopilot/internal/providers/openai"
	"github.com/reelcast/autopilot/internal/providers/uploadpost"
)

// VideoProvider simulates a video vendor. Tasks complete after ReadyAfter
// status checks.
type VideoProvider struct {
	name       string
	readyAfter int
	delay      time.Duration

	mu    sync.Mutex
	tasks map[string]int
}

// NewVideoProvider returns a stub registered under name, so generation modes
// that reference real vendors resolve to it.
func NewVideoProvider(name string, readyAfter int, delay time.Duration) *VideoProvider {
	if readyAfter < 1 {
		readyAfter = 1
	}
	return &VideoProvider{name: name, readyAfter: readyAfter, delay: delay, tasks: make(map[string]int)}
}

// Name implements providers.VideoProvider.
func (p *VideoProvider) Name() string { return p.name }

// CreateTask implements providers.VideoProvider.
func (p *VideoProvider) CreateTask(ctx context.Context, req providers.CreateTaskRequest) (string, error) {
	if err := sleep(ctx, p.delay); err != nil {
		return "", err
	}
	id := "stub-" + uuid.NewString()
	p.mu.Lock()
	p.tasks[id] = 0
	p.mu.Unlock()
	return id, nil
}

// GetTaskStatus implements providers.VideoProvider.
func (p *VideoProvider) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskDetail, error) {
	p.mu.Lock()
	checks, ok := p.tasks[taskID]
	if ok {
		checks++
		p.tasks[taskID] = checks
	}
	p.mu.Unlock()

	if !ok {
		return nil, &providers.Error{Kind: providers.KindNotFound, Provider: p.name, Message: "task " + taskID + " not found"}
	}
	if checks < p.readyAfter {
		return &providers.TaskDetail{TaskID: taskID, State: providers.StateGenerating, RawState: "processing"}, nil
	}

	raw, _ := json.Marshal(map[string]string{
		"video_url": fmt.Sprintf("https://example.com/stub/%s.mp4", taskID),
	})
	return &providers.TaskDetail{TaskID: taskID, State: providers.StateCompleted, RawState: "success", Raw: raw}, nil
}

// ResultURL implements providers.VideoProvider.
func (p *VideoProvider) ResultURL(detail *providers.TaskDetail) (string, error) {
	return providers.ExtractURL(p.name, detail.Raw, func(raw json.RawMessage) (string, bool) {
		var v struct {
			VideoURL string `json:"video_url"`
		}
		if json.Unmarshal(raw, &v) != nil {
			return "", false
		}
		return v.VideoURL, v.VideoURL != ""
	})
}

// TextGenerator returns canned completions.
type TextGenerator struct {
	Delay time.Duration
}

// Complete returns a fixed spoken-style script.
func (g TextGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (openai.Completion, error) {
	if err := sleep(ctx, g.Delay); err != nil {
		return openai.Completion{}, err
	}
	return openai.Completion{
		Content:    "Most people skip this one habit. Spend two minutes each morning writing down the single task that matters most today, then do it before opening email. Small wins stack up fast.",
		TokensUsed: 0,
	}, nil
}

// CompleteJSON returns a fixed research payload.
func (g TextGenerator) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (openai.Completion, error) {
	if err := sleep(ctx, g.Delay); err != nil {
		return openai.Completion{}, err
	}
	return openai.Completion{
		Content: `{"idea":"The two-minute morning priority","description":"Pick one task before checking messages.","why_it_matters":"Attention is highest early in the day.","useful_tips":"Write it on paper. Keep it visible.","category":"productivity"}`,
	}, nil
}

// Publisher accepts every post.
type Publisher struct{}

// Publish implements the distribution contract without network access.
func (Publisher) Publish(ctx context.Context, req uploadpost.PostRequest) (*uploadpost.PostResult, error) {
	return &uploadpost.PostResult{RequestID: "stub-" + uuid.NewString(), Scheduled: req.ScheduledAt != nil}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ providers.VideoProvider = (*VideoProvider)(nil)
