package videogen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/modes"
	"github.com/reelcast/autopilot/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeProvider struct {
	name   string
	create func(n int) (string, error)
	status func(taskID string) (*providers.TaskDetail, error)

	mu      sync.Mutex
	creates []providers.CreateTaskRequest
	checks  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateTask(ctx context.Context, req providers.CreateTaskRequest) (string, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	n := len(f.creates)
	f.mu.Unlock()
	if f.create == nil {
		return fmt.Sprintf("%s-task-%d", f.name, n), nil
	}
	return f.create(n)
}

func (f *fakeProvider) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskDetail, error) {
	f.mu.Lock()
	f.checks++
	f.mu.Unlock()
	return f.status(taskID)
}

func (f *fakeProvider) ResultURL(detail *providers.TaskDetail) (string, error) {
	return providers.ExtractURL(f.name, detail.Raw, func(raw json.RawMessage) (string, bool) {
		var v struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(raw, &v) != nil {
			return "", false
		}
		return v.URL, v.URL != ""
	})
}

func (f *fakeProvider) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

func completed(taskID string) *providers.TaskDetail {
	return &providers.TaskDetail{
		TaskID: taskID,
		State:  providers.StateCompleted,
		Raw:    json.RawMessage(fmt.Sprintf(`{"url":"https://cdn/%s.mp4"}`, taskID)),
	}
}

type fakeStore struct {
	mu       sync.Mutex
	videos   map[uint]*models.Video
	recorded []TaskRef
	failed   []string
	touches  int
}

func newFakeStore(videos ...*models.Video) *fakeStore {
	s := &fakeStore{videos: make(map[uint]*models.Video)}
	for _, v := range videos {
		cp := *v
		s.videos[v.ID] = &cp
	}
	return s
}

func (s *fakeStore) FindVideo(ctx context.Context, id uint) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStore) RecordTask(ctx context.Context, id uint, previous string, task TaskRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.videos[id]
	if v.ProviderTaskID != previous {
		return errors.New("task changed concurrently")
	}
	v.ProviderTaskID, v.Provider, v.Model = task.TaskID, task.Provider, task.Model
	v.Status = models.VideoStatusGenerating
	v.UpdatedAt = time.Now()
	s.recorded = append(s.recorded, task)
	return nil
}

func (s *fakeStore) TouchVideo(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.videos[id]; v.Status == models.VideoStatusGenerating {
		v.UpdatedAt = time.Now()
		s.touches++
	}
	return nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, id uint, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.videos[id]
	v.Status, v.VideoURL = models.VideoStatusCompleted, url
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id uint, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.videos[id]
	v.Status, v.ErrorMessage = models.VideoStatusFailed, msg
	s.failed = append(s.failed, msg)
	return nil
}

var stable = modes.Target{Provider: "kie", Model: "sora-2-text-to-video"}

func newOrchestrator(t *testing.T, store VideoStore, list ...providers.VideoProvider) *Orchestrator {
	t.Helper()
	registry, err := modes.Load("", "sora-2", discard)
	require.NoError(t, err)
	return New(providers.NewRegistry(list...), registry, store, Config{
		AttemptsPerModel: 2,
		Stable:           stable,
		PollInterval:     0,
		PollMaxAttempts:  3,
	}, discard)
}

func TestGenerateVideoSkipsWhenTaskExists(t *testing.T) {
	p := &fakeProvider{name: "kie"}
	video := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "existing", Provider: "kie"}
	video.ID = 1
	store := newFakeStore(video)
	before := *video

	err := newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, p.createCount())
	assert.Equal(t, 0, p.checks)
	assert.Empty(t, store.recorded)
	assert.Equal(t, before, *video)
}

func TestGenerateVideoFirstSuccessWins(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			if taskID == "kie-task-1" {
				return &providers.TaskDetail{TaskID: taskID, State: providers.StateFailed, Error: "content rejected"}, nil
			}
			return completed(taskID), nil
		},
	}
	video := &models.Video{Topic: "habits", Script: "Do one thing.", GenerationMode: "sora-2-pro"}
	video.ID = 2
	store := newFakeStore(video)

	err := newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, p.createCount())
	assert.Equal(t, models.VideoStatusCompleted, video.Status)
	assert.Equal(t, "https://cdn/kie-task-2.mp4", video.VideoURL)
	assert.Equal(t, "kie-task-2", video.ProviderTaskID)

	stored, _ := store.FindVideo(context.Background(), 2)
	assert.Equal(t, models.VideoStatusCompleted, stored.Status)
	assert.Equal(t, "https://cdn/kie-task-2.mp4", stored.VideoURL)
	require.Len(t, store.recorded, 2)
	assert.Equal(t, "sora-2-pro-text-to-video", store.recorded[0].Model)
}

func TestGenerateVideoCreateErrorThenSuccess(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		create: func(n int) (string, error) {
			if n == 1 {
				return "", &providers.Error{Kind: providers.KindTransient, Provider: "kie", Message: "busy"}
			}
			return "second", nil
		},
		status: func(taskID string) (*providers.TaskDetail, error) { return completed(taskID), nil },
	}
	video := &models.Video{GenerationMode: "sora-2"}
	video.ID = 3
	store := newFakeStore(video)

	require.NoError(t, newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{}))
	assert.Equal(t, 2, p.createCount())
	assert.Equal(t, "https://cdn/second.mp4", video.VideoURL)
}

func TestGenerateVideoMissingResultURLFails(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			return &providers.TaskDetail{TaskID: taskID, State: providers.StateCompleted, RawState: "success", Raw: json.RawMessage(`{}`)}, nil
		},
	}
	video := &models.Video{GenerationMode: "sora-2"}
	video.ID = 4
	store := newFakeStore(video)

	err := newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{})
	require.Error(t, err)
	assert.Equal(t, providers.KindData, providers.KindOf(err))

	assert.Equal(t, 2, p.createCount())
	stored, _ := store.FindVideo(context.Background(), 4)
	assert.Equal(t, models.VideoStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
	assert.Empty(t, stored.VideoURL)
}

func TestGenerateVideoPollTimeoutMovesOn(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			if taskID == "kie-task-1" {
				return &providers.TaskDetail{TaskID: taskID, State: providers.StateGenerating}, nil
			}
			return completed(taskID), nil
		},
	}
	video := &models.Video{}
	video.ID = 5
	store := newFakeStore(video)

	require.NoError(t, newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{}))
	assert.Equal(t, 2, p.createCount())
	assert.Equal(t, models.VideoStatusCompleted, video.Status)
}

func TestGenerateVideoConfigurationErrorSkipsProvider(t *testing.T) {
	kie := &fakeProvider{
		name:   "kie",
		status: func(taskID string) (*providers.TaskDetail, error) { return completed(taskID), nil },
	}
	video := &models.Video{}
	video.ID = 6
	store := newFakeStore(video)

	// poyo is not registered, so both of its attempts are skipped after the first.
	err := newOrchestrator(t, store, kie).GenerateVideo(context.Background(), video, Options{
		Settings: map[string]any{"provider": "poyo"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, kie.createCount())
	assert.Equal(t, "kie", video.Provider)
}

func TestGenerateVideoAllAttemptsFail(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		create: func(n int) (string, error) {
			return "", &providers.Error{Kind: providers.KindTerminal, Provider: "kie", Message: fmt.Sprintf("rejected %d", n)}
		},
	}
	video := &models.Video{GenerationMode: "sora-2-pro"}
	video.ID = 7
	store := newFakeStore(video)

	err := newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected 4")
	assert.Equal(t, 4, p.createCount())
	assert.Equal(t, models.VideoStatusFailed, video.Status)
	require.Len(t, store.failed, 1)
	assert.Contains(t, store.failed[0], "rejected 4")
}

func TestGenerateVideoUnknownModeFails(t *testing.T) {
	video := &models.Video{GenerationMode: "sora-9"}
	video.ID = 8
	store := newFakeStore(video)

	err := newOrchestrator(t, store).GenerateVideo(context.Background(), video, Options{})
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
	assert.Equal(t, models.VideoStatusFailed, video.Status)
}

func TestGenerateVideoCancelledLeavesTaskForReconcile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			cancel()
			return &providers.TaskDetail{TaskID: taskID, State: providers.StateGenerating}, nil
		},
	}
	video := &models.Video{}
	video.ID = 9
	store := newFakeStore(video)

	err := newOrchestrator(t, store, p).GenerateVideo(ctx, video, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.failed)

	stored, _ := store.FindVideo(context.Background(), 9)
	assert.Equal(t, models.VideoStatusGenerating, stored.Status)
	assert.Equal(t, "kie-task-1", stored.ProviderTaskID)
}

func TestGenerateVideoPassesCallbackAndParameters(t *testing.T) {
	p := &fakeProvider{
		name:   "kie",
		status: func(taskID string) (*providers.TaskDetail, error) { return completed(taskID), nil },
	}
	video := &models.Video{Script: "Line.", AspectRatio: "landscape", DurationSeconds: 15}
	video.ID = 10
	store := newFakeStore(video)

	o := newOrchestrator(t, store, p)
	o.cfg.CallbackURL = func(provider string) string { return "https://app/callbacks/" + provider }
	require.NoError(t, o.GenerateVideo(context.Background(), video, Options{}))

	require.Len(t, p.creates, 1)
	req := p.creates[0]
	assert.Equal(t, "https://app/callbacks/kie", req.CallbackURL)
	assert.Equal(t, "landscape", req.AspectRatio)
	assert.Equal(t, 15, req.DurationSeconds)
	assert.True(t, req.RemoveWatermark)
	assert.Equal(t, "Line.", req.Script)
}

func TestCheckTaskStatusNotFoundKeepsGenerating(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			return nil, &providers.Error{Kind: providers.KindNotFound, Provider: "kie", Message: "no such task"}
		},
	}
	video := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "t-1", Provider: "kie"}
	video.ID = 11
	store := newFakeStore(video)

	status, err := newOrchestrator(t, store, p).CheckTaskStatus(context.Background(), 11, "t-1", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, status)
	assert.Empty(t, store.failed)

	stored, _ := store.FindVideo(context.Background(), 11)
	assert.Equal(t, models.VideoStatusGenerating, stored.Status)
}

func TestCheckTaskStatusTerminalStates(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			switch taskID {
			case "ok":
				return completed(taskID), nil
			case "empty":
				return &providers.TaskDetail{TaskID: taskID, State: providers.StateCompleted, Raw: json.RawMessage(`{}`)}, nil
			default:
				return &providers.TaskDetail{TaskID: taskID, State: providers.StateFailed, Error: "nsfw"}, nil
			}
		},
	}

	ok := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "ok", Provider: "kie"}
	ok.ID = 1
	empty := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "empty", Provider: "kie"}
	empty.ID = 2
	bad := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "bad", Provider: "kie"}
	bad.ID = 3
	store := newFakeStore(ok, empty, bad)
	o := newOrchestrator(t, store, p)
	ctx := context.Background()

	status, err := o.CheckTaskStatus(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusCompleted, status)

	status, err = o.CheckTaskStatus(ctx, 2, "empty", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, status)

	status, err = o.CheckTaskStatus(ctx, 3, "bad", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, status)
	stored, _ := store.FindVideo(ctx, 3)
	assert.Contains(t, stored.ErrorMessage, "nsfw")
}

func TestCheckTaskStatusIgnoresStaleTask(t *testing.T) {
	p := &fakeProvider{name: "kie"}
	video := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "current", Provider: "kie"}
	video.ID = 1
	store := newFakeStore(video)

	status, err := newOrchestrator(t, store, p).CheckTaskStatus(context.Background(), 1, "old", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, status)
	assert.Equal(t, 0, p.checks)
}

func TestCheckTaskStatusLeavesLiveRunFailureToOrchestrator(t *testing.T) {
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			return &providers.TaskDetail{TaskID: taskID, State: providers.StateFailed, Error: "upstream overloaded"}, nil
		},
	}
	live := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "t-live", Provider: "kie"}
	live.ID = 1
	live.UpdatedAt = time.Now()
	abandoned := &models.Video{Status: models.VideoStatusGenerating, ProviderTaskID: "t-old", Provider: "kie"}
	abandoned.ID = 2
	abandoned.UpdatedAt = time.Now().Add(-time.Hour)
	store := newFakeStore(live, abandoned)
	o := newOrchestrator(t, store, p)
	ctx := context.Background()

	status, err := o.CheckTaskStatus(ctx, 1, "t-live", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, status)

	status, err = o.CheckTaskStatus(ctx, 2, "t-old", "kie")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, status)
	assert.Equal(t, []string{"kie: upstream overloaded"}, store.failed)
}

func TestGenerateVideoTouchesVideoWhilePolling(t *testing.T) {
	polls := 0
	p := &fakeProvider{
		name: "kie",
		status: func(taskID string) (*providers.TaskDetail, error) {
			polls++
			if polls < 3 {
				return &providers.TaskDetail{TaskID: taskID, State: providers.StateGenerating}, nil
			}
			return completed(taskID), nil
		},
	}
	video := &models.Video{}
	video.ID = 4
	store := newFakeStore(video)

	require.NoError(t, newOrchestrator(t, store, p).GenerateVideo(context.Background(), video, Options{}))
	assert.Equal(t, 3, store.touches)
}
