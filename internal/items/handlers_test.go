package items

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/pipeline"
	"github.com/reelcast/autopilot/internal/store"
	"github.com/reelcast/autopilot/internal/streams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	err         error
	retryStatus models.ItemStatus
	calls       []string
	updates     []string
}

func (f *fakeActions) record(name string, id uint) error {
	f.calls = append(f.calls, fmt.Sprintf("%s:%d", name, id))
	return f.err
}

func (f *fakeActions) ApproveScript(ctx context.Context, id uint) error {
	return f.record("approve", id)
}

func (f *fakeActions) RejectScript(ctx context.Context, id uint) error {
	return f.record("reject", id)
}

func (f *fakeActions) GenerateScript(ctx context.Context, id uint) error {
	return f.record("script", id)
}

func (f *fakeActions) GenerateItemVideo(ctx context.Context, id uint) error {
	return f.record("video", id)
}

func (f *fakeActions) RetryItem(ctx context.Context, id uint) (models.ItemStatus, error) {
	return f.retryStatus, f.record("retry", id)
}

func (f *fakeActions) HandleTaskUpdate(ctx context.Context, provider, taskID string) error {
	f.updates = append(f.updates, provider+"/"+taskID)
	return f.err
}

type fakeItems map[uint]*models.PlanItem

func (f fakeItems) FindItem(ctx context.Context, id uint) (*models.PlanItem, error) {
	item, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("plan item %d: %w", id, store.ErrNotFound)
	}
	return item, nil
}

type fakeCallbacks struct {
	published []streams.TaskCallback
	err       error
}

func (f *fakeCallbacks) PublishCallback(ctx context.Context, cb streams.TaskCallback) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, cb)
	return "1-0", nil
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if h.Logger == nil {
		h.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := gin.New()
	h.Register(r.Group("/api"), r.Group("/callbacks"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func draftItem() fakeItems {
	script := "hello"
	return fakeItems{7: {PlanID: 1, Topic: "habits", Script: &script, Status: models.ItemStatusDraft}}
}

func TestApproveReturnsItem(t *testing.T) {
	actions := &fakeActions{}
	r := newTestRouter(&Handlers{Actions: actions, Items: draftItem()})

	w := do(r, http.MethodPost, "/api/items/7/approve", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"approve:7"}, actions.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "habits", body["topic"])
	assert.Equal(t, "hello", body["script"])
}

func TestActionErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		path   string
		status int
	}{
		{"not eligible", fmt.Errorf("item 7: %w", pipeline.ErrNotEligible), "/api/items/7/reject", http.StatusConflict},
		{"not found", fmt.Errorf("plan item 7: %w", store.ErrNotFound), "/api/items/7/generate-script", http.StatusNotFound},
		{"internal", errors.New("database is locked"), "/api/items/7/approve", http.StatusInternalServerError},
		{"bad id", nil, "/api/items/abc/approve", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&Handlers{Actions: &fakeActions{err: tt.err}, Items: draftItem()})
			w := do(r, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetItemNotFound(t *testing.T) {
	r := newTestRouter(&Handlers{Actions: &fakeActions{}, Items: fakeItems{}})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/items/3", "").Code)
}

func TestRetryReturnsNewStatus(t *testing.T) {
	actions := &fakeActions{retryStatus: models.ItemStatusApproved}
	r := newTestRouter(&Handlers{Actions: actions, Items: draftItem()})

	w := do(r, http.MethodPost, "/api/items/7/retry", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"status":"approved"}`, w.Body.String())
}

func TestGenerateVideoDispatches(t *testing.T) {
	var dispatched []uint
	items := fakeItems{
		1: {Status: models.ItemStatusApproved},
		2: {Status: models.ItemStatusDraft},
	}
	actions := &fakeActions{}
	r := newTestRouter(&Handlers{
		Actions: actions,
		Items:   items,
		Dispatch: func(ctx context.Context, itemID uint) error {
			dispatched = append(dispatched, itemID)
			return nil
		},
	})

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/items/1/generate-video", "").Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/items/2/generate-video", "").Code)
	assert.Equal(t, []uint{1}, dispatched)
	assert.Empty(t, actions.calls)
}

func TestGenerateVideoInlineWithoutDispatcher(t *testing.T) {
	actions := &fakeActions{}
	r := newTestRouter(&Handlers{Actions: actions, Items: fakeItems{1: {Status: models.ItemStatusCompleted}}})

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/items/1/generate-video", "").Code)
	assert.Equal(t, []string{"video:1"}, actions.calls)
}

func TestProviderCallbackPublishes(t *testing.T) {
	cbs := &fakeCallbacks{}
	actions := &fakeActions{}
	r := newTestRouter(&Handlers{Actions: actions, Items: fakeItems{}, Callbacks: cbs})

	w := do(r, http.MethodPost, "/callbacks/kie", `{"code":200,"msg":"success","data":{"taskId":"kie-123","state":"success"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, cbs.published, 1)
	assert.Equal(t, "kie", cbs.published[0].Provider)
	assert.Equal(t, "kie-123", cbs.published[0].TaskID)
	assert.NotEmpty(t, cbs.published[0].CallbackID)
	assert.Empty(t, actions.updates)
}

func TestProviderCallbackPublishFailure(t *testing.T) {
	r := newTestRouter(&Handlers{Actions: &fakeActions{}, Items: fakeItems{}, Callbacks: &fakeCallbacks{err: errors.New("redis down")}})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/callbacks/kie?task_id=x", "").Code)
}

func TestProviderCallbackInline(t *testing.T) {
	actions := &fakeActions{}
	r := newTestRouter(&Handlers{Actions: actions, Items: fakeItems{}})

	w := do(r, http.MethodPost, "/callbacks/heygen", `{"event_type":"avatar_video.success","event_data":{"video_id":"hg-9","url":"https://x"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"heygen/hg-9"}, actions.updates)

	actions.err = fmt.Errorf("video: %w", store.ErrNotFound)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/callbacks/poyo?task_id=gone", "").Code)

	actions.err = errors.New("vendor timeout")
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/callbacks/poyo", `{"task_id":"p-1"}`).Code)
}

func TestProviderCallbackWithoutTaskID(t *testing.T) {
	r := newTestRouter(&Handlers{Actions: &fakeActions{}, Items: fakeItems{}})
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/callbacks/kie", `{"status":"done"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/callbacks/kie", `not json`).Code)
}

func TestTaskIDFromPayload(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"taskId":"a"}`, "a"},
		{`{"data":{"task_id":"b"}}`, "b"},
		{`{"event_data":{"video_id":"c"}}`, "c"},
		{`{"data":{"taskId":""},"id":"d"}`, "d"},
	}
	for _, tt := range tests {
		got, ok := TaskIDFromPayload([]byte(tt.body))
		assert.True(t, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}

	_, ok := TaskIDFromPayload([]byte(`[]`))
	assert.False(t, ok)
}
