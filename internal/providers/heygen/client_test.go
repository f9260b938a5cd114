package heygen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelcast/autopilot/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskSendsAvatarAndScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/video/generate", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))

		var body generateBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.VideoInputs, 1)
		assert.Equal(t, "avatar-7", body.VideoInputs[0].Character.AvatarID)
		assert.Equal(t, "Say this.", body.VideoInputs[0].Voice.InputText)
		assert.Equal(t, 1280, body.Dimension.Height)

		_, _ = w.Write([]byte(`{"error":null,"data":{"video_id":"v-9"}}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "key", BaseURL: srv.URL})
	id, err := c.CreateTask(context.Background(), providers.CreateTaskRequest{
		Model:  "avatar-7",
		Prompt: "ignored when a script is present",
		Script: "Say this.",
	})
	require.NoError(t, err)
	assert.Equal(t, "v-9", id)
}

func TestCreateTaskRequiresAvatar(t *testing.T) {
	c := NewClient(Settings{APIKey: "key"})
	_, err := c.CreateTask(context.Background(), providers.CreateTaskRequest{})
	assert.True(t, providers.IsConfiguration(err))
}

func TestStatusCompletedAndFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("video_id") {
		case "done":
			_, _ = w.Write([]byte(`{"data":{"status":"completed","video_url_caption":"https://cdn/cap.mp4"}}`))
		case "bad":
			_, _ = w.Write([]byte(`{"data":{"status":"failed","error":{"code":40001,"message":"avatar missing"}}}`))
		default:
			_, _ = w.Write([]byte(`{"data":null}`))
		}
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "key", BaseURL: srv.URL})

	detail, err := c.GetTaskStatus(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, providers.StateCompleted, detail.State)
	u, err := c.ResultURL(detail)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/cap.mp4", u)

	detail, err = c.GetTaskStatus(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, providers.StateFailed, detail.State)
	assert.Equal(t, "avatar missing", detail.Error)

	_, err = c.GetTaskStatus(context.Background(), "missing")
	assert.True(t, providers.IsNotFound(err))
}

func TestMapState(t *testing.T) {
	for _, s := range []string{"pending", "waiting", "processing"} {
		assert.Equal(t, providers.StateGenerating, MapState(s), s)
	}
	assert.Equal(t, providers.StateCompleted, MapState("completed"))
	assert.Equal(t, providers.StateFailed, MapState("failed"))
}
