package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	responses []func() (*TaskDetail, error)
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) CreateTask(context.Context, CreateTaskRequest) (string, error) {
	return "task-1", nil
}

func (p *scriptedProvider) GetTaskStatus(context.Context, string) (*TaskDetail, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i]()
}

func (p *scriptedProvider) ResultURL(*TaskDetail) (string, error) { return "", nil }

func state(s State, msg string) func() (*TaskDetail, error) {
	return func() (*TaskDetail, error) { return &TaskDetail{TaskID: "task-1", State: s, Error: msg}, nil }
}

func failWith(kind Kind) func() (*TaskDetail, error) {
	return func() (*TaskDetail, error) { return nil, &Error{Kind: kind, Provider: "scripted"} }
}

func TestPollUntilCompleteReturnsCompletedTask(t *testing.T) {
	p := &scriptedProvider{responses: []func() (*TaskDetail, error){
		state(StateGenerating, ""),
		failWith(KindNotFound),
		failWith(KindTransient),
		state(StateCompleted, ""),
	}}

	var progress []int
	detail, err := PollUntilComplete(context.Background(), p, "task-1", PollOptions{
		MaxAttempts: 10,
		OnProgress:  func(attempt int, _ *TaskDetail) { progress = append(progress, attempt) },
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, detail.State)
	assert.Equal(t, 4, p.calls)
	assert.Equal(t, []int{1, 4}, progress)
}

func TestPollUntilCompleteStopsOnTaskFailure(t *testing.T) {
	p := &scriptedProvider{responses: []func() (*TaskDetail, error){
		state(StateGenerating, ""),
		state(StateFailed, "content policy"),
		state(StateCompleted, ""),
	}}

	_, err := PollUntilComplete(context.Background(), p, "task-1", PollOptions{MaxAttempts: 10})
	require.Error(t, err)
	assert.Equal(t, KindTerminal, KindOf(err))
	assert.Contains(t, err.Error(), "content policy")
	assert.Equal(t, 2, p.calls, "terminal failure must not exhaust the poll budget")
}

func TestPollUntilCompleteTimesOut(t *testing.T) {
	p := &scriptedProvider{responses: []func() (*TaskDetail, error){state(StateGenerating, "")}}

	_, err := PollUntilComplete(context.Background(), p, "task-1", PollOptions{MaxAttempts: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 3, p.calls)
}

func TestPollUntilCompleteAbortsOnConfigurationError(t *testing.T) {
	p := &scriptedProvider{responses: []func() (*TaskDetail, error){failWith(KindConfiguration)}}

	_, err := PollUntilComplete(context.Background(), p, "task-1", PollOptions{MaxAttempts: 5})
	assert.True(t, IsConfiguration(err))
	assert.Equal(t, 1, p.calls)
}

func TestPollUntilCompleteHonoursCancellation(t *testing.T) {
	p := &scriptedProvider{responses: []func() (*TaskDetail, error){state(StateGenerating, "")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PollUntilComplete(ctx, p, "task-1", PollOptions{MaxAttempts: 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}

func TestExtractURLTakesFirstHit(t *testing.T) {
	raw := json.RawMessage(`{"a":"","b":"https://cdn/b.mp4","c":"https://cdn/c.mp4"}`)
	field := func(name string) URLExtractor {
		return func(raw json.RawMessage) (string, bool) {
			var m map[string]string
			if err := json.Unmarshal(raw, &m); err != nil {
				return "", false
			}
			v, ok := m[name]
			return v, ok
		}
	}

	u, err := ExtractURL("x", raw, field("missing"), field("a"), field("b"), field("c"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/b.mp4", u)

	_, err = ExtractURL("x", raw, field("missing"), field("a"))
	assert.Equal(t, KindData, KindOf(err))
}

func TestDoJSONClassifiesStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnauthorized, KindConfiguration},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusBadRequest, KindTerminal},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		err := DoJSON(context.Background(), srv.Client(), "x", JSONRequest{Method: http.MethodGet, URL: srv.URL}, nil)
		srv.Close()

		var pe *Error
		require.True(t, errors.As(err, &pe), "code %d", tt.code)
		assert.Equal(t, tt.want, pe.Kind, "code %d", tt.code)
		assert.Equal(t, tt.code, pe.StatusCode)
	}
}

func TestDoJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := DoJSON(context.Background(), srv.Client(), "x", JSONRequest{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer k"},
		Body:    map[string]string{"q": "hi"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestRegistryGetUnknownIsConfigurationError(t *testing.T) {
	r := NewRegistry(&scriptedProvider{}, nil)
	_, err := r.Get("scripted")
	require.NoError(t, err)

	_, err = r.Get("missing")
	assert.True(t, IsConfiguration(err))
}
