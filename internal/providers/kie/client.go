// Package kie is the kie.ai client for Sora text-to-video tasks.
package kie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelcast/autopilot/internal/providers"
)

// Name is the provider tag persisted on videos.
const Name = "kie"

const defaultTimeout = 30 * time.Second

// Settings configures the client. It is copied at construction.
type Settings struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the kie.ai jobs API.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient creates a kie.ai client.
func NewClient(settings Settings) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.kie.ai"
	}
	return &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
	}
}

// Name implements providers.VideoProvider.
func (c *Client) Name() string { return Name }

type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type createInput struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	NFrames         string `json:"n_frames"`
	RemoveWatermark bool   `json:"remove_watermark"`
}

type createBody struct {
	Model       string      `json:"model"`
	CallBackURL string      `json:"callBackUrl,omitempty"`
	Input       createInput `json:"input"`
}

// CreateTask implements providers.VideoProvider.
func (c *Client) CreateTask(ctx context.Context, req providers.CreateTaskRequest) (string, error) {
	if c.settings.APIKey == "" {
		return "", providers.ConfigError(Name, "KIE_API_KEY is not set")
	}

	body := createBody{
		Model:       req.Model,
		CallBackURL: req.CallbackURL,
		Input: createInput{
			Prompt:          req.Prompt,
			AspectRatio:     aspectRatio(req.AspectRatio),
			NFrames:         nFrames(req.DurationSeconds),
			RemoveWatermark: req.RemoveWatermark,
		},
	}

	var resp envelope[struct {
		TaskID string `json:"taskId"`
	}]
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodPost,
		URL:     c.settings.BaseURL + "/api/v1/jobs/createTask",
		Headers: c.headers(),
		Body:    body,
	}, &resp); err != nil {
		return "", err
	}
	if err := envelopeError(resp.Code, resp.Msg); err != nil {
		return "", err
	}
	if resp.Data.TaskID == "" {
		return "", &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "create task returned no task id"}
	}
	return resp.Data.TaskID, nil
}

type recordInfo struct {
	TaskID     string `json:"taskId"`
	Model      string `json:"model"`
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

// GetTaskStatus implements providers.VideoProvider.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskDetail, error) {
	if c.settings.APIKey == "" {
		return nil, providers.ConfigError(Name, "KIE_API_KEY is not set")
	}

	var resp envelope[json.RawMessage]
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodGet,
		URL:     c.settings.BaseURL + "/api/v1/jobs/recordInfo?taskId=" + url.QueryEscape(taskID),
		Headers: c.headers(),
	}, &resp); err != nil {
		return nil, err
	}
	if err := envelopeError(resp.Code, resp.Msg); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, &providers.Error{Kind: providers.KindNotFound, Provider: Name, Message: "task " + taskID + " not found"}
	}

	var info recordInfo
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		return nil, &providers.Error{Kind: providers.KindData, Provider: Name, Message: "failed to decode task record", Err: err}
	}

	detail := &providers.TaskDetail{
		TaskID:   taskID,
		State:    MapState(info.State),
		RawState: info.State,
		Raw:      resp.Data,
	}
	if detail.State == providers.StateFailed {
		detail.Error = strings.TrimSpace(strings.Join([]string{info.FailCode, info.FailMsg}, " "))
	}
	return detail, nil
}

// ResultURL implements providers.VideoProvider.
func (c *Client) ResultURL(detail *providers.TaskDetail) (string, error) {
	return providers.ExtractURL(Name, detail.Raw, resultJSONURLs, resultJSONVideoURL, directResultURLs)
}

// MapState collapses kie.ai task states onto the internal vocabulary.
func MapState(state string) providers.State {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "success":
		return providers.StateCompleted
	case "fail", "failed":
		return providers.StateFailed
	default:
		return providers.StateGenerating
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.settings.APIKey}
}

func envelopeError(code int, msg string) error {
	if code == 0 || code == http.StatusOK {
		return nil
	}
	return &providers.Error{
		Kind:       providers.ClassifyStatus(code),
		Provider:   Name,
		StatusCode: code,
		Message:    msg,
	}
}

func aspectRatio(v string) string {
	switch strings.TrimSpace(v) {
	case "16:9", "landscape":
		return "landscape"
	default:
		return "portrait"
	}
}

func nFrames(seconds int) string {
	if seconds >= 15 {
		return "15"
	}
	return "10"
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
	VideoURL   string   `json:"videoUrl"`
}

func decodeResultJSON(raw json.RawMessage) (resultPayload, bool) {
	var info recordInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.ResultJSON == "" {
		return resultPayload{}, false
	}
	var payload resultPayload
	if err := json.Unmarshal([]byte(info.ResultJSON), &payload); err != nil {
		return resultPayload{}, false
	}
	return payload, true
}

func resultJSONURLs(raw json.RawMessage) (string, bool) {
	payload, ok := decodeResultJSON(raw)
	if !ok {
		return "", false
	}
	return providers.FirstNonEmpty(payload.ResultURLs)
}

func resultJSONVideoURL(raw json.RawMessage) (string, bool) {
	payload, ok := decodeResultJSON(raw)
	if !ok {
		return "", false
	}
	return payload.VideoURL, payload.VideoURL != ""
}

func directResultURLs(raw json.RawMessage) (string, bool) {
	var direct struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal(raw, &direct); err != nil {
		return "", false
	}
	return providers.FirstNonEmpty(direct.ResultURLs)
}

var _ providers.VideoProvider = (*Client)(nil)
