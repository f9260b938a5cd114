// Package poyo is the poyo.ai client for Sora generation tasks.
package poyo

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
const Name = "poyo"

// Settings configures the client. It is copied at construction.
type Settings struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the poyo.ai generation API.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient creates a poyo.ai client.
func NewClient(settings Settings) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.poyo.ai"
	}
	return &Client{settings: settings, httpClient: &http.Client{Timeout: settings.Timeout}}
}

// Name implements providers.VideoProvider.
func (c *Client) Name() string { return Name }

type submitBody struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	Duration        int    `json:"duration"`
	RemoveWatermark bool   `json:"remove_watermark"`
	CallbackURL     string `json:"callback_url,omitempty"`
}

type response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateTask implements providers.VideoProvider.
func (c *Client) CreateTask(ctx context.Context, req providers.CreateTaskRequest) (string, error) {
	if c.settings.APIKey == "" {
		return "", providers.ConfigError(Name, "POYO_API_KEY is not set")
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		duration = 10
	}
	ratio := req.AspectRatio
	if ratio == "" || ratio == "portrait" {
		ratio = "9:16"
	} else if ratio == "landscape" {
		ratio = "16:9"
	}

	var resp response[struct {
		TaskID string `json:"task_id"`
	}]
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodPost,
		URL:     c.settings.BaseURL + "/api/generate/submit",
		Headers: map[string]string{"Authorization": "Bearer " + c.settings.APIKey},
		Body: submitBody{
			Model:           req.Model,
			Prompt:          req.Prompt,
			AspectRatio:     ratio,
			Duration:        duration,
			RemoveWatermark: req.RemoveWatermark,
			CallbackURL:     req.CallbackURL,
		},
	}, &resp); err != nil {
		return "", err
	}
	if resp.Code != 0 && resp.Code != http.StatusOK {
		return "", &providers.Error{Kind: providers.ClassifyStatus(resp.Code), Provider: Name, StatusCode: resp.Code, Message: resp.Message}
	}
	if resp.Data.TaskID == "" {
		return "", &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "submit returned no task id"}
	}
	return resp.Data.TaskID, nil
}

type statusData struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// GetTaskStatus implements providers.VideoProvider.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskDetail, error) {
	if c.settings.APIKey == "" {
		return nil, providers.ConfigError(Name, "POYO_API_KEY is not set")
	}

	var resp response[json.RawMessage]
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodGet,
		URL:     c.settings.BaseURL + "/api/generate/status/" + url.PathEscape(taskID),
		Headers: map[string]string{"Authorization": "Bearer " + c.settings.APIKey},
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 && resp.Code != http.StatusOK {
		return nil, &providers.Error{Kind: providers.ClassifyStatus(resp.Code), Provider: Name, StatusCode: resp.Code, Message: resp.Message}
	}

	var data statusData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &providers.Error{Kind: providers.KindData, Provider: Name, Message: "failed to decode status", Err: err}
	}

	detail := &providers.TaskDetail{
		TaskID:   taskID,
		State:    MapState(data.Status),
		RawState: data.Status,
		Raw:      resp.Data,
	}
	if detail.State == providers.StateFailed {
		detail.Error = data.ErrorMessage
	}
	return detail, nil
}

// ResultURL implements providers.VideoProvider.
func (c *Client) ResultURL(detail *providers.TaskDetail) (string, error) {
	return providers.ExtractURL(Name, detail.Raw, videoURL, outputVideoURL, firstFileURL)
}

// MapState collapses poyo.ai statuses onto the internal vocabulary.
func MapState(status string) providers.State {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "finished", "completed", "success":
		return providers.StateCompleted
	case "failed", "error":
		return providers.StateFailed
	default:
		return providers.StateGenerating
	}
}

func videoURL(raw json.RawMessage) (string, bool) {
	var v struct {
		VideoURL string `json:"video_url"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return "", false
	}
	return v.VideoURL, v.VideoURL != ""
}

func outputVideoURL(raw json.RawMessage) (string, bool) {
	var v struct {
		Output struct {
			VideoURL string `json:"video_url"`
		} `json:"output"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return "", false
	}
	return v.Output.VideoURL, v.Output.VideoURL != ""
}

func firstFileURL(raw json.RawMessage) (string, bool) {
	var v struct {
		Files []struct {
			FileURL string `json:"file_url"`
		} `json:"files"`
	}
	if json.Unmarshal(raw, &v) != nil {
		return "", false
	}
	for _, f := range v.Files {
		if f.FileURL != "" {
			return f.FileURL, true
		}
	}
	return "", false
}

var _ providers.VideoProvider = (*Client)(nil)
