// Package heygen is the HeyGen avatar video client. The task model is the
// avatar id and the narration script is spoken by the configured voice.
package heygen

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
const Name = "heygen"

// Settings configures the client.
type Settings struct {
	APIKey  string
	BaseURL string
	VoiceID string
	Timeout time.Duration
}

// Client talks to the HeyGen API.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient creates a HeyGen client.
func NewClient(settings Settings) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.heygen.com"
	}
	return &Client{settings: settings, httpClient: &http.Client{Timeout: settings.Timeout}}
}

// Name implements providers.VideoProvider.
func (c *Client) Name() string { return Name }

type character struct {
	Type     string `json:"type"`
	AvatarID string `json:"avatar_id"`
}

type voice struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id,omitempty"`
}

type videoInput struct {
	Character character `json:"character"`
	Voice     voice     `json:"voice"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateBody struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
	Callback    string       `json:"callback_url,omitempty"`
}

type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-Api-Key": c.settings.APIKey}
}

// CreateTask implements providers.VideoProvider.
func (c *Client) CreateTask(ctx context.Context, req providers.CreateTaskRequest) (string, error) {
	if c.settings.APIKey == "" {
		return "", providers.ConfigError(Name, "HEYGEN_API_KEY is not set")
	}
	if req.Model == "" {
		return "", providers.ConfigError(Name, "avatar id is required")
	}

	text := req.Script
	if text == "" {
		text = req.Prompt
	}
	dim := dimension{Width: 720, Height: 1280}
	if req.AspectRatio == "landscape" {
		dim = dimension{Width: 1280, Height: 720}
	}

	var resp envelope
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodPost,
		URL:     c.settings.BaseURL + "/v2/video/generate",
		Headers: c.headers(),
		Body: generateBody{
			VideoInputs: []videoInput{{
				Character: character{Type: "avatar", AvatarID: req.Model},
				Voice:     voice{Type: "text", InputText: text, VoiceID: c.settings.VoiceID},
			}},
			Dimension: dim,
			Callback:  req.CallbackURL,
		},
	}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: resp.Error.Code + ": " + resp.Error.Message}
	}

	var data struct {
		VideoID string `json:"video_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.VideoID == "" {
		return "", &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "generate returned no video id", Err: err}
	}
	return data.VideoID, nil
}

// GetTaskStatus implements providers.VideoProvider.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskDetail, error) {
	if c.settings.APIKey == "" {
		return nil, providers.ConfigError(Name, "HEYGEN_API_KEY is not set")
	}

	var resp envelope
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodGet,
		URL:     c.settings.BaseURL + "/v1/video_status.get?video_id=" + url.QueryEscape(taskID),
		Headers: c.headers(),
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, &providers.Error{Kind: providers.KindNotFound, Provider: Name, Message: "video " + taskID + " not found"}
	}

	var data struct {
		Status string `json:"status"`
		Error  *struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, &providers.Error{Kind: providers.KindData, Provider: Name, Message: "failed to decode status", Err: err}
	}

	detail := &providers.TaskDetail{
		TaskID:   taskID,
		State:    MapState(data.Status),
		RawState: data.Status,
		Raw:      resp.Data,
	}
	if detail.State == providers.StateFailed && data.Error != nil {
		detail.Error, _ = providers.FirstNonEmpty([]string{data.Error.Message, data.Error.Detail})
	}
	return detail, nil
}

// ResultURL implements providers.VideoProvider.
func (c *Client) ResultURL(detail *providers.TaskDetail) (string, error) {
	return providers.ExtractURL(Name, detail.Raw,
		field(func(d urlFields) string { return d.VideoURL }),
		field(func(d urlFields) string { return d.VideoURLCaption }),
		field(func(d urlFields) string { return d.URL }),
	)
}

// MapState collapses HeyGen statuses onto the internal vocabulary.
func MapState(status string) providers.State {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return providers.StateCompleted
	case "failed":
		return providers.StateFailed
	default:
		return providers.StateGenerating
	}
}

type urlFields struct {
	VideoURL        string `json:"video_url"`
	VideoURLCaption string `json:"video_url_caption"`
	URL             string `json:"url"`
}

func field(pick func(urlFields) string) providers.URLExtractor {
	return func(raw json.RawMessage) (string, bool) {
		var d urlFields
		if json.Unmarshal(raw, &d) != nil {
			return "", false
		}
		v := pick(d)
		return v, v != ""
	}
}

var _ providers.VideoProvider = (*Client)(nil)
