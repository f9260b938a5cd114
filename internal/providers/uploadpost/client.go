// Package uploadpost publishes finished videos to social platforms through
// upload-post.com.
package uploadpost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/reelcast/autopilot/internal/providers"
)

// Name tags errors raised by this client.
const Name = "upload-post"

// Settings configures the client.
type Settings struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// PostRequest describes one distribution of a video.
type PostRequest struct {
	// User is the upload-post profile username.
	User      string
	Platforms []string
	VideoURL  string
	Title     string
	// ScheduledAt defers publishing. Nil publishes immediately.
	ScheduledAt *time.Time
	// APIKey overrides the client key for accounts with their own key.
	APIKey string
}

// PostResult is the upload-post acknowledgement.
type PostResult struct {
	RequestID string
	Scheduled bool
}

// Client talks to the upload-post.com API.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient creates an upload-post client.
func NewClient(settings Settings) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = 60 * time.Second
	}
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.upload-post.com"
	}
	return &Client{settings: settings, httpClient: &http.Client{Timeout: settings.Timeout}}
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	JobID     string `json:"job_id"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

// Publish uploads the video by URL to every requested platform.
func (c *Client) Publish(ctx context.Context, req PostRequest) (*PostResult, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.settings.APIKey
	}
	if apiKey == "" {
		return nil, providers.ConfigError(Name, "UPLOAD_POST_API_KEY is not set")
	}
	if req.User == "" {
		return nil, providers.ConfigError(Name, "no upload-post profile linked")
	}
	if len(req.Platforms) == 0 {
		return nil, &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "no target platforms"}
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"user", req.User},
		{"video", req.VideoURL},
		{"title", req.Title},
	}
	for _, p := range req.Platforms {
		fields = append(fields, [2]string{"platform[]", p})
	}
	if req.ScheduledAt != nil {
		fields = append(fields, [2]string{"scheduled_date", req.ScheduledAt.UTC().Format(time.RFC3339)})
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "failed to build form", Err: err}
		}
	}
	if err := form.Close(); err != nil {
		return nil, &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "failed to build form", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+"/api/upload", &buf)
	if err != nil {
		return nil, &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Apikey "+apiKey)
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &providers.Error{Kind: providers.KindTransient, Provider: Name, Message: "failed to execute request", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &providers.Error{
			Kind:       providers.ClassifyStatus(resp.StatusCode),
			Provider:   Name,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var body uploadResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &providers.Error{Kind: providers.KindData, Provider: Name, Message: "failed to decode response", Err: err}
	}
	if !body.Success {
		msg, _ := providers.FirstNonEmpty([]string{body.Error, body.Message, "upload rejected"})
		return nil, &providers.Error{Kind: providers.KindTerminal, Provider: Name, Message: msg}
	}

	id, _ := providers.FirstNonEmpty([]string{body.RequestID, body.JobID})
	return &PostResult{RequestID: id, Scheduled: req.ScheduledAt != nil}, nil
}
