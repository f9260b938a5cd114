package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// JSONRequest describes a JSON API call.
type JSONRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// DoJSON executes req and decodes a 2xx response body into out.
// Non-2xx responses and transport failures are returned as classified *Error values.
func DoJSON(ctx context.Context, client *http.Client, provider string, req JSONRequest, out any) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindTerminal, Provider: provider, Message: "failed to marshal request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return &Error{Kind: KindTerminal, Provider: provider, Message: "failed to create request", Err: err}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindTransient, Provider: provider, Message: "failed to execute request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransient, Provider: provider, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:       ClassifyStatus(resp.StatusCode),
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(raw)), maxErrorBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindData, Provider: provider, Message: "failed to decode response", Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
