package providers

import (
	"encoding/json"
	"strings"
)

// URLExtractor pulls a result URL out of a vendor payload. It reports false
// when its field is absent or empty.
type URLExtractor func(raw json.RawMessage) (string, bool)

// ExtractURL tries extractors in order and returns the first non-empty hit.
// A miss is a data error.
func ExtractURL(provider string, raw json.RawMessage, extractors ...URLExtractor) (string, error) {
	for _, extract := range extractors {
		if u, ok := extract(raw); ok {
			if u = strings.TrimSpace(u); u != "" {
				return u, nil
			}
		}
	}
	return "", &Error{Kind: KindData, Provider: provider, Message: "completed task has no result url"}
}

// FirstNonEmpty returns the first non-blank string in values.
func FirstNonEmpty(values []string) (string, bool) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
