package modes

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kaptinlin/jsonschema"
	"gopkg.in/yaml.v3"
)

// Mode is a parsed generation-mode manifest. A mode names the preferred
// (provider, model) pair and the task parameters sent with it.
type Mode struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	DurationSeconds int    `yaml:"duration_seconds"`
	RemoveWatermark bool   `yaml:"remove_watermark"`
	// SettingsSchema is an inline JSON Schema for per-plan generation settings.
	SettingsSchema string `yaml:"settings_schema"`

	schema *jsonschema.Schema
}

// Target is one (provider, model) pair.
type Target struct {
	Provider string
	Model    string
}

// Primary resolves the preferred target, applying per-plan "provider" and
// "model" overrides when present.
func (m *Mode) Primary(settings map[string]any) Target {
	t := Target{Provider: m.Provider, Model: m.Model}
	if v, ok := settings["provider"].(string); ok && v != "" {
		t.Provider = v
	}
	if v, ok := settings["model"].(string); ok && v != "" {
		t.Model = v
	}
	return t
}

// ParseManifest decodes a mode manifest. Unknown keys are rejected so typos
// in operator-supplied files fail loudly.
func ParseManifest(r io.Reader) (*Mode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read mode manifest: %w", err)
	}

	var m Mode
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse mode manifest: %w", err)
	}

	if m.Name == "" {
		return nil, fmt.Errorf("mode manifest missing required field: name")
	}
	if m.Provider == "" {
		return nil, fmt.Errorf("mode %s missing required field: provider", m.Name)
	}
	if m.Model == "" {
		return nil, fmt.Errorf("mode %s missing required field: model", m.Name)
	}
	if m.DurationSeconds <= 0 {
		m.DurationSeconds = 10
	}
	return &m, nil
}
