package modes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

func (m *Mode) compileSchema() error {
	if strings.TrimSpace(m.SettingsSchema) == "" {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(m.SettingsSchema))
	if err != nil {
		return fmt.Errorf("failed to compile settings schema: %w", err)
	}
	m.schema = schema
	return nil
}

// ValidateSettings checks per-plan generation settings against the mode's
// schema. Modes without a schema accept anything.
func (m *Mode) ValidateSettings(settings map[string]any) error {
	if m.schema == nil {
		return nil
	}
	if settings == nil {
		settings = map[string]any{}
	}

	result := m.schema.Validate(settings)
	if result.IsValid() {
		return nil
	}

	var messages []string
	for field, evalErr := range result.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(messages)
	return fmt.Errorf("generation settings invalid for mode %s: %s", m.Name, strings.Join(messages, "; "))
}
