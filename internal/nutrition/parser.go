package nutrition

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ParseError reports model output that could not be decoded as a JSON object.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to decode model response as JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a decoded answer that lacks one or more required keys.
type ValidationError struct {
	MissingKeys []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model response is missing required keys: %s", strings.Join(e.MissingKeys, ", "))
}

// StripCodeFences removes markdown code fence markers and surrounding whitespace.
func StripCodeFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// Parse turns the raw model answer into an Estimate.
// Values are taken over exactly as decoded; no clamping or rounding happens here.
func Parse(raw string) (*Estimate, error) {
	text := StripCodeFences(raw)

	slog.Debug("Parse: decoding model response", "length", len(text))

	if !strings.HasPrefix(text, "{") {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("expected a JSON object, got %q", truncate(text, 40))}
	}

	// keys are matched exactly, including case
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	var missing []string
	for _, key := range RequiredKeys {
		if value, ok := fields[key]; !ok || string(value) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slog.Debug("Parse: response is missing keys", "missing", missing)
		return nil, &ValidationError{MissingKeys: missing}
	}

	estimate := &Estimate{}
	targets := map[string]any{
		"menu_name": &estimate.MenuName,
		"kcal":      &estimate.Kcal,
		"p":         &estimate.ProteinG,
		"f":         &estimate.FatG,
		"c":         &estimate.CarbG,
	}
	for _, key := range RequiredKeys {
		if err := json.Unmarshal(fields[key], targets[key]); err != nil {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("key %q: %w", key, err)}
		}
	}

	return estimate, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
