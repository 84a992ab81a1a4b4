package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel   = "gemini-flash-latest"
	DefaultTimeout = 60 * time.Second
)

// Error wraps any failure while talking to the model.
type Error struct {
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference with model %s failed: %v", e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var errEmptyResponse = errors.New("model returned no text")

// generator is the subset of *genai.GenerativeModel used here
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient asks a Gemini vision model for a nutrition estimate of a JPEG image.
type GeminiClient struct {
	client    *genai.Client
	model     generator
	modelName string
	prompt    string
	timeout   time.Duration
}

// NewGeminiClient creates a client for the given model. An empty model name selects DefaultModel,
// a non-positive timeout selects DefaultTimeout.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gc := newGeminiClient(client.GenerativeModel(modelName), modelName, timeout)
	gc.client = client
	return gc, nil
}

func newGeminiClient(model generator, modelName string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiClient{
		model:     model,
		modelName: modelName,
		prompt:    NutritionPrompt,
		timeout:   timeout,
	}
}

// Infer sends the nutrition prompt together with the JPEG image and returns the raw answer text.
// It does not retry; every failure is returned as *Error.
func (c *GeminiClient) Infer(ctx context.Context, jpegImage []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	slog.Debug("GeminiClient: sending image for analysis",
		"model", c.modelName,
		"image_size_bytes", len(jpegImage),
		"timeout", c.timeout)

	resp, err := c.model.GenerateContent(ctx, genai.Text(c.prompt), genai.ImageData("jpeg", jpegImage))
	if err != nil {
		slog.Error("GeminiClient: generate content failed", "model", c.modelName, "error", err)
		return "", &Error{Model: c.modelName, Err: err}
	}

	text := responseText(resp)
	if text == "" {
		slog.Error("GeminiClient: empty response", "model", c.modelName)
		return "", &Error{Model: c.modelName, Err: errEmptyResponse}
	}

	slog.Debug("GeminiClient: analysis complete",
		"model", c.modelName,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(text))
	return text, nil
}

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
