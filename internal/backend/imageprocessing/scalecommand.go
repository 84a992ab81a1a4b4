package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"
)

const scaleCommandName = "ScaleCommand"

// ScaleParams represents typed parameters for scale command
type ScaleParams struct {
	MaxWidth  int
	MaxHeight int
}

// NewScaleParamsFromMap creates ScaleParams from a generic map
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	for _, key := range []string{"maxWidth", "maxHeight"} {
		if _, ok := params[key]; !ok {
			return nil, fmt.Errorf("missing required parameter: %s", key)
		}
	}

	maxWidth := getIntParam(params, "maxWidth", 0)
	maxHeight := getIntParam(params, "maxHeight", 0)
	if maxWidth <= 0 {
		return nil, fmt.Errorf("maxWidth must be positive, got %d", maxWidth)
	}
	if maxHeight <= 0 {
		return nil, fmt.Errorf("maxHeight must be positive, got %d", maxHeight)
	}

	return &ScaleParams{MaxWidth: maxWidth, MaxHeight: maxHeight}, nil
}

// ScaleCommand shrinks images that exceed the configured bounds, preserving the aspect ratio.
// Images already within bounds pass through unchanged.
type ScaleCommand struct {
	params *ScaleParams
}

// NewScaleCommand creates a new scale command from configuration parameters
func NewScaleCommand(params map[string]any) (Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ScaleCommand{params: typedParams}, nil
}

func (c *ScaleCommand) Name() string {
	return scaleCommandName
}

// GetParams returns the typed parameters
func (c *ScaleCommand) GetParams() *ScaleParams {
	return c.params
}

func (c *ScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("ScaleCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= c.params.MaxWidth && height <= c.params.MaxHeight {
		slog.Debug("ScaleCommand: image within bounds; skipping",
			"format", format, "width", width, "height", height)
		return imageData, nil
	}

	scaledWidth, scaledHeight := computeFitDimensions(width, height, c.params.MaxWidth, c.params.MaxHeight)
	slog.Debug("ScaleCommand: scaling image",
		"format", format,
		"orig_width", width,
		"orig_height", height,
		"scaled_width", scaledWidth,
		"scaled_height", scaledHeight)

	dst := image.NewRGBA(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	// PNG keeps the intermediate lossless; the JPEG conversion runs last
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		slog.Error("ScaleCommand: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled image: %w", err)
	}
	return buf.Bytes(), nil
}

// computeFitDimensions returns the largest size within maxWidth x maxHeight with the original aspect ratio.
func computeFitDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	widthRatio := float64(maxWidth) / float64(width)
	heightRatio := float64(maxHeight) / float64(height)
	ratio := widthRatio
	if heightRatio < ratio {
		ratio = heightRatio
	}

	scaledWidth := int(float64(width) * ratio)
	scaledHeight := int(float64(height) * ratio)
	if scaledWidth < 1 {
		scaledWidth = 1
	}
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	return scaledWidth, scaledHeight
}
