package imageprocessing

import (
	"fmt"
	"log/slog"
	"time"
)

// CommandInvoker executes a sequence of commands on image data
type CommandInvoker struct {
	commands []Command
}

// NewCommandInvoker creates a new command invoker
func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{
		commands: commands,
	}
}

// NewCommandInvokerFromConfigs creates the configured commands from the registry
func NewCommandInvokerFromConfigs(registry *CommandRegistry, configs []CommandConfig) (*CommandInvoker, error) {
	commands := make([]Command, 0, len(configs))
	for i, config := range configs {
		command, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create command at index %d (%s): %w", i, config.Name, err)
		}
		commands = append(commands, command)
	}
	return NewCommandInvoker(commands), nil
}

// Execute applies all commands in sequence to the image data
func (i *CommandInvoker) Execute(imageData []byte) ([]byte, error) {
	start := time.Now()

	slog.Debug("starting image processing pipeline",
		"command_count", len(i.commands),
		"input_size_bytes", len(imageData))

	currentData := imageData
	for idx, command := range i.commands {
		commandStart := time.Now()

		processedData, err := command.Execute(currentData)
		if err != nil {
			slog.Error("command execution failed",
				"index", idx,
				"command_name", command.Name(),
				"error", err,
				"input_size_bytes", len(currentData))
			return nil, fmt.Errorf("command %s (index %d) failed: %w", command.Name(), idx, err)
		}

		slog.Debug("command completed",
			"index", idx,
			"command_name", command.Name(),
			"duration_ms", time.Since(commandStart).Milliseconds(),
			"input_size_bytes", len(currentData),
			"output_size_bytes", len(processedData))

		currentData = processedData
	}

	slog.Debug("image processing pipeline completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
		"command_count", len(i.commands),
		"final_size_bytes", len(currentData))

	return currentData, nil
}

// Normalizer turns an uploaded photo into the JPEG that is analyzed and stored.
// It runs the configured commands and always finishes with a JPEG conversion.
type Normalizer struct {
	invoker   *CommandInvoker
	maxPixels int
}

// NewNormalizer builds a normalizer from command configs; a JpegConverterCommand is appended
// unless the configs already end with one. Zero values select DefaultJpegQuality and DefaultMaxPixels.
func NewNormalizer(configs []CommandConfig, jpegQuality, maxPixels int) (*Normalizer, error) {
	if jpegQuality == 0 {
		jpegQuality = DefaultJpegQuality
	}
	if maxPixels == 0 {
		maxPixels = DefaultMaxPixels
	}
	if maxPixels < 0 || maxPixels > MaxPixelsCeiling {
		return nil, fmt.Errorf("max pixels must be between 1 and %d, got %d", MaxPixelsCeiling, maxPixels)
	}

	invoker, err := NewCommandInvokerFromConfigs(DefaultRegistry, configs)
	if err != nil {
		return nil, err
	}

	if n := len(invoker.commands); n == 0 || invoker.commands[n-1].Name() != jpegConverterCommandName {
		converter, err := NewJpegConverterCommandWithQuality(jpegQuality)
		if err != nil {
			return nil, err
		}
		invoker.commands = append(invoker.commands, converter)
	}

	return &Normalizer{invoker: invoker, maxPixels: maxPixels}, nil
}

// Normalize returns JPEG bytes for any decodable still image. Undecodable or oversized input
// yields an error wrapping *DecodeError before any pixels are allocated.
func (n *Normalizer) Normalize(imageData []byte) ([]byte, error) {
	if err := checkPixelLimit(imageData, n.maxPixels); err != nil {
		slog.Warn("Normalizer: rejected input", "error", err, "input_size_bytes", len(imageData))
		return nil, err
	}
	return n.invoker.Execute(imageData)
}
