package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"

	"golang.org/x/image/draw"
)

const (
	jpegConverterCommandName = "JpegConverterCommand"
	DefaultJpegQuality       = 90
)

// JpegConverterCommand re-encodes any decodable image as baseline JPEG.
// Transparent areas are flattened onto white.
type JpegConverterCommand struct {
	quality int
}

// NewJpegConverterCommand creates a JPEG converter; "quality" defaults to DefaultJpegQuality.
func NewJpegConverterCommand(params map[string]any) (Command, error) {
	quality := getIntParam(params, "quality", DefaultJpegQuality)
	return NewJpegConverterCommandWithQuality(quality)
}

// NewJpegConverterCommandWithQuality creates a JPEG converter from a concrete quality value
func NewJpegConverterCommandWithQuality(quality int) (*JpegConverterCommand, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", quality)
	}
	return &JpegConverterCommand{quality: quality}, nil
}

func (c *JpegConverterCommand) Name() string {
	return jpegConverterCommandName
}

// GetQuality returns the configured JPEG quality
func (c *JpegConverterCommand) GetQuality() int {
	return c.quality
}

func (c *JpegConverterCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("JpegConverterCommand: failed to decode image", "error", err)
		return nil, err
	}

	slog.Debug("JpegConverterCommand: decoded image",
		"current_format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: c.quality}); err != nil {
		slog.Error("JpegConverterCommand: failed to encode JPEG", "error", err)
		return nil, fmt.Errorf("failed to encode image to JPEG: %w", err)
	}

	slog.Debug("JpegConverterCommand: conversion complete", "output_size_bytes", buf.Len())
	return buf.Bytes(), nil
}

// flatten draws img over a white canvas when it may carry transparency
func flatten(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.CMYK:
		return img
	}
	bounds := img.Bounds()
	dst := newCanvas(bounds.Dx(), bounds.Dy(), color.White)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
