package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// svgFallbackSize is the render size for SVGs without explicit width and height
	svgFallbackSize = 1024

	// DefaultMaxPixels bounds width*height of an accepted upload
	DefaultMaxPixels = 40_000_000

	// MaxPixelsCeiling bounds every decode, whatever limit the normalizer was given
	MaxPixelsCeiling = 100_000_000
)

// DecodeError reports input that is not a decodable still image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("input is not a decodable image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeImage decodes raster formats via the registered decoders and rasterizes SVG input.
func decodeImage(data []byte) (image.Image, string, error) {
	if err := checkPixelLimit(data, MaxPixelsCeiling); err != nil {
		return nil, "", err
	}

	if isSVGData(data) {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, "", &DecodeError{Err: err}
		}
		return img, "svg", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	return img, format, nil
}

// imageSize reports the dimensions decodeImage would allocate, without decoding pixels.
func imageSize(data []byte) (int, int, string, error) {
	if isSVGData(data) {
		w, h := svgRenderSize(data)
		return w, h, "svg", nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}

// checkPixelLimit rejects input whose decoded size would exceed maxPixels with a *DecodeError.
func checkPixelLimit(data []byte, maxPixels int) error {
	if len(data) == 0 {
		return &DecodeError{Err: fmt.Errorf("empty image data")}
	}
	w, h, format, err := imageSize(data)
	if err != nil {
		return &DecodeError{Err: err}
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return &DecodeError{Err: fmt.Errorf("%s image of %dx%d exceeds the limit of %d pixels", format, w, h, maxPixels)}
	}
	return nil
}

// isSVGData checks the first bytes for an svg tag.
func isSVGData(data []byte) bool {
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg"))
}

func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := svgRenderSize(data)
	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := newCanvas(w, h, color.White)
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return dst, nil
}

func svgRenderSize(data []byte) (int, int) {
	if w, h, ok := parseSVGExplicitSize(data); ok {
		return w, h
	}
	return svgFallbackSize, svgFallbackSize
}

// parseSVGExplicitSize reads integer width and height attributes from the svg start tag.
func parseSVGExplicitSize(data []byte) (int, int, bool) {
	s := strings.ToLower(string(data))
	start := strings.Index(s, "<svg")
	if start < 0 {
		return 0, 0, false
	}
	end := strings.Index(s[start:], ">")
	if end < 0 {
		return 0, 0, false
	}
	tag := s[start : start+end]

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if !wOk || !hOk {
		return 0, 0, false
	}
	return w, h, true
}

// parseNumericAttr extracts the leading integer of a quoted attribute value, e.g. width="120px".
// Values are clamped just above MaxPixelsCeiling so the pixel product cannot overflow.
func parseNumericAttr(tag, attr string) (int, bool) {
	pos := strings.Index(tag, " "+attr+"=")
	if pos < 0 {
		return 0, false
	}
	val := tag[pos+len(attr)+2:]
	val = strings.TrimLeft(val, `"'`)

	num := 0
	found := false
	for i := 0; i < len(val); i++ {
		ch := val[i]
		if ch < '0' || ch > '9' {
			break
		}
		found = true
		num = num*10 + int(ch-'0')
		if num > MaxPixelsCeiling {
			num = MaxPixelsCeiling + 1
			break
		}
	}
	return num, found && num > 0
}

// newCanvas returns an RGBA canvas filled with bg.
func newCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return dst
}
