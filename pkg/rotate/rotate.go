// Package rotate turns images upside down, keeping the source format where an encoder exists.
package rotate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Registers the WebP decoder with image.Decode
)

// ErrUnsupportedFormat is returned for data no registered decoder recognizes
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Result is a rotated, re-encoded image
type Result struct {
	Data         []byte
	SourceFormat string // As reported by the decoder: jpeg, png, gif, bmp, tiff, webp
	OutputFormat string
}

// Rotator rotates images 180 degrees
type Rotator struct {
	jpegQuality int
}

// New creates a Rotator. jpegQuality is used when re-encoding JPEG sources.
func New(jpegQuality int) *Rotator {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 95
	}
	return &Rotator{jpegQuality: jpegQuality}
}

// outputFormat maps a decoder format name to the encoder used for the result.
// WebP has no encoder in the stdlib or x/image, those are written as PNG.
func outputFormat(source string) (imaging.Format, string, bool) {
	switch source {
	case "jpeg":
		return imaging.JPEG, "jpeg", true
	case "png", "webp":
		return imaging.PNG, "png", true
	case "gif":
		return imaging.GIF, "gif", true
	case "bmp":
		return imaging.BMP, "bmp", true
	case "tiff":
		return imaging.TIFF, "tiff", true
	}
	return 0, "", false
}

// Rotate180 decodes data, rotates it 180 degrees and encodes the result
func (r *Rotator) Rotate180(data []byte) (*Result, error) {
	_, source, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	format, outName, ok := outputFormat(source)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}

	if source == "gif" {
		out, err := rotateGIF(data)
		if err != nil {
			return nil, err
		}
		return &Result{Data: out, SourceFormat: source, OutputFormat: outName}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", source, err)
	}
	rotated := imaging.Rotate180(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rotated, format, imaging.JPEGQuality(r.jpegQuality)); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", outName, err)
	}
	return &Result{Data: buf.Bytes(), SourceFormat: source, OutputFormat: outName}, nil
}

// rotateGIF rotates every frame in place on the logical canvas, keeping palettes, delays and disposal
func rotateGIF(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding gif: %w", err)
	}
	canvas := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	for i, frame := range g.Image {
		g.Image[i] = rotatePaletted180(frame, canvas)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("encoding gif: %w", err)
	}
	return buf.Bytes(), nil
}

// rotatePaletted180 rotates a frame whose bounds may be a sub-rectangle of canvas
func rotatePaletted180(src *image.Paletted, canvas image.Rectangle) *image.Paletted {
	b := src.Bounds()
	nb := image.Rect(
		canvas.Min.X+canvas.Max.X-b.Max.X,
		canvas.Min.Y+canvas.Max.Y-b.Max.Y,
		canvas.Min.X+canvas.Max.X-b.Min.X,
		canvas.Min.Y+canvas.Max.Y-b.Min.Y,
	)
	dst := image.NewPaletted(nb, src.Palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetColorIndex(nb.Min.X+b.Max.X-1-x, nb.Min.Y+b.Max.Y-1-y, src.ColorIndexAt(x, y))
		}
	}
	return dst
}
