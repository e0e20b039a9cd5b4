// Package rasterimage is the concrete raster image collaborator:
// load from path, save to path with a configurable pixel format, and
// an in-memory RGBA buffer with get/set pixel and box-filter
// resample. It exists so the palettizer core can be exercised
// end-to-end in tests without a real asset pipeline.
package rasterimage

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/KononK/resize"
	"github.com/esimov/colorquant"
	"golang.org/x/image/draw"
)

// ErrUnreadable is returned by Load when the source file exists but
// could not be decoded as an image, or the path does not exist. The
// placement engine maps this to MissingSource.
var ErrUnreadable = errors.New("unreadable source image")

// RGBA is an in-memory pixel buffer, wrapping stdlib image.RGBA with
// the channel-count bookkeeping the palettizer's pixel-format
// classification needs.
type RGBA struct {
	Img      *image.RGBA
	HasAlpha bool
}

// NewCanvas allocates a w x h buffer filled with background.
func NewCanvas(w, h int, background color.RGBA) *RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	return &RGBA{Img: img, HasAlpha: true}
}

// Load decodes an image from path. PNG and any format registered via
// image.RegisterFormat are supported; only PNG is registered by
// default.
func Load(path string) (*RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	return &RGBA{Img: rgba, HasAlpha: hasAlpha(img)}, nil
}

func hasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return true
	default:
		return false
	}
}

// At returns the pixel at (x, y).
func (r *RGBA) At(x, y int) color.RGBA {
	return r.Img.RGBAAt(x, y)
}

// Set writes the pixel at (x, y).
func (r *RGBA) Set(x, y int, c color.RGBA) {
	r.Img.SetRGBA(x, y, c)
}

// Bounds returns the buffer's pixel bounds.
func (r *RGBA) Bounds() image.Rectangle { return r.Img.Bounds() }

// Resample box-filters r to a new w x h buffer. The nearest available
// kernel in KononK/resize is Bilinear, used here as the closest stock
// approximation to a box filter (documented in SPEC_FULL.md).
func (r *RGBA) Resample(w, h int) *RGBA {
	if w <= 0 || h <= 0 {
		return NewCanvas(max(w, 1), max(h, 1), color.RGBA{})
	}
	resized := resize.Resize(uint(w), uint(h), r.Img, resize.Bilinear)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return &RGBA{Img: out, HasAlpha: r.HasAlpha}
}

// SaveOptions configures Save's output format.
type SaveOptions struct {
	// QuantizeColors, if > 0, palette-reduces the image to at most
	// this many colors before writing, via esimov/colorquant.
	QuantizeColors int
}

// Save writes r to path as PNG, optionally palette-quantized first.
func Save(path string, r *RGBA, opts SaveOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving atlas: %w", err)
	}
	defer f.Close()

	var out image.Image = r.Img
	if opts.QuantizeColors > 0 {
		dst := image.NewPaletted(r.Img.Bounds(), palette256())
		out = colorquant.NoDither.Quantize(r.Img, dst, opts.QuantizeColors, false, true)
	}

	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("saving atlas: %w", err)
	}
	return nil
}

func palette256() color.Palette {
	pal := make(color.Palette, 0, 256)
	for i := 0; i < 256; i++ {
		v := uint8(i)
		pal = append(pal, color.RGBA{R: v, G: v, B: v, A: 0xff})
	}
	return pal
}
