// Package raster turns chart surfaces into encoded bitmap artifacts.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

var (
	// ErrSurfaceUnavailable is returned when a surface is not mounted or has no visible area.
	ErrSurfaceUnavailable = errors.New("surface unavailable")
	// ErrSurfaceTainted is returned when a surface holds cross-origin content and the
	// caller did not allow it.
	ErrSurfaceTainted = errors.New("surface tainted by cross-origin content")
)

// Surface is a rendered chart region able to snapshot its current pixels.
// Implementations must not be mutated by ProduceRaster.
type Surface interface {
	ID() string
	Title() string
	ProduceRaster(ctx context.Context, scale float64, background color.Color, allowCrossOrigin bool) (image.Image, error)
}

// Options tunes a single rasterization.
type Options struct {
	Scale            float64
	Background       color.Color
	AllowCrossOrigin bool
}

// Artifact is an encoded PNG bitmap plus the caption it was rasterized for.
type Artifact struct {
	SurfaceID string
	Caption   string
	Width     int
	Height    int
	Payload   []byte
}

// Rasterizer snapshots surfaces and encodes them as PNG.
type Rasterizer struct {
	defaults Options
}

// NewRasterizer constructs a rasterizer; zero-valued defaults fall back to scale 1 on white.
func NewRasterizer(defaults Options) *Rasterizer {
	if defaults.Scale <= 0 {
		defaults.Scale = 1
	}
	if defaults.Background == nil {
		defaults.Background = color.White
	}
	return &Rasterizer{defaults: defaults}
}

// Defaults returns the options used when callers have no preference.
func (r *Rasterizer) Defaults() Options {
	return r.defaults
}

// Rasterize snapshots the surface and returns the encoded artifact captioned with caption.
// An empty caption falls back to the surface title.
func (r *Rasterizer) Rasterize(ctx context.Context, surface Surface, caption string, opts Options) (*Artifact, error) {
	if surface == nil {
		return nil, ErrSurfaceUnavailable
	}
	if opts.Scale <= 0 {
		opts.Scale = r.defaults.Scale
	}
	if opts.Background == nil {
		opts.Background = r.defaults.Background
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := surface.ProduceRaster(ctx, opts.Scale, opts.Background, opts.AllowCrossOrigin)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", surface.ID(), err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("rasterize %s: %w", surface.ID(), ErrSurfaceUnavailable)
	}

	payload, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", surface.ID(), err)
	}
	if caption == "" {
		caption = surface.Title()
	}
	bounds := img.Bounds()
	return &Artifact{
		SurfaceID: surface.ID(),
		Caption:   caption,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Payload:   payload,
	}, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseHexColor accepts #rgb and #rrggbb notations.
func ParseHexColor(raw string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", raw)
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", raw, err)
	}
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 0xff}, nil
}
