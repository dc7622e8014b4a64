package raster

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Snapshot is the last frame a dashboard rendered for a chart. MaxPixels bounds the
// scaled output; zero means no bound.
type Snapshot struct {
	ID          string
	Title       string
	Image       image.Image
	CrossOrigin bool
	MaxPixels   int64
}

// SnapshotSurface serves a fixed Snapshot as a Surface.
type SnapshotSurface struct {
	snapshot Snapshot
}

// NewSnapshotSurface wraps a snapshot.
func NewSnapshotSurface(snapshot Snapshot) *SnapshotSurface {
	return &SnapshotSurface{snapshot: snapshot}
}

func (s *SnapshotSurface) ID() string    { return s.snapshot.ID }
func (s *SnapshotSurface) Title() string { return s.snapshot.Title }

// ProduceRaster scales the snapshot by scale over an opaque background fill. The scale
// is reduced when the output would exceed MaxPixels.
func (s *SnapshotSurface) ProduceRaster(ctx context.Context, scale float64, background color.Color, allowCrossOrigin bool) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := s.snapshot.Image
	if src == nil || src.Bounds().Empty() {
		return nil, ErrSurfaceUnavailable
	}
	if s.snapshot.CrossOrigin && !allowCrossOrigin {
		return nil, ErrSurfaceTainted
	}
	if scale <= 0 {
		scale = 1
	}
	if background == nil {
		background = color.White
	}

	sb := src.Bounds()
	scale = clampScale(sb.Dx(), sb.Dy(), scale, s.snapshot.MaxPixels)
	width := int(math.Round(float64(sb.Dx()) * scale))
	height := int(math.Round(float64(sb.Dy()) * scale))
	if width < 1 || height < 1 {
		return nil, ErrSurfaceUnavailable
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst, nil
}

func clampScale(width, height int, scale float64, maxPixels int64) float64 {
	if maxPixels <= 0 {
		return scale
	}
	scaled := float64(width) * float64(height) * scale * scale
	if scaled <= float64(maxPixels) {
		return scale
	}
	// floor keeps the rounded output within the bound
	limit := math.Sqrt(float64(maxPixels) / (float64(width) * float64(height)))
	w := math.Floor(float64(width) * limit)
	h := math.Floor(float64(height) * limit)
	return math.Min(w/float64(width), h/float64(height))
}
