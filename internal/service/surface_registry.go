package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/png" // snapshot decoding
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/raster"
)

// SurfaceLimits bounds what a dashboard may upload. Zero values fall back to defaults,
// except MaxOutputPixels where zero leaves the scaled raster unbounded.
type SurfaceLimits struct {
	MaxBytes        int64
	MaxPixels       int64
	MaxOutputPixels int64
}

const (
	defaultSnapshotBytes  = 8 * 1024 * 1024
	defaultSnapshotPixels = 4096 * 4096
)

type surfaceKey struct {
	owner string
	id    string
}

type mountedSnapshot struct {
	surface *raster.SnapshotSurface
	info    models.SurfaceInfo
}

// SurfaceRegistry keeps the chart snapshots each caller's dashboard currently has on
// screen. The dashboard owns their content; exports only borrow them.
type SurfaceRegistry struct {
	mu       sync.RWMutex
	surfaces map[surfaceKey]mountedSnapshot
	limits   SurfaceLimits
	logger   *zap.Logger
	now      func() time.Time
}

// NewSurfaceRegistry constructs an empty registry.
func NewSurfaceRegistry(limits SurfaceLimits, logger *zap.Logger) *SurfaceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = defaultSnapshotBytes
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = defaultSnapshotPixels
	}
	return &SurfaceRegistry{
		surfaces: make(map[surfaceKey]mountedSnapshot),
		limits:   limits,
		logger:   logger,
		now:      time.Now,
	}
}

// Mount decodes a PNG snapshot and makes it available to owner under id, replacing
// any previous snapshot the owner had for the same chart. Dimensions are checked
// from the header before the pixels are decoded.
func (r *SurfaceRegistry) Mount(owner, id, title string, snapshot io.Reader, crossOrigin bool) (*models.SurfaceInfo, error) {
	key, err := newSurfaceKey(owner, id)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(io.LimitReader(snapshot, r.limits.MaxBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "read surface snapshot")
	}
	if int64(len(payload)) > r.limits.MaxBytes {
		return nil, appErrors.Clone(appErrors.ErrSnapshotTooLarge,
			fmt.Sprintf("surface snapshot exceeds %s", humanize.IBytes(uint64(r.limits.MaxBytes))))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid surface snapshot")
	}
	if err := r.checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid surface snapshot")
	}
	return r.mount(key, title, img, crossOrigin)
}

// MountImage registers an already decoded snapshot for owner.
func (r *SurfaceRegistry) MountImage(owner, id, title string, img image.Image, crossOrigin bool) (*models.SurfaceInfo, error) {
	key, err := newSurfaceKey(owner, id)
	if err != nil {
		return nil, err
	}
	if img != nil {
		if err := r.checkPixels(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
			return nil, err
		}
	}
	return r.mount(key, title, img, crossOrigin)
}

func (r *SurfaceRegistry) mount(key surfaceKey, title string, img image.Image, crossOrigin bool) (*models.SurfaceInfo, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "surface snapshot is empty")
	}
	if title == "" {
		title = key.id
	}
	bounds := img.Bounds()
	info := models.SurfaceInfo{
		ID:          key.id,
		Title:       title,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		CrossOrigin: crossOrigin,
		MountedAt:   r.now().UTC(),
	}
	surface := raster.NewSnapshotSurface(raster.Snapshot{
		ID:          key.id,
		Title:       title,
		Image:       img,
		CrossOrigin: crossOrigin,
		MaxPixels:   r.limits.MaxOutputPixels,
	})

	r.mu.Lock()
	r.surfaces[key] = mountedSnapshot{surface: surface, info: info}
	r.mu.Unlock()

	r.logger.Sugar().Debugw("surface mounted", "surface", key.id, "owner", key.owner, "width", info.Width, "height", info.Height)
	return &info, nil
}

func (r *SurfaceRegistry) checkPixels(width, height int) error {
	if int64(width)*int64(height) > r.limits.MaxPixels {
		return appErrors.Clone(appErrors.ErrSnapshotTooLarge,
			fmt.Sprintf("surface snapshot %dx%d exceeds %s pixels", width, height, humanize.Comma(r.limits.MaxPixels)))
	}
	return nil
}

// Unmount removes the owner's snapshot; later rasterizations of id fail as unavailable.
func (r *SurfaceRegistry) Unmount(owner, id string) bool {
	key := surfaceKey{owner: sessionKey(owner), id: id}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surfaces[key]; !ok {
		return false
	}
	delete(r.surfaces, key)
	return true
}

// List returns the owner's mounted surfaces sorted by id.
func (r *SurfaceRegistry) List(owner string) []models.SurfaceInfo {
	owner = sessionKey(owner)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SurfaceInfo, 0)
	for key, mounted := range r.surfaces {
		if key.owner == owner {
			out = append(out, mounted.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Surface returns a handle that resolves the owner's snapshot at rasterization time,
// so a chart unmounted after the export started still reports unavailable.
func (r *SurfaceRegistry) Surface(owner, id string) raster.Surface {
	return &registrySurface{registry: r, key: surfaceKey{owner: sessionKey(owner), id: id}}
}

func (r *SurfaceRegistry) lookup(key surfaceKey) (*raster.SnapshotSurface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mounted, ok := r.surfaces[key]
	if !ok {
		return nil, false
	}
	return mounted.surface, true
}

func newSurfaceKey(owner, id string) (surfaceKey, error) {
	owner = sessionKey(owner)
	if owner == "" {
		return surfaceKey{}, appErrors.Clone(appErrors.ErrUnauthorized, "surface owner required")
	}
	if strings.TrimSpace(id) == "" {
		return surfaceKey{}, appErrors.Clone(appErrors.ErrValidation, "surface id required")
	}
	return surfaceKey{owner: owner, id: id}, nil
}

type registrySurface struct {
	registry *SurfaceRegistry
	key      surfaceKey
}

func (s *registrySurface) ID() string { return s.key.id }

func (s *registrySurface) Title() string {
	if surface, ok := s.registry.lookup(s.key); ok {
		return surface.Title()
	}
	return s.key.id
}

func (s *registrySurface) ProduceRaster(ctx context.Context, scale float64, background color.Color, allowCrossOrigin bool) (image.Image, error) {
	surface, ok := s.registry.lookup(s.key)
	if !ok {
		return nil, fmt.Errorf("surface %q not mounted: %w", s.key.id, raster.ErrSurfaceUnavailable)
	}
	return surface.ProduceRaster(ctx, scale, background, allowCrossOrigin)
}
