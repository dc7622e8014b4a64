package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// DeliveryConfig tunes artifact delivery.
type DeliveryConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ArtifactDownload is a resolved download ready to be streamed.
type ArtifactDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// DeliveryService persists rendered artifacts and hands out signed download links.
type DeliveryService struct {
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     DeliveryConfig
}

// NewDeliveryService constructs a DeliveryService.
func NewDeliveryService(store fileStorage, signer *storage.SignedURLSigner, cfg DeliveryConfig, logger *zap.Logger) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	return &DeliveryService{storage: store, signer: signer, logger: logger, cfg: cfg}
}

// Deliver stores payload under the request id and returns the download descriptor.
// Nothing is written when payload is empty.
func (s *DeliveryService) Deliver(ctx context.Context, req models.ExportRequest, contentType string, payload []byte) (*models.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "refusing to deliver an empty artifact")
	}
	relPath := path.Join(req.ID, sanitizeFilename(req.Filename))
	stored, err := s.storage.Save(relPath, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Sign(req.ID, stored)
	if err != nil {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	size := humanize.Bytes(uint64(len(payload)))
	s.logger.Sugar().Infow("export delivered",
		"request_id", req.ID,
		"kind", req.Kind,
		"filename", req.Filename,
		"size", size,
	)
	return &models.Delivery{
		RequestID:   req.ID,
		Kind:        req.Kind,
		Filename:    req.Filename,
		ContentType: contentType,
		SizeBytes:   len(payload),
		Size:        size,
		URL:         fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// ResolveDownload validates the token and opens the stored artifact.
func (s *DeliveryService) ResolveDownload(token string) (*ArtifactDownload, error) {
	claims, err := s.signer.Verify(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	filename := filepath.Base(claims.Path)
	return &ArtifactDownload{
		File:        file,
		Filename:    filename,
		ContentType: contentTypeFor(filename),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// Cleanup removes artifacts older than ttl (the configured ResultTTL when ttl <= 0).
func (s *DeliveryService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "export"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
