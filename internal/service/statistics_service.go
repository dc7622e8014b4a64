package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
)

type statisticsStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.StatisticsUser, error)
	ListTickets(ctx context.Context) ([]models.TicketRecord, error)
	ListTicketsByRequester(ctx context.Context, userID string) ([]models.TicketRecord, error)
}

// StatisticsService serves the full ticket export scoped to the caller's role.
type StatisticsService struct {
	repo     statisticsStore
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatisticsService constructs the service. cache may be nil.
func NewStatisticsService(repo statisticsStore, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// FullExportCacheKey is the cache key of one caller's export.
func FullExportCacheKey(email string) string {
	return "statistics:full-export:" + strings.ToLower(strings.TrimSpace(email))
}

// FullExport returns every ticket visible to email: all of them for admins and
// analysts, only their own for requesters.
func (s *StatisticsService) FullExport(ctx context.Context, email string) ([]models.TicketRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "caller email required")
	}

	key := FullExportCacheKey(email)
	var cached []models.TicketRecord
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown statistics user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics user")
	}

	var records []models.TicketRecord
	if user.SeesAllTickets() {
		records, err = s.repo.ListTickets(ctx)
	} else {
		records, err = s.repo.ListTicketsByRequester(ctx, user.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tickets")
	}
	if records == nil {
		records = []models.TicketRecord{}
	}

	_ = s.cache.Set(ctx, key, records, s.cacheTTL)
	s.logger.Sugar().Debugw("statistics export served", "email", email, "role", user.Role, "records", len(records))
	return records, nil
}

// InvalidateAll drops every cached export, e.g. after tickets changed.
func (s *StatisticsService) InvalidateAll(ctx context.Context) error {
	return s.cache.Invalidate(ctx, "statistics:full-export:*")
}
