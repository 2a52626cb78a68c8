package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
)

const (
	usageKeyPrefix = "AI_USAGE:"

	// Counters outlive the day they belong to so yesterday's usage stays
	// readable shortly after midnight.
	usageTTL      = 48 * time.Hour
	modelQuotaTTL = 24 * time.Hour

	defaultDailyQuota = 500

	headerRequestsLimit          = "modelscope-ratelimit-requests-limit"
	headerRequestsRemaining      = "modelscope-ratelimit-requests-remaining"
	headerModelRequestsLimit     = "modelscope-ratelimit-model-requests-limit"
	headerModelRequestsRemaining = "modelscope-ratelimit-model-requests-remaining"
)

// QuotaStore abstracts the counter and snapshot persistence.
type QuotaStore interface {
	Usage(ctx context.Context, key string) (int64, error)
	SetUsage(ctx context.Context, key string, count int64, ttl time.Duration) error
	SaveModelQuota(ctx context.Context, quota models.ModelQuota, ttl time.Duration) error
	ModelQuotas(ctx context.Context) ([]models.ModelQuota, error)
}

// QuotaService enforces the daily AI call budget and tracks provider
// rate-limit snapshots per model.
type QuotaService struct {
	store   QuotaStore
	limit   int64
	metrics *MetricsService
	logger  *zap.Logger

	now func() time.Time
}

// NewQuotaService constructs the service. A non-positive limit falls back to
// the default daily quota.
func NewQuotaService(store QuotaStore, limit int64, metrics *MetricsService, logger *zap.Logger) *QuotaService {
	if limit <= 0 {
		limit = defaultDailyQuota
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{store: store, limit: limit, metrics: metrics, logger: logger, now: time.Now}
}

// usageKey derives the counter key from the server's local date, so the
// budget window rolls over at local midnight.
func (s *QuotaService) usageKey() string {
	return usageKeyPrefix + s.now().Format("2006-01-02")
}

// CheckAndReserve consumes one unit of today's budget. The read-then-write
// is deliberately non-atomic: concurrent callers may each pass the ceiling
// check, which keeps the budget a soft limit rather than a hard gate.
func (s *QuotaService) CheckAndReserve(ctx context.Context) error {
	key := s.usageKey()

	used, err := s.store.Usage(ctx, key)
	if err != nil {
		return fmt.Errorf("read usage counter: %w", err)
	}
	if used >= s.limit {
		s.metrics.SetQuotaGauges(used, s.limit)
		return appErrors.ErrQuotaExceeded
	}

	if err := s.store.SetUsage(ctx, key, used+1, usageTTL); err != nil {
		return fmt.Errorf("write usage counter: %w", err)
	}
	s.metrics.SetQuotaGauges(used+1, s.limit)
	return nil
}

// Usage reports today's consumption.
func (s *QuotaService) Usage(ctx context.Context) (models.QuotaUsage, error) {
	used, err := s.store.Usage(ctx, s.usageKey())
	if err != nil {
		return models.QuotaUsage{}, fmt.Errorf("read usage counter: %w", err)
	}

	remaining := s.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return models.QuotaUsage{
		Date:      s.now().Format("2006-01-02"),
		Used:      used,
		Limit:     s.limit,
		Remaining: remaining,
	}, nil
}

// RecordFromHeaders stores the provider rate-limit snapshot carried by the
// response headers. Responses without model-level counters are ignored.
func (s *QuotaService) RecordFromHeaders(ctx context.Context, model string, header http.Header) {
	quota := quotaFromHeaders(model, header, s.now())
	if quota == nil {
		return
	}
	if err := s.store.SaveModelQuota(ctx, *quota, modelQuotaTTL); err != nil {
		s.logger.Warn("failed to store model quota snapshot",
			zap.String("model", model), zap.Error(err))
	}
}

// ModelQuotas lists the stored snapshots, newest first.
func (s *QuotaService) ModelQuotas(ctx context.Context) ([]models.ModelQuota, error) {
	quotas, err := s.store.ModelQuotas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list model quotas: %w", err)
	}
	return quotas, nil
}

func quotaFromHeaders(model string, header http.Header, now time.Time) *models.ModelQuota {
	quota := models.ModelQuota{
		Model:                  model,
		RequestsLimit:          headerInt(header, headerRequestsLimit),
		RequestsRemaining:      headerInt(header, headerRequestsRemaining),
		ModelRequestsLimit:     headerInt(header, headerModelRequestsLimit),
		ModelRequestsRemaining: headerInt(header, headerModelRequestsRemaining),
		UpdatedAt:              now.UTC(),
	}
	if quota.ModelRequestsLimit == nil && quota.ModelRequestsRemaining == nil {
		return nil
	}
	return &quota
}

func headerInt(header http.Header, name string) *int64 {
	raw := header.Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
