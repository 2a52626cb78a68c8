package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

const modelQuotaPrefix = "MODEL_QUOTA:"

// QuotaRepository stores daily usage counters and provider rate-limit
// snapshots in Redis.
type QuotaRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQuotaRepository constructs the repository.
func NewQuotaRepository(client *redis.Client, logger *zap.Logger) *QuotaRepository {
	return &QuotaRepository{client: client, logger: logger}
}

// Usage returns the counter stored under key, treating a missing or
// unparsable value as zero.
func (r *QuotaRepository) Usage(ctx context.Context, key string) (int64, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// SetUsage stores the counter with the given TTL.
func (r *QuotaRepository) SetUsage(ctx context.Context, key string, count int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, strconv.FormatInt(count, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SaveModelQuota stores the rate-limit snapshot keyed by model name.
func (r *QuotaRepository) SaveModelQuota(ctx context.Context, quota models.ModelQuota, ttl time.Duration) error {
	payload, err := json.Marshal(quota)
	if err != nil {
		return fmt.Errorf("marshal model quota %s: %w", quota.Model, err)
	}

	key := modelQuotaPrefix + quota.Model
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// ModelQuotas lists every stored snapshot, newest first. Corrupt entries are
// skipped.
func (r *QuotaRepository) ModelQuotas(ctx context.Context) ([]models.ModelQuota, error) {
	var quotas []models.ModelQuota

	iter := r.client.Scan(ctx, 0, modelQuotaPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}

		var quota models.ModelQuota
		if err := json.Unmarshal(raw, &quota); err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping corrupt model quota entry", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		quotas = append(quotas, quota)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan model quotas: %w", err)
	}

	sort.Slice(quotas, func(i, j int) bool {
		return quotas[i].UpdatedAt.After(quotas[j].UpdatedAt)
	})
	return quotas, nil
}
