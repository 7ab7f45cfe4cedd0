package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"propledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TTLs. Progress and stats are cheap to recompute, so short TTLs plus
// explicit invalidation on every status change keep the cache honest.
const (
	ProgressTTL = 2 * time.Minute
	StatsTTL    = 1 * time.Minute
)

type CacheService interface {
	// Buyer progress per offer
	GetProgress(ctx context.Context, offerID uuid.UUID) (*models.BuyerProgress, error)
	SetProgress(ctx context.Context, progress *models.BuyerProgress, ttl time.Duration) error
	InvalidateOffer(ctx context.Context, offerID uuid.UUID) error

	// Dashboard stats
	GetStats(ctx context.Context) (*models.PaymentStats, error)
	SetStats(ctx context.Context, stats *models.PaymentStats, ttl time.Duration) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func progressKey(offerID uuid.UUID) string {
	return fmt.Sprintf("propledger:progress:%s", offerID.String())
}

const statsKey = "propledger:payment-stats"

func (r *redisCacheService) GetProgress(ctx context.Context, offerID uuid.UUID) (*models.BuyerProgress, error) {
	data, err := r.client.Get(ctx, progressKey(offerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var progress models.BuyerProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *redisCacheService) SetProgress(ctx context.Context, progress *models.BuyerProgress, ttl time.Duration) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, progressKey(progress.OfferID), data, ttl).Err()
}

// InvalidateOffer drops the progress entry for one offer and the global
// stats entry. Called on every payment or offer status change.
func (r *redisCacheService) InvalidateOffer(ctx context.Context, offerID uuid.UUID) error {
	if err := r.client.Del(ctx, progressKey(offerID)).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, statsKey).Err()
}

func (r *redisCacheService) GetStats(ctx context.Context) (*models.PaymentStats, error) {
	data, err := r.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var stats models.PaymentStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *redisCacheService) SetStats(ctx context.Context, stats *models.PaymentStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statsKey, data, ttl).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
