package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoray/internal/config"
)

const keyPaymentIntentOrg = "payment:intent:org:%s"

// PaymentIntentLimiter throttles payment intent creation per org. A nil
// limiter (rate limiting disabled) allows everything.
type PaymentIntentLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewPaymentIntentLimiter(cfg config.Config) (*PaymentIntentLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PaymentIntentRate <= 0 || limitCfg.PaymentIntentBurst <= 0 {
		return nil, errors.New("payment intent rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PaymentIntentLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.PaymentIntentRate,
		burst:  limitCfg.PaymentIntentBurst,
	}, nil
}

func (l *PaymentIntentLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PaymentIntentLimiter) AllowOrg(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPaymentIntentOrg, strings.TrimSpace(orgID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
