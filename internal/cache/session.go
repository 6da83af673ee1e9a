package cache

import (
	"context"
	"time"
)

const tokenBlacklistPrefix = "token:blacklist:"

// BlacklistToken marks a JWT ID as revoked until the token would have
// expired anyway.
func BlacklistToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if client == nil || ttl <= 0 {
		return nil
	}
	return client.Set(ctx, tokenBlacklistPrefix+tokenID, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a JWT ID has been revoked. Fails open
// when Redis is unavailable; session rows are the durable record.
func IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if client == nil {
		return false, nil
	}
	n, err := client.Exists(ctx, tokenBlacklistPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
