package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/adjeibohyen/tutorhub-backend/pkg/redis"
)

// GuardScope namespaces webhook dedup keys in redis.
const GuardScope = "paystack-webhook"

// IdempotencyGuard deduplicates webhook deliveries by raw body hash.
// Paystack events carry no delivery id, so the body itself is the identity.
// The guard is best effort: the ledger's conditional transitions stay
// correct even when redis forgets a key.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard builds a guard over the provided store.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// BodyDigest derives the dedup identity for a raw webhook payload.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CheckAndMark marks the digest as seen and reports whether it already was.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, errors.New("digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete forgets a digest so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, digest string) error {
	if digest == "" {
		return errors.New("digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	return g.store.Del(ctx, key)
}
