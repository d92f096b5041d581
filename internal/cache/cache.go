package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned by GetJSON when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store keeps serialized report payloads keyed by "|"-joined segments.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePrefix drops every key equal to prefix or starting with prefix+"|".
	InvalidatePrefix(ctx context.Context, prefix string) error
	Close() error
}

func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

func GetJSON(ctx context.Context, store Store, key string, dest any) error {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw, ttl)
}

func matchesPrefix(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+"|")
}
