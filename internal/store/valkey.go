package store

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyWindow keeps seen message ids in Valkey so replicas share one dedup window.
type ValkeyWindow struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

func NewValkeyWindow(client valkey.Client, prefix string, ttl time.Duration) *ValkeyWindow {
	if prefix == "" {
		prefix = "forecastbot:seen"
	}
	if ttl < time.Second {
		ttl = DefaultWindowMaxAge
	}
	return &ValkeyWindow{client: client, prefix: prefix, ttl: ttl}
}

// Add issues SET NX EX; a nil reply means another request already claimed the id.
func (w *ValkeyWindow) Add(ctx context.Context, id string) (bool, error) {
	cmd := w.client.B().Set().Key(w.key(id)).Value("1").Nx().ExSeconds(int64(w.ttl / time.Second)).Build()
	if err := w.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("valkey dedup: %w", err)
	}
	return true, nil
}

func (w *ValkeyWindow) key(id string) string {
	return fmt.Sprintf("%s:%s", w.prefix, id)
}
