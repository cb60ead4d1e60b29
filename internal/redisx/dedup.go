package redisx

import (
	"context"
	"fmt"
)

type Dedup struct {
	rdb     Cmdable
	service string
}

func NewDedup(rdb Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// FirstSeen atomically marks id as processed and reports whether this call
// was the first to do so.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", TTLDedup).Result()
}

// Forget clears the mark so a redelivered event is processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err()
}
