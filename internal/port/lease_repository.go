package port

import (
	"context"
	"time"
)

type LeaseRepository interface {
	// AcquireLease takes key for ttl, returns false if someone else holds it
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseLease frees key only if it is still held with token
	ReleaseLease(ctx context.Context, key, token string) error
}
