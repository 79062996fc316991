package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a renewable Redis-backed distributed lock implementing the
// "single logical worker" requirement in spec §4.3 ("implementations
// may run one instance with a lease, or a pool coordinated by
// row-level locking" — this repo picks the lease path).
type Lease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewLease creates a Lease. owner is a random token so Release never
// clears a lease another process has since acquired after this one's
// TTL expired.
func NewLease(client *redis.Client, key string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: key, owner: uuid.NewString(), ttl: ttl}
}

// Acquire attempts to take the lease, returning held=false if another
// instance currently holds it.
func (l *Lease) Acquire(ctx context.Context) (held bool, err error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease acquire: %w", err)
	}
	return ok, nil
}

// Renew extends the lease's TTL, but only if this instance still owns
// it — guards against a renew racing a takeover by another instance.
func (l *Lease) Renew(ctx context.Context) (held bool, err error) {
	const renewScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		end
		return 0
	`
	res, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.owner, l.ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("lease renew: %w", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Release drops the lease if this instance still owns it.
func (l *Lease) Release(ctx context.Context) error {
	const releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`
	_, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.owner).Result()
	if err != nil {
		return fmt.Errorf("lease release: %w", err)
	}
	return nil
}
