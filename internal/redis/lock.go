package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockRetryInterval is how often a blocked acquirer polls.
const lockRetryInterval = 20 * time.Millisecond

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed wallet locking in Redis, so balance checks
// stay exclusive across server replicas.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func walletLockKey(ownerID string) string {
	return fmt.Sprintf("lock:wallet:%s", ownerID)
}

// AcquireWalletLock attempts to acquire the lock for a wallet owner.
// Returns the holder token, or "" if the lock is already held.
func (s *LockStore) AcquireWalletLock(ctx context.Context, ownerID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := s.client.SetNX(ctx, walletLockKey(ownerID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// WaitWalletLock blocks until the lock is acquired or ctx is done.
func (s *LockStore) WaitWalletLock(ctx context.Context, ownerID string, ttl time.Duration) (string, error) {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		token, err := s.AcquireWalletLock(ctx, ownerID, ttl)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReleaseWalletLock releases the lock for a wallet owner if token still
// holds it. A lock that expired and was taken by another holder is left alone.
func (s *LockStore) ReleaseWalletLock(ctx context.Context, ownerID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{walletLockKey(ownerID)}, token).Err()
}
