package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	apperrors "event-checkin/pkg/app_errors"

	"github.com/redis/go-redis/v9"
)

// ScanGuard serializes scan processing per scanner scope (a session, or a user and
// event pair) across every device and server instance sharing Redis.
type ScanGuard interface {
	// Acquire takes the in-flight lock for scope. It fails with ErrScannerBusy while another
	// scan holds it, and with ErrScanCooldown if payload was rejected within the cooldown.
	Acquire(ctx context.Context, scope, payload, token string) error
	// Release drops the lock held by token. A positive cooldown blocks payload for that long.
	Release(ctx context.Context, scope, payload, token string, cooldown time.Duration) error
}

type RedisScanGuardImpl struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewRedisScanGuard(client *redis.Client, lockTTL time.Duration) ScanGuard {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &RedisScanGuardImpl{
		client:  client,
		lockTTL: lockTTL,
	}
}

func InflightKey(scope string) string {
	return fmt.Sprintf("scan:%s:inflight", scope)
}

// CooldownKey hashes the payload so arbitrary scanner input never ends up in a key verbatim.
func CooldownKey(scope, payload string) string {
	sum := sha1.Sum([]byte(payload))
	return fmt.Sprintf("scan:%s:cooldown:%s", scope, hex.EncodeToString(sum[:8]))
}

const acquireScript = `
	local inflight_key = KEYS[1]
	local cooldown_key = KEYS[2]
	local token = ARGV[1]
	local ttl_ms = tonumber(ARGV[2])

	if redis.call('EXISTS', cooldown_key) == 1 then
		return -2
	end

	if not redis.call('SET', inflight_key, token, 'NX', 'PX', ttl_ms) then
		return -1
	end

	return 1
`

const releaseScript = `
	local inflight_key = KEYS[1]
	local cooldown_key = KEYS[2]
	local token = ARGV[1]
	local cooldown_ms = tonumber(ARGV[2])

	if redis.call('GET', inflight_key) == token then
		redis.call('DEL', inflight_key)
	end

	if cooldown_ms > 0 then
		redis.call('SET', cooldown_key, '1', 'PX', cooldown_ms)
	end

	return 1
`

func (g *RedisScanGuardImpl) Acquire(ctx context.Context, scope, payload, token string) error {
	keys := []string{InflightKey(scope), CooldownKey(scope, payload)}

	code, err := g.client.Eval(ctx, acquireScript, keys, token, g.lockTTL.Milliseconds()).Int64()
	if err != nil {
		return err
	}

	switch code {
	case 1:
		return nil
	case -1:
		return apperrors.ErrScannerBusy
	case -2:
		return apperrors.ErrScanCooldown
	default:
		return errors.New("unexpected scan guard result")
	}
}

func (g *RedisScanGuardImpl) Release(ctx context.Context, scope, payload, token string, cooldown time.Duration) error {
	keys := []string{InflightKey(scope), CooldownKey(scope, payload)}
	return g.client.Eval(ctx, releaseScript, keys, token, cooldown.Milliseconds()).Err()
}
