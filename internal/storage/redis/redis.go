package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"identity_service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "otp"

	fieldCode      = "code"
	fieldExpiresAt = "expires_at"
)

// consumeScript deletes the slot only when the code matches and the slot is not expired.
// ARGV[1] is the supplied code, ARGV[2] the current time in unix milliseconds.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code', 'expires_at')
if not v[1] or not v[2] then
	return 0
end
if v[1] ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[2]) > tonumber(v[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type RedisRepo struct {
	client *redis.Client
	prefix string
}

func New(ctx context.Context, addr, pass string, db int, keyPrefix string) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client, keyPrefix), nil
}

func NewWithClient(client *redis.Client, keyPrefix string) *RedisRepo {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisRepo{
		client: client,
		prefix: prefix,
	}
}

// * ReplaceCode atomically drops any slot for the identifier and stores the new code.
// The key expires together with the code.
func (r *RedisRepo) ReplaceCode(ctx context.Context, otp models.OneTimeCode, ttl time.Duration) error {
	const op = "storage.redis.ReplaceCode"

	if ttl <= 0 {
		return fmt.Errorf("%s: ttl must be positive", op)
	}

	key := r.key(otp.Identifier)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      otp.Code,
		fieldExpiresAt: strconv.FormatInt(otp.ExpiresAt.UnixMilli(), 10),
	})
	pipe.PExpire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * ConsumeCode deletes the slot if code matches and now is not past expiry.
// Returns false without touching the slot otherwise.
func (r *RedisRepo) ConsumeCode(ctx context.Context, identifier, code string, now time.Time) (bool, error) {
	const op = "storage.redis.ConsumeCode"

	res, err := consumeScript.Run(ctx, r.client,
		[]string{r.key(identifier)},
		code,
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return res == 1, nil
}

// * Close closes the redis client.
func (r *RedisRepo) Close() {
	r.client.Close()
}

func (r *RedisRepo) key(identifier string) string {
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}
