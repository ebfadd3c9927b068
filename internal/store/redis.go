// redis.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"burn.note/internal/models"
)

const DefaultKeyPrefix = "message:"

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each message in a hash keyed by its token. Every mutation
// runs as a Lua script so the check and the write happen in one step on the
// server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(options *redis.Options, keyPrefix string) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: keyPrefix}, nil
}

var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1],
		'id', ARGV[1],
		'text', ARGV[2],
		'token', ARGV[3],
		'ttl_unit', ARGV[4],
		'ttl_value', ARGV[5],
		'created_at', ARGV[6])
	return 1
`)

func (r *RedisStore) Create(ctx context.Context, msg *models.Message) error {
	if _, err := msg.Window(); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	id := uuid.NewString()
	created, err := createScript.Run(ctx, r.client, []string{r.key(msg.Token)},
		id,
		msg.Text,
		msg.Token,
		string(msg.TTLUnit),
		msg.TTLValue,
		msg.CreatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	if created == 0 {
		return ErrConflict
	}

	msg.ID = id
	return nil
}

// bindScript returns {status, field, value, ...}. status is "ok", "missing"
// or "denied"; the hash fields follow only for "ok".
var bindScript = redis.NewScript(`
	local key = KEYS[1]
	local fingerprint = ARGV[1]
	local now = tonumber(ARGV[2])
	local retained_since = tonumber(ARGV[3])

	local f = redis.call('HMGET', key, 'created_at', 'ttl_unit', 'ttl_value', 'active_until', 'bound_fingerprint')
	if not f[1] then
		return {'missing'}
	end

	local created_at = tonumber(f[1])
	if created_at < retained_since then
		return {'missing'}
	end

	if not f[4] then
		local unit = 60000
		if f[2] == 'seconds' then
			unit = 1000
		end
		local deadline = created_at + tonumber(f[3]) * unit
		if deadline <= now then
			return {'missing'}
		end
		redis.call('HSET', key,
			'active_until', string.format('%.0f', deadline),
			'bound_fingerprint', fingerprint)
	else
		if tonumber(f[4]) <= now then
			return {'missing'}
		end
		if f[5] ~= fingerprint then
			return {'denied'}
		end
	end

	local out = redis.call('HGETALL', key)
	table.insert(out, 1, 'ok')
	return out
`)

func (r *RedisStore) RevealOrBind(ctx context.Context, token, fingerprint string, h Horizon) (*models.Message, error) {
	res, err := bindScript.Run(ctx, r.client, []string{r.key(token)},
		fingerprint,
		h.Now.UnixMilli(),
		h.RetainedSince.UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("bind message: %w", err)
	}
	if len(res) == 0 {
		return nil, errors.New("bind message: empty script result")
	}

	switch res[0] {
	case "ok":
		return decodeHash(res[1:])
	case "missing":
		return nil, ErrNotFound
	case "denied":
		return nil, ErrAccessDenied
	default:
		return nil, fmt.Errorf("bind message: unexpected status %q", res[0])
	}
}

var destroyScript = redis.NewScript(`
	if redis.call('HGET', KEYS[1], 'bound_fingerprint') == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

func (r *RedisStore) Destroy(ctx context.Context, token, fingerprint string) (bool, error) {
	n, err := destroyScript.Run(ctx, r.client, []string{r.key(token)}, fingerprint).Int()
	if err != nil {
		return false, fmt.Errorf("destroy message: %w", err)
	}
	return n > 0, nil
}

var purgeScript = redis.NewScript(`
	local f = redis.call('HMGET', KEYS[1], 'created_at', 'active_until')
	if not f[1] then
		return 0
	end
	local now = tonumber(ARGV[1])
	local retained_since = tonumber(ARGV[2])
	if tonumber(f[1]) < retained_since or (f[2] and tonumber(f[2]) <= now) then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Purge walks the keyspace with SCAN and evaluates the expiry predicate per
// key inside a script, so a row bound concurrently is never deleted on a
// stale read.
func (r *RedisStore) Purge(ctx context.Context, h Horizon) (int64, error) {
	now := h.Now.UnixMilli()
	retainedSince := h.RetainedSince.UnixMilli()

	var removed int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := purgeScript.Run(ctx, r.client, []string{iter.Val()}, now, retainedSince).Int64()
		if err != nil {
			return removed, fmt.Errorf("purge messages: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("purge messages: %w", err)
	}
	return removed, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

func decodeHash(kv []string) (*models.Message, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("decode message: odd field count")
	}

	fields := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}

	ttlValue, err := strconv.Atoi(fields["ttl_value"])
	if err != nil {
		return nil, fmt.Errorf("decode message: ttl_value: %w", err)
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode message: created_at: %w", err)
	}

	msg := &models.Message{
		ID:        fields["id"],
		Text:      fields["text"],
		Token:     fields["token"],
		TTLUnit:   models.TTLUnit(fields["ttl_unit"]),
		TTLValue:  ttlValue,
		CreatedAt: time.UnixMilli(createdAt),
	}

	if v, ok := fields["active_until"]; ok {
		activeUntil, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode message: active_until: %w", err)
		}
		t := time.UnixMilli(activeUntil)
		msg.ActiveUntil = &t
	}
	if v, ok := fields["bound_fingerprint"]; ok {
		fp := v
		msg.BoundFingerprint = &fp
	}
	return msg, nil
}
