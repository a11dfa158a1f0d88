package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/emrgen/docgen/internal/compress"
	redis "github.com/redis/go-redis/v9"
)

const previewIndexHash = "preview:index"

func previewKey(key string) string {
	return "preview:" + key
}

var _ Mirror = (*RedisMirror)(nil)

// RedisMirror keeps previews in redis. Payloads expire on their own; the index
// hash remembers when each one was written so stale index fields can be purged.
type RedisMirror struct {
	client  *redis.Client
	encoder compress.Compress
	ttl     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Protocol: 2,
	})
}

func NewRedisMirror(client *redis.Client, encoder compress.Compress, ttl time.Duration) *RedisMirror {
	if encoder == nil {
		encoder = compress.NewGZip()
	}
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}

	return &RedisMirror{client: client, encoder: encoder, ttl: ttl}
}

func (r *RedisMirror) Load(ctx context.Context, key string) ([]byte, time.Time, error) {
	res := r.client.Get(ctx, previewKey(key))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, time.Time{}, ErrMirrorMiss
		}
		return nil, time.Time{}, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, time.Time{}, err
	}

	storedAt, payload, err := unstamp(buf)
	if err != nil {
		return nil, time.Time{}, err
	}
	decoded, err := r.encoder.Decode(payload)
	if err != nil {
		return nil, time.Time{}, err
	}

	return decoded, storedAt, nil
}

func (r *RedisMirror) Store(ctx context.Context, key string, data []byte) error {
	encoded, err := r.encoder.Encode(data)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Set(ctx, previewKey(key), stamp(now, encoded), r.ttl).Err(); err != nil {
			return err
		}

		if err := p.HSet(ctx, previewIndexHash, key, now.Unix()).Err(); err != nil {
			return err
		}

		return nil
	})

	return err
}

func (r *RedisMirror) Entries(ctx context.Context) ([]MirrorEntry, error) {
	res := r.client.HGetAll(ctx, previewIndexHash)
	if res.Err() != nil {
		return nil, res.Err()
	}

	out := make([]MirrorEntry, 0, len(res.Val()))
	for key, stamp := range res.Val() {
		unix, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			// unreadable stamps are treated as ancient so the sweep drops them
			unix = 0
		}
		out = append(out, MirrorEntry{Key: key, StoredAt: time.Unix(unix, 0)})
	}

	return out, nil
}

func (r *RedisMirror) Remove(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, previewKey(key)).Err(); err != nil {
			return err
		}

		return p.HDel(ctx, previewIndexHash, key).Err()
	})

	return err
}
