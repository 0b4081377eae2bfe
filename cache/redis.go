package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/factory"
)

// =============================================================================
// REDIS CONNECTION
// =============================================================================

type ConnectionInfo struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
}

// OpenRedis connects and pings. The client is closed if the ping fails.
func OpenRedis(info ConnectionInfo) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         info.Addr,
		Password:     info.Password,
		DB:           info.DB,
		MaxRetries:   info.MaxRetries,
		DialTimeout:  info.DialTimeout,
		ReadTimeout:  info.Timeout,
		WriteTimeout: info.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), info.DialTimeout+info.Timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", info.Addr, err)
	}
	return rdb, nil
}

// =============================================================================
// REDIS SCHEME CACHE
// =============================================================================

// Redis is a SchemeCache backed by Redis string keys holding JSON.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	schemes *factory.SchemeFactory
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl, schemes: factory.NewSchemeFactory()}
}

// Key returns the Redis key of a scheme.
func (r *Redis) Key(id charges.SchemeID) string {
	if r.prefix == "" {
		return "charge_scheme:" + string(id)
	}
	return r.prefix + ":charge_scheme:" + string(id)
}

func (r *Redis) Get(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, bool, error) {
	val, err := r.client.Get(ctx, r.Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return charges.SchemeRecord{}, false, nil
	}
	if err != nil {
		return charges.SchemeRecord{}, false, err
	}

	rec, deleted, err := r.decode(val)
	if err != nil || deleted {
		return charges.SchemeRecord{}, false, err
	}
	return rec, true, nil
}

func (r *Redis) Set(ctx context.Context, rec charges.SchemeRecord) error {
	val, err := r.Encode(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.Key(rec.ID), val, r.ttl).Err()
}

// Fill uses SET NX so an entry written by a save or a delete wins.
func (r *Redis) Fill(ctx context.Context, rec charges.SchemeRecord) (bool, error) {
	val, err := r.Encode(rec)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.Key(rec.ID), val, r.ttl).Result()
}

func (r *Redis) Delete(ctx context.Context, id charges.SchemeID) error {
	return r.client.Set(ctx, r.Key(id), tombstone, r.ttl).Err()
}

const tombstone = `{"deleted":true}`

// cachedScheme is the JSON stored under a scheme key.
type cachedScheme struct {
	Deleted   bool               `json:"deleted,omitempty"`
	Config    factory.SchemeJSON `json:"config"`
	Version   int                `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Encode renders a record as cache JSON.
func (r *Redis) Encode(rec charges.SchemeRecord) (string, error) {
	b, err := json.Marshal(cachedScheme{
		Config:    r.schemes.ToJSON(rec),
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode cached scheme: %w", err)
	}
	return string(b), nil
}

// Decode parses cache JSON back into a record. A tombstone decodes to
// ErrSchemeNotFound.
func (r *Redis) Decode(val string) (charges.SchemeRecord, error) {
	rec, deleted, err := r.decode(val)
	if err != nil {
		return rec, err
	}
	if deleted {
		return rec, charges.ErrSchemeNotFound
	}
	return rec, nil
}

func (r *Redis) decode(val string) (charges.SchemeRecord, bool, error) {
	var cs cachedScheme
	if err := json.Unmarshal([]byte(val), &cs); err != nil {
		return charges.SchemeRecord{}, false, fmt.Errorf("decode cached scheme: %w", err)
	}
	if cs.Deleted {
		return charges.SchemeRecord{}, true, nil
	}
	rec, err := r.schemes.FromJSON(cs.Config)
	if err != nil {
		return charges.SchemeRecord{}, false, err
	}
	rec.Version = cs.Version
	rec.CreatedAt = cs.CreatedAt
	rec.UpdatedAt = cs.UpdatedAt
	return rec, false, nil
}
