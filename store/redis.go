package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore maps the Store operations onto Redis strings and lists.
// Atomic blocks run as MULTI/EXEC.
type RedisStore struct {
	rdb *redis.Client
}

// RedisOptions 连接参数
type RedisOptions struct {
	URL      string
	Addr     string
	Username string
	Password string
	DB       int
}

// NewRedisStore dials Redis and pings it once.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	var ro *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{
			Addr:     opts.Addr,
			Username: opts.Username,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", ro.Addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, 0).Result()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) ListAppend(ctx context.Context, key, value string) error {
	return s.rdb.RPush(ctx, key, value).Err()
}

func (s *RedisStore) ListRemove(ctx context.Context, key, value string) error {
	return s.rdb.LRem(ctx, key, 0, value).Err()
}

func (s *RedisStore) ListRead(ctx context.Context, key string) ([]string, error) {
	return s.rdb.LRange(ctx, key, 0, -1).Result()
}

func (s *RedisStore) Atomic(ctx context.Context, fn func(w Writer) error) error {
	var fnErr error
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fnErr = fn(&redisWriter{ctx: ctx, pipe: pipe})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

type redisWriter struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (w *redisWriter) Set(key string, value []byte) {
	w.pipe.Set(w.ctx, key, value, 0)
}

func (w *redisWriter) Delete(keys ...string) {
	if len(keys) > 0 {
		w.pipe.Del(w.ctx, keys...)
	}
}

func (w *redisWriter) ListAppend(key, value string) {
	w.pipe.RPush(w.ctx, key, value)
}

func (w *redisWriter) ListRemove(key, value string) {
	w.pipe.LRem(w.ctx, key, 0, value)
}
