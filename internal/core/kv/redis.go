package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type RedisOpts struct {
	Addr     string
	Password string
	DB       int
}

// redisStore keeps one hash per collection: HGETALL is the "read everything
// under a path" primitive, HSET the "write one key" primitive.
type redisStore struct {
	rdb *redis.Client
}

func newRedisStore(o RedisOpts) (*redisStore, error) {
	if o.Addr == "" {
		return nil, errors.New("kv: redis addr is required")
	}
	return &redisStore{
		rdb: redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}),
	}, nil
}

func (s *redisStore) GetAll(ctx context.Context, collection string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, collection).Result()
}

func (s *redisStore) Get(ctx context.Context, collection, key string) (string, bool, error) {
	doc, err := s.rdb.HGet(ctx, collection, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc, true, nil
}

func (s *redisStore) Put(ctx context.Context, collection, key, doc string) error {
	return s.rdb.HSet(ctx, collection, key, doc).Err()
}

func (s *redisStore) Delete(ctx context.Context, collection, key string) (bool, error) {
	n, err := s.rdb.HDel(ctx, collection, key).Result()
	return n > 0, err
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *redisStore) Close() error { return s.rdb.Close() }
