package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/exception"
)

// RedisSource は1つのキーに置かれたフィードを GET で読みます
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Fetch(ctx context.Context, since string) ([]byte, string, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "redis key %s not found", s.key)
	}
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "redis get %s: %v", s.key, err)
	}

	marker := digest(payload)
	if marker == since {
		return nil, since, nil
	}
	return payload, marker, nil
}

// Publish はフィードをキーに書き込みます（モックの生成側が使います）
func (s *RedisSource) Publish(ctx context.Context, payload []byte) error {
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return errors.Wrapf(exception.ErrFeedUnavailable, "redis set %s: %v", s.key, err)
	}
	return nil
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}
