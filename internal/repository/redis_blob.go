package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBlobStore keeps each blob under prefix+key with no expiry.
type RedisBlobStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisBlobStore(client redis.Cmdable, prefix string) *RedisBlobStore {
	return &RedisBlobStore{client: client, prefix: prefix}
}

func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *RedisBlobStore) Put(ctx context.Context, key string, body []byte) error {
	return s.client.Set(ctx, s.prefix+key, body, 0).Err()
}
