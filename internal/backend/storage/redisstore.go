package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix        = "object:"
	redisDataField        = "data"
	redisContentTypeField = "content_type"
)

// RedisObjectStore keeps each object as a hash with its bytes and content type.
type RedisObjectStore struct {
	client        *redis.Client
	publicBaseURL string
}

func NewRedisObjectStore(ctx context.Context, address, password string, db int, publicBaseURL string) (ObjectStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", address, err)
	}

	return &RedisObjectStore{
		client:        client,
		publicBaseURL: publicBaseURL,
	}, nil
}

func redisKey(bucket, path string) string {
	return redisKeyPrefix + bucket + "/" + path
}

func (s *RedisObjectStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	return s.client.HSet(ctx, redisKey(bucket, path),
		redisDataField, data,
		redisContentTypeField, contentType,
	).Err()
}

func (s *RedisObjectStore) Download(ctx context.Context, bucket, path string) ([]byte, string, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(bucket, path)).Result()
	if err != nil {
		return nil, "", err
	}
	data, ok := fields[redisDataField]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return []byte(data), fields[redisContentTypeField], nil
}

func (s *RedisObjectStore) PublicURL(bucket, path string) string {
	return joinPublicURL(s.publicBaseURL, bucket, path)
}

func (s *RedisObjectStore) Close() error {
	return s.client.Close()
}
