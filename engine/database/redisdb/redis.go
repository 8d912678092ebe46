// Package redisdb keeps each scope in one Redis hash.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"registrar/engine/database"
)

type DB struct {
	client *redis.Client
	prefix string
}

// Open connects to the Redis server at url and checks it answers.
func Open(ctx context.Context, url, prefix string) (*DB, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, prefix), nil
}

func New(client *redis.Client, prefix string) *DB {
	return &DB{client: client, prefix: prefix}
}

func (d *DB) Scope(namespace string) database.Scope {
	return &scope{client: d.client, key: d.prefix + namespace}
}

func (d *DB) Close() error {
	return d.client.Close()
}

type scope struct {
	client *redis.Client
	key    string
}

func (s *scope) Put(ctx context.Context, key string, value []byte) error {
	return s.client.HSet(ctx, s.key, key, value).Err()
}

func (s *scope) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *scope) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.key, key).Err()
}

func (s *scope) All(ctx context.Context) ([]database.Entry, error) {
	m, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]database.Entry, 0, len(m))
	for k, v := range m {
		out = append(out, database.Entry{Key: k, Value: []byte(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
