// Package database is the namespaced key-value persistence used by the registry.
package database

import (
	"context"
)

// Namespaces used by the registry.
const (
	PendingIdentities = "pending_identities"
	ExternalRooms     = "external_rooms"
)

type Entry struct {
	Key   string
	Value []byte
}

// Scope is one namespace of a Database. Put is durable when it returns.
type Scope interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) ([]Entry, error)
}

type Database interface {
	Scope(namespace string) Scope
	Close() error
}
