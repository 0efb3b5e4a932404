// Package subscriptions persists which symbols each user follows.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
)

var ErrStoreClosed = errors.New("subscription store is closed")

// Store is the durable user -> followed symbols mapping. Insert of an existing
// pair and Delete of a missing pair both succeed.
type Store interface {
	Load(ctx context.Context, userID string) ([]string, error)
	Insert(ctx context.Context, userID, symbol string) error
	Delete(ctx context.Context, userID, symbol string) error
	Close() error
}

// Open returns the store for driver: "sqlite" (dsn is a file path),
// "postgres" (dsn is a connection string) or "memory".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown subscription store driver %q", driver)
	}
}
