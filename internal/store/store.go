// Package store reads the chat history from a relational database whose
// message table layout is discovered at request time.
package store

import (
	"context"

	"github.com/ashureev/relaychat/internal/domain"
)

// Repository defines read access to the message history.
type Repository interface {
	// MessageColumns lists the message table's columns in ordinal order.
	// It always queries the catalog; the result is never cached.
	MessageColumns(ctx context.Context) ([]string, error)

	// RecentMessages returns at most RowLimit rows, ordered by a discovered
	// date column when one exists.
	RecentMessages(ctx context.Context) ([]domain.Row, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
