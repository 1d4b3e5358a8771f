package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/relaychat/internal/domain"
	"github.com/ashureev/relaychat/internal/shared"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Options selects and configures the backing database.
type Options struct {
	Driver string
	DSN    string
	Schema string
}

// SQLStore implements Repository over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   Table
	limit   int
}

// Open connects to the database described by opts.
func Open(opts Options) (Repository, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	dsn := opts.DSN
	if _, ok := dialect.(SQLiteDialect); ok {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)"
		}
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, dialect, Table{Schema: opts.Schema, Name: MessageTable}), nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, table Table) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, table: table, limit: RowLimit}
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// MessageColumns lists the message table's columns from the catalog.
func (s *SQLStore) MessageColumns(ctx context.Context) ([]string, error) {
	query, args := s.dialect.ColumnsQuery(s.table)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.unavailable("query column catalog", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close column catalog rows", "error", closeErr)
		}
	}()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.unavailable("scan column name", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("iterate column catalog", err)
	}
	return cols, nil
}

// RecentMessages discovers the table's columns, then reads the history.
func (s *SQLStore) RecentMessages(ctx context.Context) ([]domain.Row, error) {
	cols, err := s.MessageColumns(ctx)
	if err != nil {
		return nil, err
	}

	query, err := BuildOrderedQuery(s.dialect, s.table, cols, s.limit)
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}
	if _, ordered := SelectOrderColumn(cols); !ordered {
		slog.Debug("No date column found, history is unordered", "table", s.table.Name, "columns", cols)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, s.unavailable("query history", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	names, err := rows.Columns()
	if err != nil {
		return nil, s.unavailable("read history columns", err)
	}

	out := make([]domain.Row, 0)
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, s.unavailable("scan history row", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		cols := make([]string, len(names))
		copy(cols, names)
		out = append(out, domain.NewRow(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("iterate history", err)
	}
	return out, nil
}

func (s *SQLStore) unavailable(op string, err error) error {
	if shared.IsSQLiteConflictError(err) {
		slog.Warn("Message store busy", "op", op, "error", err)
	}
	return fmt.Errorf("%s: %w: %v", op, shared.ErrStoreUnavailable, err)
}

// normalizeValue converts driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}
