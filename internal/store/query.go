package store

import (
	"fmt"
	"regexp"
	"strings"
)

// MessageTable is the table the chat history is read from.
const MessageTable = "Chat_Mensaje"

// RowLimit caps how many rows a history read returns.
const RowLimit = 200

// OrderCandidates are the date columns the history may be ordered by,
// highest priority first.
var OrderCandidates = []string{"Fec_Creacion", "Fecha", "Fecha_Creacion", "FecCreacion", "createdAt", "fecha"}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SelectOrderColumn returns the first order candidate present in columns.
func SelectOrderColumn(columns []string) (string, bool) {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	for _, candidate := range OrderCandidates {
		if _, ok := present[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// Table names a table inside an optional schema.
type Table struct {
	Schema string
	Name   string
}

// Dialect holds the SQL differences between the supported databases.
type Dialect interface {
	// Name is the database/sql driver name.
	Name() string
	// ColumnsQuery returns the catalog query listing the table's columns in
	// ordinal order, with its arguments.
	ColumnsQuery(t Table) (string, []any)
	// SelectTop returns a query reading at most limit rows, ordered ascending
	// by orderBy when it is non-empty.
	SelectTop(t Table, orderBy string, limit int) string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLiteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return SQLServerDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// BuildOrderedQuery builds the history read for table given its live column
// list. It orders by the first order candidate present, or leaves the order
// to the database when none is. Identifiers come from code constants and are
// checked again here so nothing outside that vocabulary reaches the SQL text.
func BuildOrderedQuery(d Dialect, t Table, knownColumns []string, rowLimit int) (string, error) {
	if !identPattern.MatchString(t.Name) {
		return "", fmt.Errorf("invalid table name %q", t.Name)
	}
	if t.Schema != "" && !identPattern.MatchString(t.Schema) {
		return "", fmt.Errorf("invalid schema name %q", t.Schema)
	}
	if rowLimit <= 0 {
		return "", fmt.Errorf("row limit must be positive, got %d", rowLimit)
	}

	orderBy, _ := SelectOrderColumn(knownColumns)
	if orderBy != "" && !identPattern.MatchString(orderBy) {
		return "", fmt.Errorf("invalid order column %q", orderBy)
	}
	return d.SelectTop(t, orderBy, rowLimit), nil
}

// SQLiteDialect targets modernc.org/sqlite.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) ColumnsQuery(t Table) (string, []any) {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`, []any{t.Name}
}

func (SQLiteDialect) SelectTop(t Table, orderBy string, limit int) string {
	q := fmt.Sprintf(`SELECT * FROM "%s"`, t.Name)
	if orderBy != "" {
		q += fmt.Sprintf(` ORDER BY "%s" ASC`, orderBy)
	}
	return q + fmt.Sprintf(" LIMIT %d", limit)
}

// PostgresDialect targets PostgreSQL through pgx's database/sql driver.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "pgx" }

func (PostgresDialect) ColumnsQuery(t Table) (string, []any) {
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	return `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, []any{schema, t.Name}
}

func (PostgresDialect) SelectTop(t Table, orderBy string, limit int) string {
	schema := t.Schema
	if schema == "" {
		schema = "public"
	}
	q := fmt.Sprintf(`SELECT * FROM "%s"."%s"`, schema, t.Name)
	if orderBy != "" {
		q += fmt.Sprintf(` ORDER BY "%s" ASC`, orderBy)
	}
	return q + fmt.Sprintf(" LIMIT %d", limit)
}

// SQLServerDialect targets Microsoft SQL Server.
type SQLServerDialect struct{}

func (SQLServerDialect) Name() string { return "sqlserver" }

func (SQLServerDialect) ColumnsQuery(t Table) (string, []any) {
	schema := t.Schema
	if schema == "" {
		schema = "dbo"
	}
	return `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, []any{schema, t.Name}
}

func (SQLServerDialect) SelectTop(t Table, orderBy string, limit int) string {
	schema := t.Schema
	if schema == "" {
		schema = "dbo"
	}
	q := fmt.Sprintf(`SELECT TOP %d * FROM [%s].[%s]`, limit, schema, t.Name)
	if orderBy != "" {
		q += fmt.Sprintf(` ORDER BY [%s] ASC`, orderBy)
	}
	return q
}
