package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/relaychat/internal/shared"
)

func TestSelectOrderColumn(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
		ok      bool
	}{
		{"no date column", []string{"Id", "Contenido"}, "", false},
		{"fecha creacion", []string{"Id", "Fecha_Creacion", "Contenido"}, "Fecha_Creacion", true},
		{"candidate priority", []string{"createdAt", "Fecha", "Fec_Creacion"}, "Fec_Creacion", true},
		{"exact case only", []string{"FEC_CREACION"}, "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectOrderColumn(tt.columns)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("SelectOrderColumn(%v) = %q, %v; want %q, %v", tt.columns, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuildOrderedQuery(t *testing.T) {
	table := Table{Name: MessageTable}
	tests := []struct {
		name    string
		dialect Dialect
		columns []string
		want    string
	}{
		{
			name:    "sqlserver without date column",
			dialect: SQLServerDialect{},
			columns: []string{"Id", "Contenido"},
			want:    "SELECT TOP 200 * FROM [dbo].[Chat_Mensaje]",
		},
		{
			name:    "sqlserver ordered",
			dialect: SQLServerDialect{},
			columns: []string{"Id", "Fecha_Creacion", "Contenido"},
			want:    "SELECT TOP 200 * FROM [dbo].[Chat_Mensaje] ORDER BY [Fecha_Creacion] ASC",
		},
		{
			name:    "postgres ordered",
			dialect: PostgresDialect{},
			columns: []string{"createdAt"},
			want:    `SELECT * FROM "public"."Chat_Mensaje" ORDER BY "createdAt" ASC LIMIT 200`,
		},
		{
			name:    "sqlite unordered",
			dialect: SQLiteDialect{},
			columns: []string{"Id"},
			want:    `SELECT * FROM "Chat_Mensaje" LIMIT 200`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildOrderedQuery(tt.dialect, table, tt.columns, RowLimit)
			if err != nil {
				t.Fatalf("BuildOrderedQuery failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if !strings.Contains(tt.want, "ORDER BY") && strings.Contains(got, "ORDER BY") {
				t.Fatalf("unexpected ORDER BY in %q", got)
			}
		})
	}
}

func TestBuildOrderedQueryRejectsBadIdentifiers(t *testing.T) {
	if _, err := BuildOrderedQuery(SQLiteDialect{}, Table{Name: "x; DROP TABLE y"}, nil, RowLimit); err == nil {
		t.Fatal("expected invalid table name to be rejected")
	}
	if _, err := BuildOrderedQuery(SQLiteDialect{}, Table{Schema: "a]b", Name: MessageTable}, nil, RowLimit); err == nil {
		t.Fatal("expected invalid schema to be rejected")
	}
	if _, err := BuildOrderedQuery(SQLiteDialect{}, Table{Name: MessageTable}, nil, 0); err == nil {
		t.Fatal("expected non-positive limit to be rejected")
	}
}

func TestDialectFor(t *testing.T) {
	for driver, want := range map[string]string{
		"sqlite":    "sqlite",
		"postgres":  "pgx",
		"SQLServer": "sqlserver",
		"mssql":     "sqlserver",
	} {
		d, err := DialectFor(driver)
		if err != nil {
			t.Fatalf("DialectFor(%q) failed: %v", driver, err)
		}
		if d.Name() != want {
			t.Fatalf("DialectFor(%q).Name() = %q, want %q", driver, d.Name(), want)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func newSQLiteStore(t *testing.T, schema string, inserts ...string) Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	for _, stmt := range inserts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	repo, err := Open(Options{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRecentMessagesOrdersByDiscoveredColumn(t *testing.T) {
	repo := newSQLiteStore(t,
		`CREATE TABLE Chat_Mensaje (Cod_Mensaje INTEGER, Login_Emisor TEXT, Contenido TEXT, Fecha_Creacion TEXT)`,
		`INSERT INTO Chat_Mensaje VALUES (1, 'ana', 'second', '2024-01-02T10:00:00Z')`,
		`INSERT INTO Chat_Mensaje VALUES (2, 'luis', 'first', '2024-01-01T10:00:00Z')`,
		`INSERT INTO Chat_Mensaje VALUES (3, 'ana', 'third', '2024-01-03T10:00:00Z')`,
	)

	cols, err := repo.MessageColumns(context.Background())
	if err != nil {
		t.Fatalf("MessageColumns failed: %v", err)
	}
	if strings.Join(cols, ",") != "Cod_Mensaje,Login_Emisor,Contenido,Fecha_Creacion" {
		t.Fatalf("unexpected columns %v", cols)
	}

	rows, err := repo.RecentMessages(context.Background())
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	var got []string
	for _, r := range rows {
		v, _ := r.Get("Contenido")
		got = append(got, v.(string))
	}
	if strings.Join(got, ",") != "first,second,third" {
		t.Fatalf("expected ascending order, got %v", got)
	}
	if keys := rows[0].Keys(); keys[0] != "Cod_Mensaje" || keys[3] != "Fecha_Creacion" {
		t.Fatalf("expected column order preserved, got %v", keys)
	}
}

func TestRecentMessagesWithoutDateColumn(t *testing.T) {
	repo := newSQLiteStore(t,
		`CREATE TABLE Chat_Mensaje (Id INTEGER, Contenido TEXT)`,
		`INSERT INTO Chat_Mensaje VALUES (2, 'b')`,
		`INSERT INTO Chat_Mensaje VALUES (1, 'a')`,
	)

	rows, err := repo.RecentMessages(context.Background())
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestRecentMessagesCapsRows(t *testing.T) {
	inserts := make([]string, 0, RowLimit+10)
	for i := 0; i < RowLimit+10; i++ {
		inserts = append(inserts, `INSERT INTO Chat_Mensaje (Contenido) VALUES ('m')`)
	}
	repo := newSQLiteStore(t, `CREATE TABLE Chat_Mensaje (Contenido TEXT)`, inserts...)

	rows, err := repo.RecentMessages(context.Background())
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(rows) != RowLimit {
		t.Fatalf("expected %d rows, got %d", RowLimit, len(rows))
	}
}

func TestRecentMessagesMissingTable(t *testing.T) {
	repo := newSQLiteStore(t, "")

	_, err := repo.RecentMessages(context.Background())
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if !errors.Is(err, shared.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(Options{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
