package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/uow/internal/schema"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM write_journal").Scan(&count); err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("Open() should reject a newer schema version")
	}
}

func TestOpen_ResumesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s.EnsureTables(ctx, blogRegistry(t)); err != nil {
		t.Fatalf("EnsureTables() failed: %v", err)
	}
	insertUser(t, s, "run-1", "ada")
	insertUser(t, s, "run-1", "bob")
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if got := s.clock.Current(); got != 2 {
		t.Errorf("clock = %d, want 2", got)
	}
}

func TestEnsureTable_Columns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	def := &schema.Definition{
		Role: "comment", Table: "comments", PrimaryKey: "cid",
		Columns:  []string{"cid", "body"},
		Variants: map[string]string{"reply": "reply"},
	}
	if err := s.EnsureTable(ctx, def); err != nil {
		t.Fatalf("EnsureTable() failed: %v", err)
	}
	// Idempotent.
	if err := s.EnsureTable(ctx, def); err != nil {
		t.Fatalf("second EnsureTable() failed: %v", err)
	}

	rows, err := s.db.Query(`SELECT name, pk FROM pragma_table_info('comments') ORDER BY cid`)
	if err != nil {
		t.Fatalf("table_info failed: %v", err)
	}
	defer rows.Close()

	var got []string
	var pk string
	for rows.Next() {
		var name string
		var isPK int
		if err := rows.Scan(&name, &isPK); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, name)
		if isPK == 1 {
			pk = name
		}
	}

	want := []string{"cid", "body", schema.Discriminator}
	if len(got) != len(want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
	if pk != "cid" {
		t.Errorf("primary key = %q, want cid", pk)
	}
	if s.keyOf("comments") != "cid" {
		t.Errorf("keyOf(comments) = %q, want cid", s.keyOf("comments"))
	}
}

func TestKeyOf_DefaultsToID(t *testing.T) {
	s := createTestStore(t)
	if got := s.keyOf("unknown"); got != "id" {
		t.Errorf("keyOf(unknown) = %q, want id", got)
	}
	s.RegisterKey("legacy", "legacy_id")
	if got := s.keyOf("legacy"); got != "legacy_id" {
		t.Errorf("keyOf(legacy) = %q, want legacy_id", got)
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := map[string]string{
		"users":   `"users"`,
		`we"ird`:  `"we""ird"`,
		"user_id": `"user_id"`,
		"select":  `"select"`,
	}
	for in, want := range tests {
		if got := quoteIdent(in); got != want {
			t.Errorf("quoteIdent(%q) = %q, want %q", in, got, want)
		}
	}
}
