package migrations

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"
)

type stubResult struct{}

func (stubResult) LastInsertId() (int64, error) { return 0, nil }
func (stubResult) RowsAffected() (int64, error) { return 1, nil }

type recordingDB struct {
	applied map[string]bool
	execs   []string
}

func (r *recordingDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.execs = append(r.execs, strings.TrimSpace(query))
	if strings.HasPrefix(query, "INSERT INTO schema_migrations") {
		r.applied[args[0].(string)] = true
	}
	return stubResult{}, nil
}

func (r *recordingDB) GetContext(_ context.Context, dest any, _ string, args ...any) error {
	*dest.(*bool) = r.applied[args[0].(string)]
	return nil
}

func TestApplySkipsRecordedFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE a (id text);\n-- +migrate Down\nDROP TABLE a;\n")},
		"0002_b.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE b (id text);\nCREATE INDEX b_idx ON b (id);\n")},
	}
	db := &recordingDB{applied: map[string]bool{"0001_a.sql": true}}
	applied, err := apply(context.Background(), db, fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0002_b.sql" {
		t.Fatalf("unexpected applied list: %#v", applied)
	}
	for _, stmt := range db.execs {
		if strings.Contains(stmt, "TABLE a") {
			t.Fatalf("already applied migration executed: %s", stmt)
		}
	}
	if !db.applied["0002_b.sql"] {
		t.Fatal("expected 0002_b.sql to be recorded")
	}
}

func TestExtractUpDropsDownSection(t *testing.T) {
	up := ExtractUp("-- +migrate Up\nCREATE TABLE x (id int);\n-- +migrate Down\nDROP TABLE x;\n")
	if strings.Contains(up, "DROP") || !strings.Contains(up, "CREATE TABLE x") {
		t.Fatalf("unexpected up section: %q", up)
	}
}

func TestSplitStatements(t *testing.T) {
	statements := SplitStatements("-- comment\nCREATE TABLE x (\n  id int\n);\n\nCREATE INDEX x_idx ON x (id);\n")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(statements), statements)
	}
	if !strings.HasPrefix(strings.TrimSpace(statements[1]), "CREATE INDEX") {
		t.Fatalf("unexpected second statement: %q", statements[1])
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	entries, err := files.ReadDir(".")
	if err != nil {
		t.Fatalf("read embedded dir: %v", err)
	}
	if len(entries) < 3 {
		t.Fatalf("expected embedded migrations, got %d", len(entries))
	}
	for _, entry := range entries {
		content, err := files.ReadFile(entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		if len(SplitStatements(ExtractUp(string(content)))) == 0 {
			t.Fatalf("%s has no up statements", entry.Name())
		}
	}
}
