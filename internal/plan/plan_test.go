package plan

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/log"
	_ "modernc.org/sqlite"
)

func TestPlanOutput(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	inPath := filepath.Join(tmp, "plan.sqlite")
	if err := createPlanDB(inPath); err != nil {
		t.Fatalf("create db: %v", err)
	}
	minus := -5
	cfg := &config.Config{
		ExcludeTables: []string{"audit"},
		Tables: map[string]*config.TableConfig{
			"users": {
				Columns: map[string]*config.TransformConfig{
					"email":     {Type: "Encode"},
					"full_name": {Type: "encode"},
					"legacy":    {Type: "shift", Amount: &minus},
				},
			},
		},
	}
	var out bytes.Buffer
	if err := Run(ctx, inPath, cfg, &out, log.New(log.LevelInfo, io.Discard)); err != nil {
		t.Fatalf("run: %v", err)
	}
	goldenPath := filepath.Join("testdata", "plan_golden.txt")
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	if out.String() != string(golden) {
		t.Fatalf("plan output mismatch\nexpected:\n%s\nactual:\n%s", string(golden), out.String())
	}
}

func TestPlanUnknownTransformer(t *testing.T) {
	tmp := t.TempDir()
	inPath := filepath.Join(tmp, "plan.sqlite")
	if err := createPlanDB(inPath); err != nil {
		t.Fatalf("create db: %v", err)
	}
	cfg := &config.Config{Tables: map[string]*config.TableConfig{
		"users": {Columns: map[string]*config.TransformConfig{"email": {Type: "FakerEmail"}}},
	}}
	if err := Run(context.Background(), inPath, cfg, io.Discard, nil); err == nil {
		t.Fatal("expected error for unknown transformer")
	}
}

func TestPlanMissingInput(t *testing.T) {
	if err := Run(context.Background(), filepath.Join(t.TempDir(), "absent.sqlite"), nil, io.Discard, nil); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func createPlanDB(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return err
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT, full_name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, status TEXT, FOREIGN KEY(user_id) REFERENCES users(id))`,
		`CREATE TABLE audit (id INTEGER PRIMARY KEY, line TEXT)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
