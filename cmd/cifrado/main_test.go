package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyne/cifrado/internal/rewrite"
	_ "modernc.org/sqlite"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncodeDecodeArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"encode", "Hola", "Ñandú", "2024"}, "Mtpf Sfriú 7579\n"},
		{[]string{"decode", "Xjhwjyt"}, "Secreto\n"},
		{[]string{"encode", "Hi 5!"}, "Mn 0!\n"},
	}
	for _, tc := range tests {
		got, err := execute(t, "", tc.args...)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if got != tc.want {
			t.Fatalf("%v: got %q want %q", tc.args, got, tc.want)
		}
	}
}

func TestEncodeStdin(t *testing.T) {
	got, err := execute(t, "Año 2025\nZz9\n", "encode")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Fst 7570\nEe4\n" {
		t.Fatalf("got %q", got)
	}
	back, err := execute(t, got, "decode")
	if err != nil {
		t.Fatal(err)
	}
	if back != "Año 2025\nZz9\n" {
		t.Fatalf("round trip got %q", back)
	}
}

func TestCopyPlanInspect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.sqlite")
	out := filepath.Join(dir, "out.sqlite")
	cfgPath := filepath.Join(dir, "cifrado.yaml")

	db, err := sql.Open("sqlite", rewrite.DSN(in))
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`,
		`INSERT INTO notes (body) VALUES ('Secreto'), ('Año 2025')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	suggestion, err := execute(t, "", "inspect", "--in", in, "--suggest")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(suggestion), 0o644); err != nil {
		t.Fatal(err)
	}

	planOut, err := execute(t, "", "plan", "--in", in, "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(planOut, "  - body: Encode") {
		t.Fatalf("unexpected plan:\n%s", planOut)
	}

	if _, err := execute(t, "", "copy", "--in", in, "--out", out, "--config", cfgPath, "--jobs", "2"); err != nil {
		t.Fatal(err)
	}
	outDB, err := sql.Open("sqlite", rewrite.DSN(out))
	if err != nil {
		t.Fatal(err)
	}
	defer outDB.Close()
	var body string
	if err := outDB.QueryRow(`SELECT body FROM notes WHERE id = 1`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	if body != "Xjhwjyt" {
		t.Fatalf("body = %q", body)
	}

	listing, err := execute(t, "", "inspect", "--in", out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(listing, "- notes (2 rows)") {
		t.Fatalf("unexpected listing:\n%s", listing)
	}
}

func TestCopyRequiresFlags(t *testing.T) {
	if _, err := execute(t, "", "copy", "--in", "x.sqlite"); err == nil {
		t.Fatal("expected error for missing --out")
	}
}

func TestServeRejectsBadListen(t *testing.T) {
	if _, err := execute(t, "", "serve", "--listen", "not-an-address"); err == nil {
		t.Fatal("expected error for invalid listen address")
	}
}
