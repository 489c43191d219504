package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/log"
	"github.com/dyne/cifrado/internal/rewrite"
	"github.com/dyne/cifrado/internal/schema"
	_ "modernc.org/sqlite"
)

// Run lists every table with its row count and the columns whose values the
// cipher can change.
func Run(ctx context.Context, inPath string, w io.Writer, logger *log.Logger) error {
	db, s, err := open(ctx, inPath)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintln(w, "Tables:")
	for _, name := range schema.TableOrder(s) {
		tbl := s.Tables[name]
		count, err := rowCount(ctx, db, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "- %s (%d rows)\n", name, count)
		if cols := tbl.TextColumns(); len(cols) > 0 {
			fmt.Fprintf(w, "  text columns: %s\n", strings.Join(cols, ", "))
		}
	}
	if logger != nil {
		logger.Infof("inspect complete")
	}
	return nil
}

// Suggest writes a rewrite configuration that encodes every text column,
// leaving primary keys alone.
func Suggest(ctx context.Context, inPath string, w io.Writer) error {
	db, s, err := open(ctx, inPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := Config(s)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode suggestion: %w", err)
	}
	return enc.Close()
}

// Config builds the configuration Suggest prints.
func Config(s *schema.Schema) *config.Config {
	cfg := &config.Config{Tables: map[string]*config.TableConfig{}}
	for name, tbl := range s.Tables {
		cols := map[string]*config.TransformConfig{}
		for _, c := range tbl.Columns {
			if c.IsText() && !c.PK {
				cols[c.Name] = &config.TransformConfig{Type: "encode"}
			}
		}
		if len(cols) > 0 {
			cfg.Tables[name] = &config.TableConfig{Columns: cols}
		}
	}
	return cfg
}

func open(ctx context.Context, inPath string) (*sql.DB, *schema.Schema, error) {
	if _, err := os.Stat(inPath); err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	db, err := sql.Open("sqlite", rewrite.DSN(inPath))
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	s, err := schema.Load(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, s, nil
}

func rowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s", schema.QuoteIdent(table))
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}
