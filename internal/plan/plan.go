package plan

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/log"
	"github.com/dyne/cifrado/internal/rewrite"
	"github.com/dyne/cifrado/internal/schema"
	"github.com/dyne/cifrado/internal/transform"
	_ "modernc.org/sqlite"
)

// Run prints, for each table a rewrite would copy, the transformer that
// would run on each configured column.
func Run(ctx context.Context, inPath string, cfg *config.Config, w io.Writer, logger *log.Logger) error {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	if _, err := os.Stat(inPath); err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	db, err := sql.Open("sqlite", rewrite.DSN(inPath))
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer db.Close()

	s, err := schema.Load(ctx, db)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Plan:")
	for _, name := range schema.TableOrder(s) {
		if !schema.Included(cfg.IncludeTables, cfg.ExcludeTables, name) {
			logger.Debugf("plan: %s excluded", name)
			continue
		}
		fmt.Fprintf(w, "- %s\n", name)
		tbl := cfg.Tables[name]
		if tbl == nil || len(tbl.Columns) == 0 {
			fmt.Fprintln(w, "  (no transforms)")
			continue
		}
		cols := make([]string, 0, len(tbl.Columns))
		for c := range tbl.Columns {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			tr, err := transform.Build(tbl.Columns[c])
			if err != nil {
				return fmt.Errorf("%s.%s: %w", name, c, err)
			}
			label := tr.Name()
			if sh, ok := tr.(*transform.Shift); ok && label == "Shift" {
				label = fmt.Sprintf("Shift(%+d)", sh.Amount())
			}
			if _, ok := s.Tables[name].Column(c); !ok {
				label += " (missing column)"
			}
			fmt.Fprintf(w, "  - %s: %s\n", c, label)
		}
	}
	logger.Infof("plan complete")
	return nil
}
