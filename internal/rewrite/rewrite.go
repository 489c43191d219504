// Package rewrite copies a SQLite database into a new file, running the
// configured transformers over column values on the way.
package rewrite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/log"
	"github.com/dyne/cifrado/internal/schema"
	"github.com/dyne/cifrado/internal/transform"
	_ "modernc.org/sqlite"
)

type Options struct {
	InPath   string
	OutPath  string
	Config   *config.Config
	FKMode   string
	Triggers string
	Jobs     int
	Logger   *log.Logger
}

func Run(ctx context.Context, opts Options) error {
	if opts.InPath == "" || opts.OutPath == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if sameFile(opts.InPath, opts.OutPath) {
		return fmt.Errorf("output %s would overwrite the input", opts.OutPath)
	}
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.FKMode == "" {
		opts.FKMode = "on"
	}
	if _, err := os.Stat(opts.InPath); err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	if err := os.RemoveAll(opts.OutPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	inDB, err := sql.Open("sqlite", DSN(opts.InPath))
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inDB.Close()

	outDB, err := sql.Open("sqlite", DSN(opts.OutPath))
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer outDB.Close()
	// PRAGMA foreign_keys is per connection.
	outDB.SetMaxOpenConns(1)

	if err := setFKMode(ctx, outDB, opts.FKMode); err != nil {
		return err
	}

	s, err := schema.Load(ctx, inDB)
	if err != nil {
		return err
	}
	if err := checkConfig(s, opts.Config); err != nil {
		return err
	}

	order := schema.TableOrder(s)
	if err := createSchema(ctx, outDB, s, order, opts); err != nil {
		return err
	}
	var total int64
	for _, name := range order {
		if !tableIncluded(opts.Config, name) {
			opts.Logger.Infof("skip table %s", name)
			continue
		}
		opts.Logger.Infof("copy table %s", name)
		n, err := copyTable(ctx, inDB, outDB, s.Tables[name], opts)
		if err != nil {
			return fmt.Errorf("copy table %s: %w", name, err)
		}
		opts.Logger.Debugw("table copied", "table", name, "rows", n)
		total += n
	}
	if err := createPostDataSchema(ctx, outDB, s, opts); err != nil {
		return err
	}
	opts.Logger.Infow("copy complete", "rows", total, "out", opts.OutPath)
	return nil
}

// DSN is the connection string used for every SQLite file.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000", path)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func setFKMode(ctx context.Context, db *sql.DB, mode string) error {
	mode = strings.ToLower(mode)
	switch mode {
	case "on", "off":
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = "+strings.ToUpper(mode)); err != nil {
			return fmt.Errorf("set foreign_keys: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid fk mode: %s", mode)
	}
}

// checkConfig rejects transformers for tables or columns the input lacks, so
// a typo does not silently leave a column in clear text.
func checkConfig(s *schema.Schema, cfg *config.Config) error {
	names := make([]string, 0, len(cfg.Tables))
	for name := range cfg.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tc := cfg.Tables[name]
		if tc == nil || !tableIncluded(cfg, name) {
			continue
		}
		tbl, ok := s.Tables[name]
		if !ok {
			return fmt.Errorf("config references unknown table %s", name)
		}
		for col := range tc.Columns {
			if _, ok := tbl.Column(col); !ok {
				return fmt.Errorf("table %s has no column %s", name, col)
			}
		}
	}
	return nil
}

func tableIncluded(cfg *config.Config, name string) bool {
	if cfg == nil {
		return true
	}
	return schema.Included(cfg.IncludeTables, cfg.ExcludeTables, name)
}

func createSchema(ctx context.Context, outDB *sql.DB, s *schema.Schema, order []string, opts Options) error {
	tx, err := outDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()
	for _, name := range order {
		if !tableIncluded(opts.Config, name) {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.Tables[name].SQL); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func createPostDataSchema(ctx context.Context, outDB *sql.DB, s *schema.Schema, opts Options) error {
	tx, err := outDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin post-data tx: %w", err)
	}
	defer tx.Rollback()
	items := append([]schema.SQLItem{}, s.Views...)
	items = append(items, s.Indexes...)
	if strings.ToLower(opts.Triggers) != "off" {
		items = append(items, s.Triggers...)
	}
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, item.SQL); err != nil {
			if strings.Contains(err.Error(), "no such table") {
				// the object depends on an excluded table
				opts.Logger.Warnw("skip schema object", "type", item.Type, "name", item.Name, "error", err)
				continue
			}
			return fmt.Errorf("create %s %s: %w", item.Type, item.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post-data: %w", err)
	}
	return nil
}

type row struct {
	index  int
	values []any
	ctx    transform.RowContext
}

func copyTable(ctx context.Context, inDB, outDB *sql.DB, tbl *schema.Table, opts Options) (int64, error) {
	transformers, err := buildTransformers(opts.Config, tbl)
	if err != nil {
		return 0, err
	}
	for col := range transformers {
		if c, _ := tbl.Column(col); !c.IsText() {
			opts.Logger.Debugf("%s.%s is declared %q; only text values will change", tbl.Name, col, c.Type)
		}
	}

	colNames := make([]string, 0, len(tbl.Columns))
	colIndex := map[string]int{}
	for i, c := range tbl.Columns {
		colNames = append(colNames, c.Name)
		colIndex[c.Name] = i
	}
	useRowID := len(tbl.PrimaryKeys) == 0 && !tbl.WithoutRowID
	selectCols := quotedCols(colNames)
	if useRowID {
		selectCols = append([]string{"rowid"}, selectCols...)
	}
	query := fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(selectCols, ", "), schema.QuoteIdent(tbl.Name), orderBy(tbl, useRowID))
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", schema.QuoteIdent(tbl.Name), strings.Join(quotedCols(colNames), ", "), placeholders(len(colNames)))

	rows, err := inDB.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	tx, err := outDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	r := rowReader{rows: rows, width: len(selectCols), useRowID: useRowID, pk: pkIndexes(tbl, colIndex), table: tbl.Name}
	apply := func(rw *row) error {
		for col, tr := range transformers {
			idx := colIndex[col]
			v, err := tr.Transform(rw.values[idx], rw.ctx)
			if err != nil {
				return fmt.Errorf("transform %s.%s: %w", tbl.Name, col, err)
			}
			rw.values[idx] = v
		}
		return nil
	}

	var n int64
	if opts.Jobs <= 1 || len(transformers) == 0 {
		n, err = copySequential(ctx, r, stmt, apply)
	} else {
		n, err = copyParallel(ctx, r, stmt, apply, opts.Jobs)
	}
	if err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func copySequential(ctx context.Context, r rowReader, stmt *sql.Stmt, apply func(*row) error) (int64, error) {
	var n int64
	for {
		rw, ok, err := r.next(int(n))
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if err := apply(rw); err != nil {
			return n, err
		}
		if _, err := stmt.ExecContext(ctx, rw.values...); err != nil {
			return n, fmt.Errorf("insert: %w", err)
		}
		n++
	}
}

// copyParallel transforms rows on jobs workers and inserts them in the order
// they were read.
func copyParallel(ctx context.Context, r rowReader, stmt *sql.Stmt, apply func(*row) error, jobs int) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	pending := make(chan *row, jobs*2)
	done := make(chan *row, jobs*2)

	g.Go(func() error {
		defer close(pending)
		for i := 0; ; i++ {
			rw, ok, err := r.next(i)
			if err != nil || !ok {
				return err
			}
			select {
			case pending <- rw:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for w := 0; w < jobs; w++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for rw := range pending {
				if err := apply(rw); err != nil {
					return err
				}
				select {
				case done <- rw:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(done)
	}()

	var n int64
	g.Go(func() error {
		waiting := map[int]*row{}
		for rw := range done {
			waiting[rw.index] = rw
			for {
				next, ok := waiting[int(n)]
				if !ok {
					break
				}
				if _, err := stmt.ExecContext(gctx, next.values...); err != nil {
					return fmt.Errorf("insert: %w", err)
				}
				delete(waiting, int(n))
				n++
			}
		}
		return nil
	})
	err := g.Wait()
	return n, err
}

type rowReader struct {
	rows     *sql.Rows
	width    int
	useRowID bool
	pk       []int
	table    string
}

// next scans one row. ok is false once the result set is exhausted.
func (r rowReader) next(index int) (*row, bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, false, fmt.Errorf("iterate: %w", err)
		}
		return nil, false, nil
	}
	raw := make([]any, r.width)
	targets := make([]any, r.width)
	for i := range raw {
		targets[i] = &raw[i]
	}
	if err := r.rows.Scan(targets...); err != nil {
		return nil, false, fmt.Errorf("scan: %w", err)
	}
	values := raw
	var key []any
	if r.useRowID {
		key = []any{raw[0]}
		values = raw[1:]
	} else {
		for _, idx := range r.pk {
			key = append(key, values[idx])
		}
	}
	return &row{index: index, values: values, ctx: transform.RowContext{Table: r.table, PK: key}}, true, nil
}

func pkIndexes(tbl *schema.Table, colIndex map[string]int) []int {
	out := make([]int, 0, len(tbl.PrimaryKeys))
	for _, pk := range tbl.PrimaryKeys {
		out = append(out, colIndex[pk])
	}
	return out
}

func buildTransformers(cfg *config.Config, tbl *schema.Table) (map[string]transform.Transformer, error) {
	result := map[string]transform.Transformer{}
	tc := cfg.Tables[tbl.Name]
	if tc == nil {
		return result, nil
	}
	for col, c := range tc.Columns {
		tr, err := transform.Build(c)
		if err != nil {
			return nil, fmt.Errorf("build transformer %s.%s: %w", tbl.Name, col, err)
		}
		if tr != nil {
			result[col] = tr
		}
	}
	return result, nil
}

func orderBy(tbl *schema.Table, useRowID bool) string {
	if len(tbl.PrimaryKeys) > 0 {
		return "ORDER BY " + strings.Join(quotedCols(tbl.PrimaryKeys), ", ")
	}
	if useRowID {
		return "ORDER BY rowid"
	}
	return ""
}

func quotedCols(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, schema.QuoteIdent(c))
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
