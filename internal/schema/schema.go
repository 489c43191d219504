package schema

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"sort"
	"strings"
)

type Schema struct {
	Tables   map[string]*Table
	Views    []SQLItem
	Indexes  []SQLItem
	Triggers []SQLItem
}

// SQLItem is a view, index or trigger recreated verbatim after the data copy.
type SQLItem struct {
	Name string
	SQL  string
	Type string
}

type Table struct {
	Name         string
	SQL          string
	Columns      []Column
	PrimaryKeys  []string
	References   []string
	WithoutRowID bool
}

type Column struct {
	Name    string
	Type    string
	NotNull bool
	PK      bool
}

// IsText reports whether SQLite gives the column TEXT affinity, i.e. its
// declared type mentions CHAR, CLOB or TEXT.
func (c Column) IsText() bool {
	t := strings.ToUpper(c.Type)
	return strings.Contains(t, "CHAR") || strings.Contains(t, "CLOB") || strings.Contains(t, "TEXT")
}

// Column returns the named column, if the table has it.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TextColumns lists the names of the columns with TEXT affinity.
func (t *Table) TextColumns() []string {
	var out []string
	for _, c := range t.Columns {
		if c.IsText() {
			out = append(out, c.Name)
		}
	}
	return out
}

// Load reads tables, views, indexes and triggers from sqlite_master.
func Load(ctx context.Context, db *sql.DB) (*Schema, error) {
	s := &Schema{Tables: map[string]*Table{}}
	rows, err := db.QueryContext(ctx, `SELECT name, type, sql FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}
	var tables []*Table
	for rows.Next() {
		var name, typ string
		var text sql.NullString
		if err := rows.Scan(&name, &typ, &text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sqlite_master: %w", err)
		}
		if !text.Valid {
			// autoindexes and internal objects have no SQL to replay
			continue
		}
		item := SQLItem{Name: name, SQL: text.String, Type: typ}
		switch typ {
		case "table":
			tables = append(tables, &Table{
				Name:         name,
				SQL:          text.String,
				WithoutRowID: strings.Contains(strings.ToUpper(text.String), "WITHOUT ROWID"),
			})
		case "index":
			s.Indexes = append(s.Indexes, item)
		case "trigger":
			s.Triggers = append(s.Triggers, item)
		case "view":
			s.Views = append(s.Views, item)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate sqlite_master: %w", err)
	}
	rows.Close()

	// PRAGMA queries run only after the sqlite_master cursor is closed.
	for _, tbl := range tables {
		if err := loadColumns(ctx, db, tbl); err != nil {
			return nil, err
		}
		if err := loadReferences(ctx, db, tbl); err != nil {
			return nil, err
		}
		s.Tables[tbl.Name] = tbl
	}
	return s, nil
}

func loadColumns(ctx context.Context, db *sql.DB, tbl *Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(tbl.Name)))
	if err != nil {
		return fmt.Errorf("table_info %s: %w", tbl.Name, err)
	}
	defer rows.Close()
	pkOrder := map[int]string{}
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan table_info %s: %w", tbl.Name, err)
		}
		tbl.Columns = append(tbl.Columns, Column{Name: name, Type: colType, NotNull: notnull == 1, PK: pk > 0})
		if pk > 0 {
			pkOrder[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate table_info %s: %w", tbl.Name, err)
	}
	for i := 1; i <= len(pkOrder); i++ {
		tbl.PrimaryKeys = append(tbl.PrimaryKeys, pkOrder[i])
	}
	return nil
}

func loadReferences(ctx context.Context, db *sql.DB, tbl *Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", QuoteIdent(tbl.Name)))
	if err != nil {
		return fmt.Errorf("foreign_key_list %s: %w", tbl.Name, err)
	}
	defer rows.Close()
	seen := map[string]bool{}
	for rows.Next() {
		var (
			id, seq                          int
			parent, from, onUpdate, onDelete string
			to, match                        sql.NullString
		)
		if err := rows.Scan(&id, &seq, &parent, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("scan foreign_key_list %s: %w", tbl.Name, err)
		}
		if !seen[parent] {
			seen[parent] = true
			tbl.References = append(tbl.References, parent)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign_key_list %s: %w", tbl.Name, err)
	}
	return nil
}

func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MatchAny reports whether name matches one of the glob patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Included applies include/exclude glob lists: an empty include list admits
// every table, and exclusion wins over inclusion.
func Included(include, exclude []string, name string) bool {
	if len(include) > 0 && !MatchAny(include, name) {
		return false
	}
	return !MatchAny(exclude, name)
}

// TableOrder sorts tables so that referenced tables come before the tables
// referencing them. Ties are broken by name; tables caught in a reference
// cycle are appended in name order.
func TableOrder(s *Schema) []string {
	pending := map[string]int{}
	children := map[string][]string{}
	for name, tbl := range s.Tables {
		if _, ok := pending[name]; !ok {
			pending[name] = 0
		}
		for _, parent := range tbl.References {
			if _, ok := s.Tables[parent]; !ok || parent == name {
				continue
			}
			pending[name]++
			children[parent] = append(children[parent], name)
		}
	}
	var ready []string
	for name, n := range pending {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(s.Tables))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		delete(pending, next)
		for _, child := range children[next] {
			pending[child]--
			if pending[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if len(pending) > 0 {
		rest := make([]string, 0, len(pending))
		for name := range pending {
			rest = append(rest, name)
		}
		sort.Strings(rest)
		order = append(order, rest...)
	}
	return order
}
