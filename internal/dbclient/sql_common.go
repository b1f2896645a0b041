package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dialect captures what differs between the SQL drivers.
type dialect struct {
	driverName  string
	quote       func(ident string) string
	placeholder func(n int) string // n is 1-based
	returning   bool               // supports INSERT ... RETURNING *
	introspect  func(ctx context.Context, db *sql.DB) (*Schema, error)
	primaryKeys func(ctx context.Context, db *sql.DB, t tableRef) []string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func doubleQuote(ident string) string { return `"` + ident + `"` }

func backtick(ident string) string { return "`" + ident + "`" }

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	d  dialect
	db *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(d dialect, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{d: d, db: db}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Introspect(ctx context.Context) (*Schema, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return c.d.introspect(ctx, c.db)
}

func (c *sqlConnector) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	query, args, err := buildSelect(c.d, req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (c *sqlConnector) Insert(ctx context.Context, table string, values Row) (Row, error) {
	ref, err := parseTableRef(table)
	if err != nil {
		return nil, err
	}
	query, args, err := buildInsert(c.d, ref, values)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if c.d.returning {
		rows, err := c.db.QueryContext(ctx, query+" RETURNING *", args...)
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", table, err)
		}
		defer rows.Close()
		out, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return values, nil
		}
		return out[0], nil
	}

	// Detect keys before executing so the pool is not held by two queries.
	pks := c.d.primaryKeys(ctx, c.db, ref)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	out := make(Row, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	if len(pks) == 1 {
		if _, set := out[pks[0]]; !set {
			if id, err := res.LastInsertId(); err == nil && id > 0 {
				out[pks[0]] = id
			}
		}
	}
	return out, nil
}

func (c *sqlConnector) Update(ctx context.Context, table string, key, changes Row) (int64, error) {
	ref, err := parseTableRef(table)
	if err != nil {
		return 0, err
	}
	query, args, err := buildUpdate(c.d, ref, key, changes)
	if err != nil {
		return 0, err
	}
	return c.exec(ctx, "update "+table, query, args)
}

func (c *sqlConnector) Delete(ctx context.Context, table string, key Row) (int64, error) {
	ref, err := parseTableRef(table)
	if err != nil {
		return 0, err
	}
	query, args, err := buildDelete(c.d, ref, key)
	if err != nil {
		return 0, err
	}
	return c.exec(ctx, "delete from "+table, query, args)
}

func (c *sqlConnector) exec(ctx context.Context, what, query string, args []any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}

// ── query building ─────────────────────────────────────────

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tableRef is a validated, optionally schema-qualified table name.
type tableRef struct {
	Schema string
	Name   string
}

func (t tableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func parseTableRef(s string) (tableRef, error) {
	parts := strings.Split(s, ".")
	var ref tableRef
	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 2:
		ref.Schema, ref.Name = parts[0], parts[1]
	default:
		return ref, fmt.Errorf("invalid table name %q", s)
	}
	if !identPattern.MatchString(ref.Name) || (ref.Schema != "" && !identPattern.MatchString(ref.Schema)) {
		return ref, fmt.Errorf("invalid table name %q", s)
	}
	return ref, nil
}

func quoteRef(d dialect, t tableRef) string {
	if t.Schema == "" {
		return d.quote(t.Name)
	}
	return d.quote(t.Schema) + "." + d.quote(t.Name)
}

func column(d dialect, name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid column name %q", name)
	}
	return d.quote(name), nil
}

var comparisons = map[string]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpLike: "LIKE",
}

// buildWhere renders filters as a WHERE clause. Placeholders are numbered
// from start+1.
func buildWhere(d dialect, filters []Filter, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return d.placeholder(start + len(args))
	}
	for _, f := range filters {
		col, err := column(d, f.Field)
		if err != nil {
			return "", nil, err
		}
		switch f.Operator {
		case OpIsNull:
			clauses = append(clauses, col+" IS NULL")
		case OpNotNull:
			clauses = append(clauses, col+" IS NOT NULL")
		case OpIn:
			items, ok := asSlice(f.Value)
			if !ok {
				return "", nil, fmt.Errorf("filter %s: %q needs a list value", f.Field, OpIn)
			}
			if len(items) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := make([]string, len(items))
			for i, item := range items {
				marks[i] = next(item)
			}
			clauses = append(clauses, col+" IN ("+strings.Join(marks, ", ")+")")
		default:
			op, ok := comparisons[f.Operator]
			if !ok {
				return "", nil, fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Operator)
			}
			clauses = append(clauses, col+" "+op+" "+next(f.Value))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func buildSelect(d dialect, req QueryRequest) (string, []any, error) {
	ref, err := parseTableRef(req.Table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(d, req.Filters, 0)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT * FROM " + quoteRef(d, ref) + where
	if req.OrderBy != "" {
		col, err := column(d, req.OrderBy)
		if err != nil {
			return "", nil, err
		}
		q += " ORDER BY " + col
		if req.Desc {
			q += " DESC"
		}
	}
	q += " LIMIT " + strconv.Itoa(req.limit())
	return q, args, nil
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(d dialect, ref tableRef, values Row) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no values", ref)
	}
	keys := sortedKeys(values)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		col, err := column(d, k)
		if err != nil {
			return "", nil, err
		}
		cols[i] = col
		marks[i] = d.placeholder(i + 1)
		args[i] = values[k]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteRef(d, ref), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return q, args, nil
}

// keyFilters turns a row key into equality filters. An empty key is refused
// so a mutation can never touch a whole table.
func keyFilters(ref tableRef, key Row) ([]Filter, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%s: a row key is required", ref)
	}
	filters := make([]Filter, 0, len(key))
	for _, k := range sortedKeys(key) {
		if key[k] == nil {
			filters = append(filters, Filter{Field: k, Operator: OpIsNull})
			continue
		}
		filters = append(filters, Filter{Field: k, Operator: OpEq, Value: key[k]})
	}
	return filters, nil
}

func buildUpdate(d dialect, ref tableRef, key, changes Row) (string, []any, error) {
	if len(changes) == 0 {
		return "", nil, fmt.Errorf("update %s: no changes", ref)
	}
	filters, err := keyFilters(ref, key)
	if err != nil {
		return "", nil, err
	}
	keys := sortedKeys(changes)
	sets := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		col, err := column(d, k)
		if err != nil {
			return "", nil, err
		}
		sets[i] = col + " = " + d.placeholder(i+1)
		args[i] = changes[k]
	}
	where, whereArgs, err := buildWhere(d, filters, len(args))
	if err != nil {
		return "", nil, err
	}
	q := "UPDATE " + quoteRef(d, ref) + " SET " + strings.Join(sets, ", ") + where
	return q, append(args, whereArgs...), nil
}

func buildDelete(d dialect, ref tableRef, key Row) (string, []any, error) {
	filters, err := keyFilters(ref, key)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(d, filters, 0)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + quoteRef(d, ref) + where, args, nil
}

// ── results ────────────────────────────────────────────────

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = formatValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// formatValue converts a database value to a JSON-friendly one.
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

// schemaBuilder collects fields per table while keeping first-seen order.
type schemaBuilder struct {
	order  []string
	tables map[string]*Table
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{tables: map[string]*Table{}}
}

func (b *schemaBuilder) table(schema, name string) *Table {
	id := tableRef{Schema: schema, Name: name}.String()
	t, ok := b.tables[id]
	if !ok {
		t = &Table{ID: id, Name: name, Schema: schema, Fields: []Field{}}
		b.tables[id] = t
		b.order = append(b.order, id)
	}
	return t
}

func (b *schemaBuilder) field(schema, table, column string) *Field {
	t := b.table(schema, table)
	for i := range t.Fields {
		if t.Fields[i].Name == column {
			return &t.Fields[i]
		}
	}
	return nil
}

func (b *schemaBuilder) build() *Schema {
	s := &Schema{Tables: make([]Table, 0, len(b.order))}
	for _, id := range b.order {
		s.Tables = append(s.Tables, *b.tables[id])
	}
	return s
}
