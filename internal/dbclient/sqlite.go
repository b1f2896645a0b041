package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"sitebuilder/internal/domain"
)

var sqliteDialect = dialect{
	driverName:  "sqlite",
	quote:       doubleQuote,
	placeholder: questionMark,
	returning:   true,
	introspect:  introspectSQLite,
}

// newSQLiteConnector creates a connector for an external SQLite file.
// Opens in WAL mode with busy timeout for concurrent access.
func newSQLiteConnector(ds *domain.DataSource) (*sqlConnector, error) {
	dsn := ds.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLConnector(sqliteDialect, dsn)
}

type sqliteColumn struct {
	name    string
	colType string
	notNull bool
	pk      bool
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]sqliteColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", doubleQuote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []sqliteColumn
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, sqliteColumn{name: name, colType: colType, notNull: notNull == 1, pk: pk > 0})
	}
	return cols, rows.Err()
}

// introspectSQLite uses sqlite_master + PRAGMA table_info/foreign_key_list.
func introspectSQLite(ctx context.Context, db *sql.DB) (*Schema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tableNames = append(tableNames, name)
	}
	rows.Close()

	b := newSchemaBuilder()
	for _, tbl := range tableNames {
		t := b.table("", tbl)
		cols, err := sqliteColumns(ctx, db, tbl)
		if err != nil {
			log.WithError(err).WithField("table", tbl).Warn("sqlite table_info failed")
			continue
		}
		for _, c := range cols {
			t.Fields = append(t.Fields, Field{
				Name:       c.name,
				Type:       NormalizeType(c.colType),
				NativeType: c.colType,
				Nullable:   !c.notNull && !c.pk,
				PrimaryKey: c.pk,
			})
		}

		fkRows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", doubleQuote(tbl)))
		if err != nil {
			continue
		}
		for fkRows.Next() {
			var id, seq int
			var refTable, from string
			var to, onUpdate, onDelete, match sql.NullString
			if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				continue
			}
			if f := b.field("", tbl, from); f != nil {
				f.ForeignKey = &ForeignKey{Table: refTable, Column: to.String}
			}
		}
		fkRows.Close()
	}
	return b.build(), nil
}
