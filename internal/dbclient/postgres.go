package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"sitebuilder/internal/domain"
)

var postgresDialect = dialect{
	driverName:  "postgres",
	quote:       doubleQuote,
	placeholder: dollar,
	returning:   true,
	introspect:  introspectPostgres,
}

// buildPostgresDSN constructs a Postgres connection string from a DataSource.
func buildPostgresDSN(ds *domain.DataSource, password string) string {
	port := ds.Port
	if port == 0 {
		port = 5432
	}
	sslMode := ds.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ds.Host, port, ds.Username, password, ds.Database, sslMode,
	)
}

func introspectPostgres(ctx context.Context, db *sql.DB) (*Schema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_schema, table_name, column_name, data_type, udt_name, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		 ORDER BY table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	b := newSchemaBuilder()
	for rows.Next() {
		var schema, table, name, dataType, udt, nullable string
		if err := rows.Scan(&schema, &table, &name, &dataType, &udt, &nullable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}
		native := dataType
		if dataType == "USER-DEFINED" {
			native = udt
		}
		t := b.table(schema, table)
		t.Fields = append(t.Fields, Field{
			Name:       name,
			Type:       NormalizeType(dataType),
			NativeType: native,
			Nullable:   nullable == "YES",
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keys, err := db.QueryContext(ctx,
		`SELECT kcu.table_schema, kcu.table_name, kcu.column_name, tc.constraint_type,
		        COALESCE(ccu.table_schema, ''), COALESCE(ccu.table_name, ''), COALESCE(ccu.column_name, '')
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		 LEFT JOIN information_schema.constraint_column_usage ccu
		   ON tc.constraint_type = 'FOREIGN KEY' AND ccu.constraint_name = tc.constraint_name
		  AND ccu.constraint_schema = tc.table_schema
		 WHERE tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
		   AND tc.table_schema NOT IN ('pg_catalog', 'information_schema')`)
	if err != nil {
		log.WithError(err).Warn("postgres constraints unavailable")
		return b.build(), nil
	}
	defer keys.Close()
	for keys.Next() {
		var schema, table, col, kind string
		var fk ForeignKey
		if err := keys.Scan(&schema, &table, &col, &kind, &fk.Schema, &fk.Table, &fk.Column); err != nil {
			continue
		}
		f := b.field(schema, table, col)
		if f == nil {
			continue
		}
		if kind == "PRIMARY KEY" {
			f.PrimaryKey = true
		} else if fk.Table != "" {
			f.ForeignKey = &fk
		}
	}
	return b.build(), keys.Err()
}
