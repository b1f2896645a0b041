package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"sitebuilder/internal/domain"
)

var mysqlDialect = dialect{
	driverName:  "mysql",
	quote:       backtick,
	placeholder: questionMark,
	introspect:  introspectMySQL,
	primaryKeys: mysqlPrimaryKeys,
}

// buildMySQLDSN constructs a MySQL DSN from a DataSource.
func buildMySQLDSN(ds *domain.DataSource, password string) string {
	port := ds.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		ds.Username, password, ds.Host, port, ds.Database,
	)
	if ds.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

func introspectMySQL(ctx context.Context, db *sql.DB) (*Schema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = DATABASE()
		 ORDER BY TABLE_NAME, ORDINAL_POSITION`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	b := newSchemaBuilder()
	for rows.Next() {
		var table, name, dataType, columnType, nullable, key string
		if err := rows.Scan(&table, &name, &dataType, &columnType, &nullable, &key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}
		f := Field{
			Name:       name,
			Type:       NormalizeType(columnType),
			NativeType: dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: key == "PRI",
		}
		if f.Type == FieldEnum {
			f.Options = parseEnumValues(columnType)
		}
		t := b.table("", table)
		t.Fields = append(t.Fields, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_SCHEMA, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL`)
	if err != nil {
		log.WithError(err).Warn("mysql foreign keys unavailable")
		return b.build(), nil
	}
	defer fks.Close()
	for fks.Next() {
		var table, col string
		var fk ForeignKey
		if err := fks.Scan(&table, &col, &fk.Schema, &fk.Table, &fk.Column); err != nil {
			continue
		}
		if f := b.field("", table, col); f != nil {
			f.ForeignKey = &fk
		}
	}
	return b.build(), fks.Err()
}

func mysqlPrimaryKeys(ctx context.Context, db *sql.DB, t tableRef) []string {
	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		 ORDER BY ORDINAL_POSITION`, t.Schema, t.Name)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		pks = append(pks, name)
	}
	return pks
}
