package dbclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"sitebuilder/internal/domain"
)

var log = logrus.WithField("component", "dbclient")

// FieldType is the normalized type of a column or document field as seen by
// page components. Native types map onto one of these.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldEnum    FieldType = "enum"
	FieldJSON    FieldType = "json"
)

// Schema describes the tables or collections of a data source.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table describes a table or collection. ID is the schema-qualified name
// accepted by Query and the mutation methods.
type Table struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Schema string  `json:"schema,omitempty"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Name       string      `json:"name"`
	Type       FieldType   `json:"type"`
	NativeType string      `json:"nativeType"`
	Nullable   bool        `json:"nullable"`
	PrimaryKey bool        `json:"primaryKey,omitempty"`
	Options    []string    `json:"options,omitempty"` // enum values when known
	ForeignKey *ForeignKey `json:"foreignKey,omitempty"`
}

type ForeignKey struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Filter operators accepted in QueryRequest.
const (
	OpEq      = "eq"
	OpNeq     = "neq"
	OpGt      = "gt"
	OpGte     = "gte"
	OpLt      = "lt"
	OpLte     = "lte"
	OpLike    = "like"
	OpIn      = "in"
	OpIsNull  = "is_null"
	OpNotNull = "not_null"
)

type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// QueryRequest selects rows from one table. Filters are ANDed.
type QueryRequest struct {
	Table   string   `json:"table"`
	Limit   int      `json:"limit,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	OrderBy string   `json:"orderBy,omitempty"`
	Desc    bool     `json:"desc,omitempty"`
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func (q QueryRequest) limit() int {
	switch {
	case q.Limit <= 0:
		return defaultLimit
	case q.Limit > maxLimit:
		return maxLimit
	}
	return q.Limit
}

// Row is a single record keyed by column name.
type Row map[string]any

// Connector abstracts interaction with an external data source.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Introspect returns the tables and their normalized fields.
	Introspect(ctx context.Context) (*Schema, error)

	// Query returns at most req.Limit rows matching every filter.
	Query(ctx context.Context, req QueryRequest) ([]Row, error)

	// Insert adds a row and returns it as stored when the driver can report it.
	Insert(ctx context.Context, table string, values Row) (Row, error)

	// Update changes the rows matching key and returns how many matched.
	Update(ctx context.Context, table string, key, changes Row) (int64, error)

	// Delete removes the rows matching key.
	Delete(ctx context.Context, table string, key Row) (int64, error)

	// Close releases the connection pool.
	Close() error
}

// NewConnector creates a Connector for the given data source.
// The password must be provided separately (from SecretStore).
func NewConnector(ds *domain.DataSource, password string) (Connector, error) {
	switch ds.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(ds)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector(mysqlDialect, buildMySQLDSN(ds, password))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector(postgresDialect, buildPostgresDSN(ds, password))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(ds, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", ds.Driver)
	}
}

// NormalizeType maps a native SQL column type onto a FieldType.
func NormalizeType(native string) FieldType {
	t := strings.ToLower(strings.TrimSpace(native))
	switch {
	case t == "":
		return FieldString
	case strings.HasPrefix(t, "bool"), t == "bit", t == "bit(1)", t == "tinyint(1)":
		return FieldBoolean
	case strings.Contains(t, "json"):
		return FieldJSON
	case strings.HasPrefix(t, "enum"), strings.HasPrefix(t, "set("), t == "user-defined":
		return FieldEnum
	case strings.HasPrefix(t, "interval"):
		return FieldString
	case strings.Contains(t, "date"), strings.Contains(t, "time"), t == "year":
		return FieldDate
	case strings.Contains(t, "int"), strings.Contains(t, "serial"),
		strings.Contains(t, "real"), strings.Contains(t, "float"), strings.Contains(t, "double"),
		strings.Contains(t, "decimal"), strings.Contains(t, "numeric"), strings.Contains(t, "money"):
		return FieldNumber
	}
	return FieldString
}

// parseEnumValues extracts the members of a MySQL enum('a','b') column type.
func parseEnumValues(columnType string) []string {
	open := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if open < 0 || end <= open {
		return nil
	}
	var out []string
	for _, part := range strings.Split(columnType[open+1:end], ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(strings.TrimSuffix(part, "'"), "'")
		out = append(out, strings.ReplaceAll(part, "''", "'"))
	}
	return out
}
