package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"sitebuilder/internal/domain"
)

var mongoLog = log.WithField("driver", "mongodb")

// mongoConnector implements Connector for MongoDB. Collections play the
// role of tables.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// buildMongoURI returns the connection URI and database name for ds.
// A host that is already a mongodb:// or mongodb+srv:// URI is used as-is,
// with <password> placeholders filled in.
func buildMongoURI(ds *domain.DataSource, password string) (string, string) {
	var uri string
	if strings.HasPrefix(ds.Host, "mongodb+srv://") || strings.HasPrefix(ds.Host, "mongodb://") {
		uri = ds.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		if ds.Database != "" && !strings.Contains(uri, "/"+ds.Database) {
			if idx := strings.Index(uri, "?"); idx != -1 {
				uri = strings.TrimRight(uri[:idx], "/") + "/" + ds.Database + uri[idx:]
			} else {
				uri = strings.TrimRight(uri, "/") + "/" + ds.Database
			}
		}
	} else {
		port := ds.Port
		if port == 0 {
			port = 27017
		}
		if ds.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", ds.Username, password, ds.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", ds.Host, port)
		}

		// extraJSON carries authSource, replicaSet and similar options.
		if ds.ExtraJSON != "" && ds.ExtraJSON != "{}" {
			var extras map[string]string
			if json.Unmarshal([]byte(ds.ExtraJSON), &extras) == nil && len(extras) > 0 {
				keys := make([]string, 0, len(extras))
				for k := range extras {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				params := make([]string, len(keys))
				for i, k := range keys {
					params[i] = k + "=" + extras[k]
				}
				uri += "/?" + strings.Join(params, "&")
			}
		}
	}

	dbName := ds.Database
	if dbName == "" {
		dbName = mongoPathDatabase(uri)
	}
	return uri, dbName
}

// mongoPathDatabase extracts the database from user:pass@host/DB?params,
// defaulting to "test" like the driver.
func mongoPathDatabase(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

func newMongoConnector(ds *domain.DataSource, password string) (*mongoConnector, error) {
	uri, dbName := buildMongoURI(ds, password)

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	mongoLog.WithFields(logrus.Fields{"uri": logURI, "database": dbName}).Info("connecting")

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		mongoLog.WithError(err).Error("connect failed")
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// parseObjectID parses an ObjectID from either raw hex "67b8f1..."
// or the wrapped format ObjectID("67b8f1...") produced by fmt.Sprintf("%v").
func parseObjectID(s string) (bson.ObjectID, error) {
	if oid, err := bson.ObjectIDFromHex(s); err == nil {
		return oid, nil
	}
	if strings.HasPrefix(s, "ObjectID(\"") && strings.HasSuffix(s, "\")") {
		hex := s[len("ObjectID(\"") : len(s)-len("\")")]
		return bson.ObjectIDFromHex(hex)
	}
	return bson.ObjectID{}, fmt.Errorf("invalid ObjectID: %s", s)
}

// mongoValue converts _id strings to ObjectIDs so lookups by id match.
func mongoValue(field string, v any) any {
	if field != "_id" {
		return v
	}
	if s, ok := v.(string); ok {
		if oid, err := parseObjectID(s); err == nil {
			return oid
		}
	}
	return v
}

var mongoOps = map[string]string{
	OpNeq: "$ne",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpLt:  "$lt",
	OpLte: "$lte",
}

// likePattern converts a SQL LIKE pattern into an anchored regular expression.
func likePattern(p string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range p {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// mongoFilter translates filters into a query document. Filters on the same
// field are combined under $and.
func mongoFilter(filters []Filter) (bson.M, error) {
	var conds []bson.M
	for _, f := range filters {
		if f.Field == "" {
			return nil, fmt.Errorf("filter without field")
		}
		var cond any
		switch f.Operator {
		case OpEq:
			cond = mongoValue(f.Field, f.Value)
		case OpIsNull:
			cond = nil
		case OpNotNull:
			cond = bson.M{"$ne": nil}
		case OpLike:
			s, ok := f.Value.(string)
			if !ok {
				return nil, fmt.Errorf("filter %s: %q needs a string value", f.Field, OpLike)
			}
			cond = bson.M{"$regex": likePattern(s), "$options": "i"}
		case OpIn:
			items, ok := asSlice(f.Value)
			if !ok {
				return nil, fmt.Errorf("filter %s: %q needs a list value", f.Field, OpIn)
			}
			for i := range items {
				items[i] = mongoValue(f.Field, items[i])
			}
			cond = bson.M{"$in": items}
		default:
			op, ok := mongoOps[f.Operator]
			if !ok {
				return nil, fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Operator)
			}
			cond = bson.M{op: mongoValue(f.Field, f.Value)}
		}
		conds = append(conds, bson.M{f.Field: cond})
	}
	switch len(conds) {
	case 0:
		return bson.M{}, nil
	case 1:
		return conds[0], nil
	}
	and := make(bson.A, len(conds))
	for i, c := range conds {
		and[i] = c
	}
	return bson.M{"$and": and}, nil
}

func (m *mongoConnector) coll(name string) (*mongo.Collection, error) {
	if name == "" || strings.HasPrefix(name, "system.") || strings.ContainsAny(name, "$\x00") {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	return m.client.Database(m.dbName).Collection(name), nil
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	coll, err := m.coll(req.Table)
	if err != nil {
		return nil, err
	}
	filter, err := mongoFilter(req.Filters)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().SetLimit(int64(req.limit()))
	if req.OrderBy != "" {
		dir := 1
		if req.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: req.OrderBy, Value: dir}})
	}
	mongoLog.WithFields(logrus.Fields{"collection": req.Table, "filter": filter}).Debug("find")

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	out := []Row{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, mongoRow(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func mongoRow(doc bson.M) Row {
	row := make(Row, len(doc))
	for k, v := range doc {
		row[k] = mongoDisplay(v)
	}
	return row
}

func mongoDisplay(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.M:
		return mongoRow(val)
	case bson.D:
		row := make(Row, len(val))
		for _, e := range val {
			row[e.Key] = mongoDisplay(e.Value)
		}
		return row
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = mongoDisplay(item)
		}
		return out
	}
	return formatValue(v)
}

func (m *mongoConnector) Insert(ctx context.Context, table string, values Row) (Row, error) {
	coll, err := m.coll(table)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	for k, v := range values {
		doc[k] = mongoValue(k, v)
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insertOne: %w", err)
	}
	out := make(Row, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	out["_id"] = mongoDisplay(res.InsertedID)
	return out, nil
}

func keyFilter(key Row) (bson.M, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("a document key is required")
	}
	filter := bson.M{}
	for k, v := range key {
		filter[k] = mongoValue(k, v)
	}
	return filter, nil
}

func (m *mongoConnector) Update(ctx context.Context, table string, key, changes Row) (int64, error) {
	coll, err := m.coll(table)
	if err != nil {
		return 0, err
	}
	filter, err := keyFilter(key)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, fmt.Errorf("update %s: no changes", table)
	}
	set := bson.M{}
	for k, v := range changes {
		set[k] = v
	}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("updateOne: %w", err)
	}
	mongoLog.WithFields(logrus.Fields{"matched": res.MatchedCount, "modified": res.ModifiedCount}).Debug("updateOne")
	return res.MatchedCount, nil
}

func (m *mongoConnector) Delete(ctx context.Context, table string, key Row) (int64, error) {
	coll, err := m.coll(table)
	if err != nil {
		return 0, err
	}
	filter, err := keyFilter(key)
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("deleteOne: %w", err)
	}
	return res.DeletedCount, nil
}

// Introspect samples one document per collection to infer its fields.
func (m *mongoConnector) Introspect(ctx context.Context) (*Schema, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(collections)

	b := newSchemaBuilder()
	for _, name := range collections {
		t := b.table("", name)
		var doc bson.M
		err := db.Collection(name).FindOne(ctx, bson.M{}).Decode(&doc)
		if err != nil {
			continue
		}
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.Fields = append(t.Fields, Field{
				Name:       k,
				Type:       mongoFieldType(doc[k]),
				NativeType: fmt.Sprintf("%T", doc[k]),
				Nullable:   k != "_id",
				PrimaryKey: k == "_id",
			})
		}
	}
	return b.build(), nil
}

func mongoFieldType(v any) FieldType {
	switch v.(type) {
	case bool:
		return FieldBoolean
	case int32, int64, float64, bson.Decimal128:
		return FieldNumber
	case bson.DateTime, bson.Timestamp:
		return FieldDate
	case bson.M, bson.D, bson.A:
		return FieldJSON
	}
	return FieldString
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
