package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sitebuilder/internal/dbclient"
	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/secret"
	"sitebuilder/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Data Source Service: databases that published pages read from
// ─────────────────────────────────────────────────────────────

// DataSourceInput is the service-layer DTO for creating/updating data sources.
type DataSourceInput struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	SSLMode   string `json:"sslMode"`
	ExtraJSON string `json:"extraJson"`
}

// DataSourceService manages data source connections. Live connectors are
// pooled per data source and dropped whenever its settings change.
type DataSourceService struct {
	store   *storage.DataSourceStore
	secrets secret.SecretStore
	emitter EventEmitter
	log     *logrus.Entry

	mu               sync.Mutex
	activeConnectors map[string]*connEntry
}

type connEntry struct {
	connector dbclient.Connector
	createdAt time.Time
}

func NewDataSourceService(store *storage.DataSourceStore, secrets secret.SecretStore, emitter EventEmitter) *DataSourceService {
	return &DataSourceService{
		store:            store,
		secrets:          secrets,
		emitter:          emitter,
		log:              logrus.WithField("component", "datasources"),
		activeConnectors: make(map[string]*connEntry),
	}
}

// ── CRUD ───────────────────────────────────────────────────

func (s *DataSourceService) ListDataSources() ([]domain.DataSource, error) {
	return s.store.ListDataSources()
}

func (s *DataSourceService) GetDataSource(id string) (*domain.DataSource, error) {
	return s.store.GetDataSource(id)
}

func (s *DataSourceService) CreateDataSource(ctx context.Context, input DataSourceInput) (*domain.DataSource, error) {
	ds := &domain.DataSource{ID: uuid.NewString()}
	if err := applyInput(ds, input); err != nil {
		return nil, err
	}
	if err := s.store.CreateDataSource(ds); err != nil {
		return nil, fmt.Errorf("create data source: %w", err)
	}
	if err := s.storePassword(ds.ID, input.Password); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventDataSourceChanged, map[string]any{"id": ds.ID})
	return ds, nil
}

func (s *DataSourceService) UpdateDataSource(ctx context.Context, id string, input DataSourceInput) error {
	ds, err := s.store.GetDataSource(id)
	if err != nil {
		return err
	}
	if err := applyInput(ds, input); err != nil {
		return err
	}
	if err := s.store.UpdateDataSource(ds); err != nil {
		return err
	}
	if err := s.storePassword(id, input.Password); err != nil {
		return err
	}
	// Next use reconnects with the new settings.
	s.drop(id)
	s.emitter.Emit(ctx, EventDataSourceChanged, map[string]any{"id": id})
	return nil
}

func (s *DataSourceService) DeleteDataSource(ctx context.Context, id string) error {
	s.drop(id)
	if s.secrets != nil {
		if err := s.secrets.Delete(secret.DataSourceKey(id)); err != nil {
			s.log.WithError(err).WithField("id", id).Warn("delete data source password")
		}
	}
	if err := s.store.DeleteDataSource(id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDataSourceChanged, map[string]any{"id": id, "deleted": true})
	return nil
}

func applyInput(ds *domain.DataSource, input DataSourceInput) error {
	driver := domain.DatabaseDriver(strings.ToLower(input.Driver))
	if !driver.Valid() {
		return fmt.Errorf("unsupported driver %q", input.Driver)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("data source name is required")
	}
	if input.ExtraJSON != "" && !json.Valid([]byte(input.ExtraJSON)) {
		return fmt.Errorf("extraJson is not valid JSON")
	}
	ds.Name = input.Name
	ds.Driver = driver
	ds.Host = input.Host
	ds.Port = input.Port
	ds.Database = input.Database
	ds.Username = input.Username
	ds.SSLMode = input.SSLMode
	ds.ExtraJSON = input.ExtraJSON
	return nil
}

func (s *DataSourceService) storePassword(id, password string) error {
	if password == "" || s.secrets == nil {
		return nil
	}
	if err := s.secrets.Set(secret.DataSourceKey(id), []byte(password)); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// ── Queries ────────────────────────────────────────────────

func (s *DataSourceService) TestConnection(ctx context.Context, id string) error {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return err
	}
	return connector.TestConnection(ctx)
}

func (s *DataSourceService) IntrospectSchema(ctx context.Context, id string) (*dbclient.Schema, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return nil, err
	}
	return connector.Introspect(ctx)
}

func (s *DataSourceService) Query(ctx context.Context, id string, req dbclient.QueryRequest) ([]dbclient.Row, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return nil, err
	}
	rows, err := connector.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Table, err)
	}
	return rows, nil
}

func (s *DataSourceService) Insert(ctx context.Context, id, table string, values dbclient.Row) (dbclient.Row, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return nil, err
	}
	return connector.Insert(ctx, table, values)
}

func (s *DataSourceService) Update(ctx context.Context, id, table string, key, changes dbclient.Row) (int64, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return 0, err
	}
	return connector.Update(ctx, table, key, changes)
}

func (s *DataSourceService) Delete(ctx context.Context, id, table string, key dbclient.Row) (int64, error) {
	connector, err := s.getOrCreate(id)
	if err != nil {
		return 0, err
	}
	return connector.Delete(ctx, table, key)
}

// ── Page context ───────────────────────────────────────────

// SourceDescriptor describes one data source to the published runtime.
type SourceDescriptor struct {
	ID     string            `json:"id"`
	Name   string            `json:"name,omitempty"`
	Driver string            `json:"driver,omitempty"`
	Tables []TableDescriptor `json:"tables,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type TableDescriptor struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Fields []dbclient.Field `json:"fields"`
}

// Descriptors builds the context blob handed to the interactive shell: one
// descriptor per data source id with its introspected tables. A source that
// cannot be reached is described with its error instead of failing the page.
func (s *DataSourceService) Descriptors(ctx context.Context, ids []string) (json.RawMessage, error) {
	out := struct {
		DataSources []SourceDescriptor `json:"dataSources"`
	}{DataSources: make([]SourceDescriptor, 0, len(ids))}

	for _, id := range ids {
		d := SourceDescriptor{ID: id}
		ds, err := s.store.GetDataSource(id)
		if err != nil {
			d.Error = err.Error()
			out.DataSources = append(out.DataSources, d)
			continue
		}
		d.Name = ds.Name
		d.Driver = string(ds.Driver)
		schema, err := s.IntrospectSchema(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("id", id).Warn("introspect data source for page context")
			d.Error = err.Error()
		} else {
			for _, t := range schema.Tables {
				d.Tables = append(d.Tables, TableDescriptor{ID: t.ID, Name: t.Name, Fields: t.Fields})
			}
		}
		out.DataSources = append(out.DataSources, d)
	}
	return json.Marshal(out)
}

// DataSourceIDs lists the distinct non-empty dataSource props of s, sorted.
func DataSourceIDs(s document.Serialized) []string {
	seen := map[string]bool{}
	for _, n := range s {
		if id := n.Props.Text("dataSource"); id != "" {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ── Connector Pool ─────────────────────────────────────────

func (s *DataSourceService) getOrCreate(id string) (dbclient.Connector, error) {
	s.mu.Lock()
	if e, ok := s.activeConnectors[id]; ok {
		s.mu.Unlock()
		return e.connector, nil
	}
	s.mu.Unlock()

	ds, err := s.store.GetDataSource(id)
	if err != nil {
		return nil, err
	}

	var password string
	if s.secrets != nil {
		if pw, err := s.secrets.Get(secret.DataSourceKey(id)); err == nil {
			password = string(pw)
		}
	}

	connector, err := dbclient.NewConnector(ds, password)
	if err != nil {
		return nil, fmt.Errorf("open data source %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[id]; ok {
		// Lost the race; keep the first connector.
		_ = connector.Close()
		return e.connector, nil
	}
	s.activeConnectors[id] = &connEntry{connector: connector, createdAt: time.Now()}
	return connector, nil
}

func (s *DataSourceService) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.activeConnectors[id]; ok {
		_ = e.connector.Close()
		delete(s.activeConnectors, id)
	}
}

// Close tears down all active connectors.
func (s *DataSourceService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.activeConnectors {
		_ = entry.connector.Close()
		delete(s.activeConnectors, id)
	}
}
