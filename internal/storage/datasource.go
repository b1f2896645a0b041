package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitebuilder/internal/domain"
)

// DataSourceStore manages data source records in SQLite.
type DataSourceStore struct {
	db *DB
}

// NewDataSourceStore creates a new DataSourceStore.
func NewDataSourceStore(db *DB) *DataSourceStore {
	return &DataSourceStore{db: db}
}

const dataSourceColumns = `id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at`

func scanDataSource(row rowScanner) (*domain.DataSource, error) {
	ds := &domain.DataSource{}
	err := row.Scan(&ds.ID, &ds.Name, &ds.Driver, &ds.Host, &ds.Port, &ds.Database, &ds.Username, &ds.SSLMode, &ds.ExtraJSON, &ds.CreatedAt, &ds.UpdatedAt)
	return ds, err
}

func (s *DataSourceStore) CreateDataSource(ds *domain.DataSource) error {
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	_, err := s.db.Conn().Exec(
		`INSERT INTO data_sources (`+dataSourceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Driver, ds.Host, ds.Port, ds.Database, ds.Username, ds.SSLMode, ds.ExtraJSON, ds.CreatedAt, ds.UpdatedAt,
	)
	return err
}

func (s *DataSourceStore) GetDataSource(id string) (*domain.DataSource, error) {
	ds, err := scanDataSource(s.db.Conn().QueryRow(`SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get data source %s: %w", id, domain.ErrDataSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get data source: %w", err)
	}
	return ds, nil
}

func (s *DataSourceStore) ListDataSources() ([]domain.DataSource, error) {
	rows, err := s.db.Conn().Query(`SELECT ` + dataSourceColumns + ` FROM data_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, rows.Err()
}

func (s *DataSourceStore) UpdateDataSource(ds *domain.DataSource) error {
	ds.UpdatedAt = time.Now()
	_, err := s.db.Conn().Exec(
		`UPDATE data_sources SET name = ?, driver = ?, host = ?, port = ?, database_name = ?, username = ?, ssl_mode = ?, extra_json = ?, updated_at = ?
		 WHERE id = ?`,
		ds.Name, ds.Driver, ds.Host, ds.Port, ds.Database, ds.Username, ds.SSLMode, ds.ExtraJSON, ds.UpdatedAt, ds.ID,
	)
	return err
}

func (s *DataSourceStore) DeleteDataSource(id string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM data_sources WHERE id = ?`, id)
	return err
}
