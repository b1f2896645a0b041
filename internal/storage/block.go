package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitebuilder/internal/domain"
)

// BlockStore implements domain.BlockStore over the saved_blocks table.
type BlockStore struct {
	db *DB
}

func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

// SaveBlock inserts b or replaces the stored block with the same ID.
// CreatedAt is kept from the first save.
func (s *BlockStore) SaveBlock(b *domain.SavedBlock) error {
	data, err := encodeDocument(b.Data)
	if err != nil {
		return fmt.Errorf("encode block data: %w", err)
	}
	if data == "" {
		data = "{}"
	}
	now := time.Now()
	b.UpdatedAt = now
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO saved_blocks (id, name, data_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data_json = excluded.data_json, updated_at = excluded.updated_at`,
		b.ID, b.Name, data, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return s.db.conn.QueryRow(`SELECT created_at FROM saved_blocks WHERE id = ?`, b.ID).Scan(&b.CreatedAt)
}

func (s *BlockStore) GetBlock(id string) (*domain.SavedBlock, error) {
	var (
		b    domain.SavedBlock
		data string
	)
	err := s.db.conn.QueryRow(
		`SELECT id, name, data_json, created_at, updated_at FROM saved_blocks WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &data, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get block %s: %w", id, domain.ErrBlockNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	if b.Data, err = decodeDocument(data); err != nil {
		return nil, fmt.Errorf("block %s data: %w", id, err)
	}
	return &b, nil
}

// ListBlocks returns block metadata ordered by name. Data is not loaded.
func (s *BlockStore) ListBlocks() ([]domain.SavedBlock, error) {
	rows, err := s.db.conn.Query(`SELECT id, name, created_at, updated_at FROM saved_blocks ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.SavedBlock
	for rows.Next() {
		var b domain.SavedBlock
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (s *BlockStore) DeleteBlock(id string) error {
	res, err := s.db.conn.Exec(`DELETE FROM saved_blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete block %s: %w", id, domain.ErrBlockNotFound)
	}
	return nil
}
