package domain

import (
	"errors"
	"time"

	"sitebuilder/internal/document"
)

var ErrBlockNotFound = errors.New("block not found")

// SavedBlock is a named serialized subtree kept in the block registry.
// Data is stored as-is and owns its own ROOT entry.
type SavedBlock struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Data      document.Serialized `json:"data"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// BlockStore is the key-value store behind the block registry.
// SaveBlock inserts or replaces by ID.
type BlockStore interface {
	SaveBlock(b *SavedBlock) error
	GetBlock(id string) (*SavedBlock, error)
	ListBlocks() ([]SavedBlock, error)
	DeleteBlock(id string) error
}
