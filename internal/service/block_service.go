package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/injector"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Block Service: the saved block registry
// ─────────────────────────────────────────────────────────────

// ErrNoRootContent rejects block data with no node the injector could root
// an injected subtree at.
var ErrNoRootContent = errors.New("no root content found")

// BlockService manages saved blocks. It is the injector's registry.
type BlockService struct {
	store    *storage.BlockStore
	resolver *resolver.Resolver
	emitter  EventEmitter
	log      *logrus.Entry
}

func NewBlockService(store *storage.BlockStore, r *resolver.Resolver, emitter EventEmitter) *BlockService {
	return &BlockService{
		store:    store,
		resolver: r,
		emitter:  emitter,
		log:      logrus.WithField("component", "blocks"),
	}
}

// BlockFile is the on-disk envelope for an exported block.
type BlockFile struct {
	ID   string              `json:"id"`
	Name string              `json:"name"`
	Data document.Serialized `json:"data"`
}

// SaveBlock stores data under id, replacing any block with the same id. An
// empty id gets a fresh one. The only requirement is discoverable root
// content: unknown types, a missing ROOT entry or dangling parents are left
// for the injector, which drops what it cannot rebuild.
func (s *BlockService) SaveBlock(ctx context.Context, id, name string, data document.Serialized) (*domain.SavedBlock, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("save block: data is empty")
	}
	if injector.RootContentID(data) == "" {
		return nil, fmt.Errorf("save block: %w", ErrNoRootContent)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(name) == "" {
		name = id
	}
	for _, typ := range s.unknownTypes(data) {
		s.log.WithFields(logrus.Fields{"block": id, "type": typ}).Warn("block references unknown component")
	}
	b := &domain.SavedBlock{ID: id, Name: name, Data: data.Clone()}
	if err := s.store.SaveBlock(b); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventBlockSaved, map[string]any{"id": b.ID, "name": b.Name})
	return b, nil
}

// unknownTypes lists the non-root component types of data the resolver
// does not know, sorted.
func (s *BlockService) unknownTypes(data document.Serialized) []string {
	seen := map[string]bool{}
	var out []string
	for id, n := range data {
		typ := n.Type.ResolvedName
		if id == document.RootID || seen[typ] || s.resolver.Has(typ) {
			continue
		}
		seen[typ] = true
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func (s *BlockService) GetBlock(id string) (*domain.SavedBlock, error) {
	return s.store.GetBlock(id)
}

// BlockData returns the stored data for id.
func (s *BlockService) BlockData(id string) (document.Serialized, error) {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// ListBlocks returns block metadata without data, ordered by name.
func (s *BlockService) ListBlocks() ([]domain.SavedBlock, error) {
	return s.store.ListBlocks()
}

func (s *BlockService) DeleteBlock(ctx context.Context, id string) error {
	if err := s.store.DeleteBlock(id); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventBlockDeleted, map[string]any{"id": id})
	return nil
}

// ── Files ──────────────────────────────────────────────────

// ImportFile saves the block stored at path. The file holds either a
// BlockFile envelope or a bare serialized document; a missing id is taken
// from the file name.
func (s *BlockService) ImportFile(ctx context.Context, path string) (*domain.SavedBlock, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block file: %w", err)
	}
	bf, err := parseBlockFile(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if bf.ID == "" {
		bf.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s.SaveBlock(ctx, bf.ID, bf.Name, bf.Data)
}

func parseBlockFile(raw []byte) (*BlockFile, error) {
	var envelope struct {
		ID   string          `json:"id"`
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(bytes.TrimSpace(envelope.Data)) > 0 {
		data, err := document.ParseSerialized(envelope.Data)
		if err != nil {
			return nil, err
		}
		return &BlockFile{ID: envelope.ID, Name: envelope.Name, Data: data}, nil
	}
	data, err := document.ParseSerialized(raw)
	if err != nil {
		return nil, err
	}
	return &BlockFile{Data: data}, nil
}

// ExportFile writes block id to path as an indented BlockFile.
func (s *BlockService) ExportFile(id, path string) error {
	b, err := s.store.GetBlock(id)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(BlockFile{ID: b.ID, Name: b.Name, Data: b.Data}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode block %s: %w", id, err)
	}
	return writeFileAtomic(path, append(out, '\n'))
}

// ── helpers ────────────────────────────────────────────────

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
