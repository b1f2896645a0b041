package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sitebuilder/internal/domain"
)

// MaxHistoryNodes bounds the stored history of a single page.
const MaxHistoryNodes = 40

// ErrNoHistory is returned when undo or redo has nowhere to go.
var ErrNoHistory = errors.New("no history entry")

// HistoryStore keeps per-page edit snapshots in SQLite.
type HistoryStore struct {
	db  *DB
	max int
}

func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db, max: MaxHistoryNodes}
}

// LoadTree returns the full history of a page, or nil when none exists.
func (s *HistoryStore) LoadTree(pageID string) (*domain.HistoryTree, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, page_id, COALESCE(parent_id, ''), label, snapshot_json, created_at
		 FROM history_nodes WHERE page_id = ? ORDER BY created_at ASC, rowid ASC`, pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.HistoryNode
	for rows.Next() {
		var n domain.HistoryNode
		if err := rows.Scan(&n.ID, &n.PageID, &n.ParentID, &n.Label, &n.Snapshot, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	currentID, err := s.current(pageID)
	if err != nil {
		return nil, err
	}
	return &domain.HistoryTree{Nodes: nodes, CurrentID: currentID}, nil
}

func (s *HistoryStore) current(pageID string) (string, error) {
	var id string
	err := s.db.Conn().QueryRow(`SELECT current_node_id FROM history_state WHERE page_id = ?`, pageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Push records snapshot as a child of the current node and moves the
// current pointer to it.
func (s *HistoryStore) Push(pageID, label, snapshot string) (*domain.HistoryNode, error) {
	parentID, err := s.current(pageID)
	if err != nil {
		return nil, fmt.Errorf("read history state: %w", err)
	}

	node := &domain.HistoryNode{
		ID:        uuid.NewString(),
		PageID:    pageID,
		ParentID:  parentID,
		Label:     label,
		Snapshot:  snapshot,
		CreatedAt: time.Now(),
	}
	var pID *string
	if parentID != "" {
		pID = &parentID
	}

	_, err = s.db.Conn().Exec(
		`INSERT INTO history_nodes (id, page_id, parent_id, label, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, pageID, pID, label, snapshot, node.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history node: %w", err)
	}
	if err := s.GoTo(pageID, node.ID); err != nil {
		return nil, fmt.Errorf("update history state: %w", err)
	}

	s.pruneIfNeeded(pageID)
	return node, nil
}

// GoTo updates the current position pointer.
func (s *HistoryStore) GoTo(pageID, nodeID string) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO history_state (page_id, current_node_id) VALUES (?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET current_node_id = excluded.current_node_id`,
		pageID, nodeID,
	)
	return err
}

// UndoTarget returns the parent of the current node without moving to it.
func (s *HistoryStore) UndoTarget(pageID string) (*domain.HistoryNode, error) {
	currentID, err := s.current(pageID)
	if err != nil {
		return nil, err
	}
	if currentID == "" {
		return nil, ErrNoHistory
	}
	cur, err := s.node(currentID)
	if err != nil {
		return nil, err
	}
	if cur.ParentID == "" {
		return nil, ErrNoHistory
	}
	return s.node(cur.ParentID)
}

// RedoTarget returns the most recent child of the current node without
// moving to it.
func (s *HistoryStore) RedoTarget(pageID string) (*domain.HistoryNode, error) {
	currentID, err := s.current(pageID)
	if err != nil {
		return nil, err
	}
	if currentID == "" {
		return nil, ErrNoHistory
	}
	var childID string
	err = s.db.Conn().QueryRow(
		`SELECT id FROM history_nodes WHERE parent_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, currentID,
	).Scan(&childID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, err
	}
	return s.node(childID)
}

// Undo moves to the parent of the current node and returns it.
func (s *HistoryStore) Undo(pageID string) (*domain.HistoryNode, error) {
	return s.step(pageID, s.UndoTarget)
}

// Redo moves to the most recent child of the current node and returns it.
func (s *HistoryStore) Redo(pageID string) (*domain.HistoryNode, error) {
	return s.step(pageID, s.RedoTarget)
}

func (s *HistoryStore) step(pageID string, target func(string) (*domain.HistoryNode, error)) (*domain.HistoryNode, error) {
	n, err := target(pageID)
	if err != nil {
		return nil, err
	}
	return n, s.GoTo(pageID, n.ID)
}

func (s *HistoryStore) node(id string) (*domain.HistoryNode, error) {
	var n domain.HistoryNode
	err := s.db.Conn().QueryRow(
		`SELECT id, page_id, COALESCE(parent_id, ''), label, snapshot_json, created_at FROM history_nodes WHERE id = ?`, id,
	).Scan(&n.ID, &n.PageID, &n.ParentID, &n.Label, &n.Snapshot, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get history node %s: %w", id, err)
	}
	return &n, nil
}

// ClearPage removes all history for a page.
func (s *HistoryStore) ClearPage(pageID string) error {
	_, _ = s.db.Conn().Exec(`DELETE FROM history_state WHERE page_id = ?`, pageID)
	_, err := s.db.Conn().Exec(`DELETE FROM history_nodes WHERE page_id = ?`, pageID)
	return err
}

// pruneIfNeeded removes the oldest nodes once a page exceeds the limit.
// Children of a removed node are reattached to its parent.
func (s *HistoryStore) pruneIfNeeded(pageID string) {
	var count int
	s.db.Conn().QueryRow(`SELECT COUNT(*) FROM history_nodes WHERE page_id = ?`, pageID).Scan(&count)
	if count <= s.max {
		return
	}

	// Read the pointer before opening the cursor; the pool has one connection.
	currentID, _ := s.current(pageID)

	rows, err := s.db.Conn().Query(
		`SELECT id FROM history_nodes WHERE page_id = ?
		 ORDER BY created_at ASC, rowid ASC LIMIT ?`, pageID, count-s.max,
	)
	if err != nil {
		return
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if id != currentID {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		var parentID sql.NullString
		s.db.Conn().QueryRow(`SELECT parent_id FROM history_nodes WHERE id = ?`, id).Scan(&parentID)
		s.db.Conn().Exec(`UPDATE history_nodes SET parent_id = ? WHERE parent_id = ?`, parentID, id)
		s.db.Conn().Exec(`DELETE FROM history_nodes WHERE id = ?`, id)
	}
}
