package domain

import "time"

// HistoryNode is one persisted snapshot in a page's edit history. Nodes form
// a tree through ParentID so undo followed by a new edit starts a branch.
type HistoryNode struct {
	ID        string    `json:"id"`
	PageID    string    `json:"pageId"`
	ParentID  string    `json:"parentId"`
	Label     string    `json:"label"`
	Snapshot  string    `json:"snapshot"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryTree is a page's full history with the current position.
type HistoryTree struct {
	Nodes     []HistoryNode `json:"nodes"`
	CurrentID string        `json:"currentId"`
}
