package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"sitebuilder/internal/document"
	"sitebuilder/internal/domain"
	"sitebuilder/internal/injector"
	"sitebuilder/internal/metrics"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
	"sitebuilder/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Editor Service: live documents of open pages
// ─────────────────────────────────────────────────────────────

// EditorService keeps one editing session per open page. Every call holds
// the session lock for its whole duration and drains the session loop
// before returning, so deferred injection steps run on the turn after the
// call that scheduled them and never race a mutation.
type EditorService struct {
	sites    *storage.SiteStore
	history  *storage.HistoryStore
	blocks   *BlockService
	resolver *resolver.Resolver
	emitter  EventEmitter
	log      *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu     sync.Mutex
	pageID string
	doc    *document.Document
	loop   *injector.Loop
	inj    *injector.Injector
	dirty  bool
}

func NewEditorService(
	sites *storage.SiteStore,
	history *storage.HistoryStore,
	blocks *BlockService,
	r *resolver.Resolver,
	emitter EventEmitter,
) *EditorService {
	return &EditorService{
		sites:    sites,
		history:  history,
		blocks:   blocks,
		resolver: r,
		emitter:  emitter,
		log:      logrus.WithField("component", "editor"),
		sessions: make(map[string]*session),
	}
}

// ── Sessions ───────────────────────────────────────────────

// session returns the open session for pageID, loading the page on first use.
func (s *EditorService) session(pageID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[pageID]; ok {
		return sess, nil
	}

	page, err := s.sites.GetPage(pageID)
	if err != nil {
		return nil, err
	}
	doc, err := s.load(page.Data)
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", pageID, err)
	}

	sess := &session{pageID: pageID, doc: doc, loop: injector.NewLoop()}
	sess.inj = injector.New(s.blocks, sess.loop,
		injector.WithLogger(s.log.WithField("page", pageID)),
		injector.WithOnSettled(func(in *injector.Injection) {
			res := in.Result()
			metrics.RecordInjection(res.State.String(), len(res.Dropped))
			payload := map[string]any{
				"pageId":      pageID,
				"blockId":     in.BlockID,
				"placeholder": in.PlaceholderID,
				"state":       res.State.String(),
				"rootId":      res.RootID,
			}
			if res.Err != nil {
				payload["error"] = res.Err.Error()
			}
			s.emitter.Emit(context.Background(), EventInjectionSettled, payload)
		}),
	)

	tree, err := s.history.LoadTree(pageID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		if err := s.pushSnapshot(pageID, "open", doc); err != nil {
			return nil, err
		}
	}

	s.sessions[pageID] = sess
	return sess, nil
}

func (s *EditorService) load(data document.Serialized) (*document.Document, error) {
	if len(data) == 0 {
		return document.New(s.resolver), nil
	}
	doc, dropped, err := document.Deserialize(s.resolver, data)
	if err != nil {
		return nil, err
	}
	for _, d := range dropped {
		s.log.WithError(d).Warn("dropped node while loading document")
	}
	return doc, nil
}

// Close discards the session for pageID. Unsaved changes are lost.
func (s *EditorService) Close(pageID string) {
	s.mu.Lock()
	sess, ok := s.sessions[pageID]
	delete(s.sessions, pageID)
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.loop.Pending() > 0 {
		s.log.WithField("page", pageID).Warn("closing session with pending injections")
	}
}

// CloseAll discards every session.
func (s *EditorService) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Close(id)
	}
}

// with runs fn under the session lock and drains the loop afterwards.
func (s *EditorService) with(pageID string, fn func(*session) error) error {
	sess, err := s.session(pageID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	err = fn(sess)
	sess.loop.RunPending()
	return err
}

// ── Reads ──────────────────────────────────────────────────

// Document returns the serialized live document of pageID.
func (s *EditorService) Document(pageID string) (document.Serialized, error) {
	var out document.Serialized
	err := s.with(pageID, func(sess *session) error {
		out = document.Serialize(sess.doc)
		return nil
	})
	return out, err
}

// Node returns a copy of one node of the live document.
func (s *EditorService) Node(pageID, nodeID string) (document.Node, error) {
	var out document.Node
	err := s.with(pageID, func(sess *session) error {
		n, ok := sess.doc.Node(nodeID)
		if !ok {
			return fmt.Errorf("node %s not found", nodeID)
		}
		out = n
		return nil
	})
	return out, err
}

// Dirty reports whether pageID has changes not yet saved.
func (s *EditorService) Dirty(pageID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[pageID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.dirty
}

// ── Commands ───────────────────────────────────────────────

// Apply runs cmds against the live document as one batch. When any command
// fails the document is restored to its state before the batch.
func (s *EditorService) Apply(ctx context.Context, pageID string, cmds ...document.Command) error {
	err := s.with(pageID, func(sess *session) error {
		snapshot := document.Serialize(sess.doc)
		if err := document.ApplyAll(sess.doc, cmds...); err != nil {
			restored, _, rerr := document.Deserialize(s.resolver, snapshot)
			if rerr != nil {
				return fmt.Errorf("%w (restore failed: %v)", err, rerr)
			}
			sess.doc = restored
			return err
		}
		sess.dirty = true
		return nil
	})
	if err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDocumentChanged, map[string]any{"pageId": pageID})
	return nil
}

// CreateNode creates a componentType node under parentID (root when empty).
func (s *EditorService) CreateNode(ctx context.Context, pageID, componentType string, props prop.Props, parentID string, index int) (string, error) {
	cmd := &document.CreateNodeCmd{Type: componentType, Props: props, Parent: parentID, Index: index}
	if err := s.Apply(ctx, pageID, cmd); err != nil {
		return "", err
	}
	return cmd.CreatedID, nil
}

func (s *EditorService) DeleteNode(ctx context.Context, pageID, nodeID string) error {
	return s.Apply(ctx, pageID, document.DeleteNodeCmd{ID: nodeID})
}

// SetProp overlays props on nodeID and removes the remove keys.
func (s *EditorService) SetProp(ctx context.Context, pageID, nodeID string, props prop.Props, remove []string) error {
	return s.Apply(ctx, pageID, document.SetPropCmd{ID: nodeID, Props: props, Remove: remove})
}

func (s *EditorService) SetHidden(ctx context.Context, pageID, nodeID string, hidden bool) error {
	return s.Apply(ctx, pageID, document.SetHiddenCmd{ID: nodeID, Hidden: hidden})
}

func (s *EditorService) MoveNode(ctx context.Context, pageID, nodeID, parentID string, index int) error {
	return s.Apply(ctx, pageID, document.MoveNodeCmd{ID: nodeID, Parent: parentID, Index: index})
}

// ── Blocks ─────────────────────────────────────────────────

// InjectBlock splices block blockID under parentID at index. The
// placeholder is placed during the call and resolved on the loop turn that
// ends it, so the returned result is always settled.
func (s *EditorService) InjectBlock(ctx context.Context, pageID, blockID, parentID string, index int) (injector.Result, error) {
	if parentID == "" {
		parentID = document.RootID
	}
	var in *injector.Injection
	err := s.with(pageID, func(sess *session) error {
		var err error
		in, err = sess.inj.Begin(sess.doc, blockID, parentID, index)
		if err != nil {
			return err
		}
		sess.dirty = true
		return nil
	})
	if err != nil {
		return injector.Result{}, err
	}
	s.emitter.Emit(ctx, EventDocumentChanged, map[string]any{"pageId": pageID})
	return in.Result(), nil
}

// SaveNodeAsBlock stores the subtree under nodeID as a new saved block.
func (s *EditorService) SaveNodeAsBlock(ctx context.Context, pageID, nodeID, name string) (*domain.SavedBlock, error) {
	var data document.Serialized
	err := s.with(pageID, func(sess *session) error {
		var err error
		data, err = document.SubtreeSerialized(sess.doc, nodeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.blocks.SaveBlock(ctx, "", name, data)
}

// ── Persistence ────────────────────────────────────────────

// Save writes the live document to the page and records a history snapshot.
func (s *EditorService) Save(ctx context.Context, pageID, label string) error {
	err := s.with(pageID, func(sess *session) error {
		data := document.Serialize(sess.doc)
		if err := s.sites.SavePageData(pageID, data); err != nil {
			return err
		}
		if label == "" {
			label = "save"
		}
		if err := s.pushSnapshot(pageID, label, sess.doc); err != nil {
			return err
		}
		sess.dirty = false
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("page", pageID).Debug("page saved")
	return nil
}

func (s *EditorService) pushSnapshot(pageID, label string, doc *document.Document) error {
	snapshot, err := document.Serialize(doc).MarshalIndent()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.history.Push(pageID, label, string(snapshot)); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Undo restores the previous history snapshot and persists it.
func (s *EditorService) Undo(ctx context.Context, pageID string) error {
	return s.travel(ctx, pageID, s.history.UndoTarget)
}

// Redo restores the most recent snapshot after the current one.
func (s *EditorService) Redo(ctx context.Context, pageID string) error {
	return s.travel(ctx, pageID, s.history.RedoTarget)
}

// travel restores the snapshot target picks. The history pointer moves only
// once the page data is saved, so a broken snapshot leaves both untouched.

func (s *EditorService) travel(ctx context.Context, pageID string, target func(string) (*domain.HistoryNode, error)) error {
	err := s.with(pageID, func(sess *session) error {
		node, err := target(pageID)
		if err != nil {
			return err
		}
		data, err := document.ParseSerialized([]byte(node.Snapshot))
		if err != nil {
			return fmt.Errorf("history snapshot %s: %w", node.ID, err)
		}
		doc, err := s.load(data)
		if err != nil {
			return fmt.Errorf("history snapshot %s: %w", node.ID, err)
		}
		if err := s.sites.SavePageData(pageID, data); err != nil {
			return err
		}
		if err := s.history.GoTo(pageID, node.ID); err != nil {
			return fmt.Errorf("update history state: %w", err)
		}
		sess.doc = doc
		sess.dirty = false
		return nil
	})
	if err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDocumentChanged, map[string]any{"pageId": pageID})
	return nil
}

// History returns the page's history tree.
func (s *EditorService) History(pageID string) (*domain.HistoryTree, error) {
	return s.history.LoadTree(pageID)
}
