// Package injector splices saved blocks into a live document through a
// transient placeholder node.
//
// An injection moves Idle -> Resolving -> Injecting -> Done | Failed. Begin
// drops the placeholder and defers the rest to the next scheduler turn; the
// deferred step re-validates the placeholder before it touches the document.
package injector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
	"sitebuilder/internal/resolver"
)

// State is the phase of an injection.
type State int

const (
	Idle State = iota
	Resolving
	Injecting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Injecting:
		return "injecting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason classifies an InjectionFailure.
type Reason string

const (
	ReasonBlockNotFound  Reason = "block-not-found"
	ReasonNoRootContent  Reason = "no-root-content"
	ReasonSpliceRejected Reason = "splice-rejected"
	ReasonCancelled      Reason = "cancelled"
)

// InjectionFailure reports why a block could not be spliced in. The
// placeholder is always gone by the time one is returned.
type InjectionFailure struct {
	BlockID string
	Reason  Reason
	Err     error
}

func (e *InjectionFailure) Error() string {
	msg := fmt.Sprintf("inject block %q: %s", e.BlockID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InjectionFailure) Unwrap() error { return e.Err }

// Registry supplies saved block data by id.
type Registry interface {
	BlockData(id string) (document.Serialized, error)
}

// Result is the outcome of the Injecting step.
type Result struct {
	State   State
	RootID  string  // id of the spliced subtree root on success
	Dropped []error // node-local *document.ResolverMissingError values
	Err     error

	// Noop is set when the placeholder or its parent was already gone and
	// the document was left untouched.
	Noop bool
}

// Injector builds injections against one block registry and scheduler.
type Injector struct {
	blocks    Registry
	sched     Scheduler
	newID     func() string
	onSettled func(*Injection)
	log       *logrus.Entry
}

type Option func(*Injector)

// WithIDGenerator sets the generator for ids of injected nodes.
func WithIDGenerator(fn func() string) Option {
	return func(i *Injector) { i.newID = fn }
}

// WithOnSettled registers a callback run when an injection reaches Done or
// Failed, on the scheduler turn that settled it.
func WithOnSettled(fn func(*Injection)) Option {
	return func(i *Injector) { i.onSettled = fn }
}

func WithLogger(l *logrus.Entry) Option {
	return func(i *Injector) { i.log = l }
}

func New(blocks Registry, sched Scheduler, opts ...Option) *Injector {
	i := &Injector{
		blocks: blocks,
		sched:  sched,
		newID:  uuid.NewString,
		log:    logrus.WithField("component", "injector"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Injection tracks one placeholder through its lifecycle.
type Injection struct {
	injector      *Injector
	doc           *document.Document
	BlockID       string
	PlaceholderID string

	mu     sync.Mutex
	state  State
	task   Task
	result Result
}

func (in *Injection) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Result returns the settled result; it is zero until the injection settles.
func (in *Injection) Result() Result {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.result
}

func (in *Injection) setState(s State) {
	in.mu.Lock()
	in.state = s
	in.mu.Unlock()
}

// Begin places a placeholder for blockID under parentID at index and
// schedules the injection for the next turn. A placement the document
// rejects is returned as an error and nothing is scheduled.
func (i *Injector) Begin(doc *document.Document, blockID, parentID string, index int) (*Injection, error) {
	phID, err := doc.CreateNode(resolver.PlaceholderType,
		prop.Props{"blockId": prop.StringValue(blockID)},
		document.Under(parentID, index))
	if err != nil {
		return nil, fmt.Errorf("place block placeholder: %w", err)
	}

	in := &Injection{injector: i, doc: doc, BlockID: blockID, PlaceholderID: phID, state: Idle}
	in.mu.Lock()
	in.state = Resolving
	in.task = i.sched.Schedule(in.run)
	in.mu.Unlock()
	return in, nil
}

func (in *Injection) run() {
	in.setState(Injecting)
	in.settle(in.injector.Inject(in.doc, in.PlaceholderID))
}

func (in *Injection) settle(r Result) {
	in.mu.Lock()
	in.state = r.State
	in.result = r
	in.mu.Unlock()
	if in.injector.onSettled != nil {
		in.injector.onSettled(in)
	}
}

// Cancel stops a pending injection and removes its placeholder. It reports
// false when the deferred step already ran.
func (in *Injection) Cancel() bool {
	in.mu.Lock()
	task := in.task
	in.mu.Unlock()
	if task == nil || !task.Cancel() {
		return false
	}
	if in.doc.Has(in.PlaceholderID) {
		_ = in.doc.DeleteNode(in.PlaceholderID)
	}
	in.settle(Result{
		State: Failed,
		Err:   &InjectionFailure{BlockID: in.BlockID, Reason: ReasonCancelled, Err: context.Canceled},
	})
	return true
}

// Inject performs the Injecting step for placeholderID. It is idempotent:
// once the placeholder (or its parent) is gone the call is a no-op.
func (i *Injector) Inject(doc *document.Document, placeholderID string) Result {
	ph, ok := doc.Node(placeholderID)
	if !ok || ph.Type != resolver.PlaceholderType || !doc.Has(ph.Parent) {
		return Result{State: Done, Noop: true}
	}
	blockID := ph.Props.Text("blockId")
	log := i.log.WithFields(logrus.Fields{"block": blockID, "placeholder": placeholderID})

	data, err := i.blocks.BlockData(blockID)
	if err != nil {
		return i.fail(doc, placeholderID, blockID, ReasonBlockNotFound, err, nil)
	}

	rootContent := RootContentID(data)
	if rootContent == "" {
		return i.fail(doc, placeholderID, blockID, ReasonNoRootContent, nil, nil)
	}

	tree, dropped := i.rebuild(doc.Resolver(), data, rootContent)
	for _, d := range dropped {
		log.WithError(d).Warn("dropped node from injected block")
	}
	if _, ok := tree.Nodes[tree.RootNodeID]; !ok {
		return i.fail(doc, placeholderID, blockID, ReasonNoRootContent, dropped[0], dropped)
	}

	// The placeholder may have moved or vanished since the lookup started.
	ph, ok = doc.Node(placeholderID)
	if !ok || !doc.Has(ph.Parent) {
		return Result{State: Done, Noop: true, Dropped: dropped}
	}

	rootID, err := doc.AddNodeTree(tree, ph.Parent, doc.IndexOf(placeholderID))
	if err != nil {
		return i.fail(doc, placeholderID, blockID, ReasonSpliceRejected, err, dropped)
	}
	if err := doc.DeleteNode(placeholderID); err != nil {
		log.WithError(err).Error("remove placeholder after splice")
	}
	log.WithField("root", rootID).Debug("block injected")
	return Result{State: Done, RootID: rootID, Dropped: dropped}
}

func (i *Injector) fail(doc *document.Document, placeholderID, blockID string, reason Reason, err error, dropped []error) Result {
	if doc.Has(placeholderID) {
		_ = doc.DeleteNode(placeholderID)
	}
	failure := &InjectionFailure{BlockID: blockID, Reason: reason, Err: err}
	i.log.WithError(failure).Warn("injection failed")
	return Result{State: Failed, Dropped: dropped, Err: failure}
}

// rebuild copies every non-root node of data under a fresh id. Nodes of
// unknown type are skipped; their descendants stay in the tree but become
// unreachable, so AddNodeTree leaves them out.
func (i *Injector) rebuild(r *resolver.Resolver, data document.Serialized, rootContent string) (document.NodeTree, []error) {
	ids := make([]string, 0, len(data))
	for id := range data {
		if id != document.RootID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	fresh := make(map[string]string, len(ids))
	for _, id := range ids {
		fresh[id] = i.newID()
	}
	mapID := func(old string) string {
		if id, ok := fresh[old]; ok {
			return id
		}
		return ""
	}

	tree := document.NodeTree{RootNodeID: fresh[rootContent], Nodes: make(map[string]*document.Node, len(ids))}
	var dropped []error
	for _, id := range ids {
		sn := data[id]
		comp, err := r.Resolve(sn.Type.ResolvedName)
		if err != nil {
			dropped = append(dropped, &document.ResolverMissingError{NodeID: id, Type: sn.Type.ResolvedName})
			continue
		}
		n := &document.Node{
			Type:        comp.Name,
			Props:       comp.DefaultProps.Merge(sn.Props),
			Custom:      sn.Custom.Clone(),
			DisplayName: sn.DisplayName,
			Hidden:      sn.Hidden,
			IsCanvas:    sn.IsCanvas,
			LinkedNodes: make(map[string]string, len(sn.LinkedNodes)),
		}
		if n.DisplayName == "" {
			n.DisplayName = comp.DisplayName
		}
		for _, c := range sn.Nodes {
			if m := mapID(c); m != "" {
				n.Nodes = append(n.Nodes, m)
			}
		}
		for slot, c := range sn.LinkedNodes {
			if m := mapID(c); m != "" {
				n.LinkedNodes[slot] = m
			}
		}
		tree.Nodes[fresh[id]] = n
	}
	return tree, dropped
}

// RootContentID picks the node of a saved block that becomes the subtree
// root: the first listed child of the block's ROOT, or else the first node
// by id whose parent is empty or absent from data.
func RootContentID(data document.Serialized) string {
	if root, ok := data[document.RootID]; ok {
		for _, id := range root.Nodes {
			if _, ok := data[id]; ok && id != document.RootID {
				return id
			}
		}
	}
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if id == document.RootID {
			continue
		}
		parent := data[id].Parent
		if _, ok := data[parent]; parent == "" || !ok {
			return id
		}
	}
	return ""
}
