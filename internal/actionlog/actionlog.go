// Package actionlog records every state-changing game action as a node in
// an append-only forest scoped to one match. Replaying a log's roots in
// creation order, and each node's children in creation order, reconstructs
// the action sequence deterministically.
package actionlog

import (
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownParent indicates an append under a node id that is not part of
// the log.
var ErrUnknownParent = errors.New("unknown parent node")

// Node is one logged game action. Parent is stored as an id and children
// as an id adjacency list so the forest carries no ownership cycles.
type Node struct {
	ID          string
	Description string
	ParentID    string // empty for roots
	ChildIDs    []string
	CreatedAt   time.Time
}

// Log is the action history of one match. It is append-only: nodes are
// never deleted or reparented while the match exists. The owning room
// serializes all access; the log itself carries no locking.
type Log struct {
	ID      string
	Label   string
	MatchID string
	Turn    int

	nodes   map[string]*Node
	rootIDs []string
}

// New creates an empty log for the given match.
func New(matchID, label string) *Log {
	return &Log{
		ID:      uuid.New().String(),
		Label:   label,
		MatchID: matchID,
		nodes:   make(map[string]*Node),
		rootIDs: make([]string, 0),
	}
}

// AppendRoot records a new root-level action.
func (l *Log) AppendRoot(description string) *Node {
	node := &Node{
		ID:          uuid.New().String(),
		Description: description,
		ChildIDs:    make([]string, 0),
		CreatedAt:   time.Now(),
	}
	l.nodes[node.ID] = node
	l.rootIDs = append(l.rootIDs, node.ID)
	return node
}

// AppendChild records a new action caused by an existing one. Fails with
// ErrUnknownParent if parentID is not part of this log.
func (l *Log) AppendChild(parentID, description string) (*Node, error) {
	parent, ok := l.nodes[parentID]
	if !ok {
		return nil, ErrUnknownParent
	}

	node := &Node{
		ID:          uuid.New().String(),
		Description: description,
		ParentID:    parent.ID,
		ChildIDs:    make([]string, 0),
		CreatedAt:   time.Now(),
	}
	l.nodes[node.ID] = node
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	return node, nil
}

// Node returns the node with the given id.
func (l *Log) Node(id string) (*Node, bool) {
	node, ok := l.nodes[id]
	return node, ok
}

// Roots returns the root-level nodes in creation order.
func (l *Log) Roots() []*Node {
	roots := make([]*Node, 0, len(l.rootIDs))
	for _, id := range l.rootIDs {
		roots = append(roots, l.nodes[id])
	}
	return roots
}

// Len returns the total number of nodes in the log.
func (l *Log) Len() int {
	return len(l.nodes)
}

// Children yields the direct children of a node in creation order. The
// sequence is finite and restartable.
func (l *Log) Children(node *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, id := range node.ChildIDs {
			child, ok := l.nodes[id]
			if !ok {
				continue
			}
			if !yield(child) {
				return
			}
		}
	}
}

// Ancestors yields the chain from a node's parent up to its root, used for
// causal queries ("what triggered this battle").
func (l *Log) Ancestors(node *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		current := node
		for current.ParentID != "" {
			parent, ok := l.nodes[current.ParentID]
			if !ok {
				return
			}
			if !yield(parent) {
				return
			}
			current = parent
		}
	}
}

// Walk yields every node in replay order: roots in creation order, each
// followed by its descendants depth-first, children in creation order.
func (l *Log) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		var visit func(node *Node) bool
		visit = func(node *Node) bool {
			if !yield(node) {
				return false
			}
			for _, id := range node.ChildIDs {
				child, ok := l.nodes[id]
				if !ok {
					continue
				}
				if !visit(child) {
					return false
				}
			}
			return true
		}
		for _, id := range l.rootIDs {
			if !visit(l.nodes[id]) {
				return
			}
		}
	}
}
