// Package viewstate holds the expand/collapse view state for the tree
// projection. State is a flat map keyed by span id rather than flags
// hung off tree nodes, so its lifetime is independent of node identity
// and it is trivially testable in isolation.
package viewstate

import "github.com/vectorwave/traceview/internal/tree"

// State maps span ids to an "expanded" flag. Every node defaults to
// expanded until toggled. One State belongs to exactly one trace view;
// switching traces means a fresh State (or Reset).
type State struct {
	overrides map[string]bool
}

// New returns a State with no overrides: everything expanded.
func New() *State {
	return &State{overrides: make(map[string]bool)}
}

// IsExpanded reports whether the node is expanded. Nodes never toggled
// default to true.
func (st *State) IsExpanded(spanID string) bool {
	if v, ok := st.overrides[spanID]; ok {
		return v
	}
	return true
}

// Toggle flips the expand flag for one node.
func (st *State) Toggle(spanID string) {
	st.overrides[spanID] = !st.IsExpanded(spanID)
}

// Reset clears all overrides, reverting every node to default-expanded.
func (st *State) Reset() {
	st.overrides = make(map[string]bool)
}

// FlattenVisible converts the forest into a linear node list respecting
// expansion state. A node's children are included iff the node is
// expanded; collapsing a node hides its entire subtree while the
// subtree's own flags are preserved, so re-expanding restores prior
// detail.
func FlattenVisible(roots []*tree.Node, st *State) []*tree.Node {
	flat := make([]*tree.Node, 0, len(roots))

	stack := make([]*tree.Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		flat = append(flat, n)
		if len(n.Children) > 0 && st.IsExpanded(n.SpanID) {
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}

	return flat
}
