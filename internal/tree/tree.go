// Package tree reconstructs the hierarchical call tree from a flat span
// collection.
package tree

import "github.com/vectorwave/traceview/internal/trace"

// Node is a span augmented with its ordered children. A parent
// exclusively owns its direct children; no node has more than one parent.
type Node struct {
	trace.Span
	Children []*Node `json:"children,omitempty"`
}

// Forest is the result of building: an ordered set of root nodes plus
// the spans whose parent reference did not resolve. Orphans are reported,
// never silently promoted to roots or discarded; callers decide whether
// to surface them as an error or attach them at depth 0.
type Forest struct {
	Roots   []*Node
	Orphans []trace.Span
}

// SpanCount returns the number of spans reachable from the roots.
func (f Forest) SpanCount() int {
	n := 0
	Walk(f.Roots, func(*Node) { n++ })
	return n
}

// Build converts a flat span list into a rooted forest. Root order
// matches the first-seen order of roots in the input, and children of a
// node preserve the relative order in which they appeared in the input
// list, so same-input calls always render identically. Each node's depth
// is recomputed as parent depth + 1 (root depth 0), overriding any depth
// supplied by the source data.
//
// Unresolved parent references, self-references, duplicate span ids, and
// cyclic parent chains all land in Orphans.
func Build(spans []trace.Span) Forest {
	if len(spans) == 0 {
		return Forest{}
	}

	var f Forest
	byID := make(map[string]*Node, len(spans))
	order := make([]*Node, 0, len(spans))

	for _, s := range spans {
		if _, dup := byID[s.SpanID]; dup {
			// First occurrence keeps the id; later ones cannot be indexed.
			f.Orphans = append(f.Orphans, s)
			continue
		}
		n := &Node{Span: s}
		byID[s.SpanID] = n
		order = append(order, n)
	}

	for _, n := range order {
		switch {
		case n.ParentSpanID == "":
			f.Roots = append(f.Roots, n)
		case n.ParentSpanID == n.SpanID:
			// Self-reference is an unresolved reference, never a loop.
			f.Orphans = append(f.Orphans, n.Span)
		default:
			parent, ok := byID[n.ParentSpanID]
			if !ok {
				f.Orphans = append(f.Orphans, n.Span)
				continue
			}
			parent.Children = append(parent.Children, n)
		}
	}

	// Recompute depth iteratively; linking never recurses deeper than
	// the actual trace depth.
	visited := make(map[string]bool, len(order))
	for _, root := range f.Roots {
		stack := []*Node{root}
		root.Depth = 0
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visited[n.SpanID] = true
			for _, c := range n.Children {
				c.Depth = n.Depth + 1
				stack = append(stack, c)
			}
		}
	}

	// Nodes linked to a parent but unreachable from any root sit on a
	// cyclic parent chain. Report them as orphans, in input order.
	for _, n := range order {
		if !visited[n.SpanID] && !inOrphans(f.Orphans, n.SpanID) {
			f.Orphans = append(f.Orphans, n.Span)
		}
	}

	return f
}

func inOrphans(orphans []trace.Span, spanID string) bool {
	for _, o := range orphans {
		if o.SpanID == spanID {
			return true
		}
	}
	return false
}

// Walk visits every node reachable from roots in depth-first order,
// children in their stored order.
func Walk(roots []*Node, fn func(*Node)) {
	stack := make([]*Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Depths returns a span id -> depth map for the forest. The waterfall
// projection indents rows by these depths so both projections agree on
// nesting.
func Depths(f Forest) map[string]int {
	depths := make(map[string]int, len(f.Roots))
	Walk(f.Roots, func(n *Node) {
		depths[n.SpanID] = n.Depth
	})
	return depths
}
