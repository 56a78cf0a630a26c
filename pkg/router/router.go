// Package router derives next-node lookups from the edge list of an automation.
package router

import "github.com/dukex/relay/pkg/models"

// Routes holds the three routing disciplines of an automation graph.
type Routes struct {
	// Next follows unlabeled edges. The first edge of a source wins.
	Next map[string]string
	// BranchTrue and BranchFalse follow the true/false handles of conditional nodes.
	BranchTrue  map[string]string
	BranchFalse map[string]string
	// Branches lists branch-N targets of randomizer nodes in encounter order.
	Branches map[string][]string
}

// Build walks the edges once. Edges to or from unknown nodes are kept; they
// only show up as dead routes when the walk fails to resolve the target.
func Build(edges []*models.Edge) *Routes {
	routes := &Routes{
		Next:        make(map[string]string),
		BranchTrue:  make(map[string]string),
		BranchFalse: make(map[string]string),
		Branches:    make(map[string][]string),
	}

	for _, edge := range edges {
		if edge == nil {
			continue
		}

		handle := edge.Handle()

		switch {
		case handle == "":
			if _, exists := routes.Next[edge.Source]; !exists {
				routes.Next[edge.Source] = edge.Target
			}
		case handle == models.HandleTrue:
			routes.BranchTrue[edge.Source] = edge.Target
		case handle == models.HandleFalse:
			routes.BranchFalse[edge.Source] = edge.Target
		default:
			if _, ok := models.ParseBranchHandle(handle); ok {
				routes.Branches[edge.Source] = append(routes.Branches[edge.Source], edge.Target)
			}
		}
	}

	return routes
}

// Branch returns the true or false target of a conditional node.
func (r *Routes) Branch(nodeID string, result bool) (string, bool) {
	if result {
		target, ok := r.BranchTrue[nodeID]

		return target, ok
	}

	target, ok := r.BranchFalse[nodeID]

	return target, ok
}
