package export

import (
	"errors"
	"fmt"
)

// ErrCyclicPath is returned when following parent links revisits a node.
var ErrCyclicPath = errors.New("cyclic parent chain")

// VisiblePath returns the message-bearing nodes on the ancestor chain of the
// conversation's current node, ordered root to leaf. Nodes without a message are
// stepped over; a parent id missing from the mapping ends the walk.
func VisiblePath(conv Conversation) ([]Node, error) {
	var nodes []Node
	seen := make(map[string]bool)

	id := conv.CurrentNode
	for id != "" {
		node, ok := conv.Mapping[id]
		if !ok {
			break
		}
		if seen[id] {
			return nil, fmt.Errorf("node %s: %w", id, ErrCyclicPath)
		}
		seen[id] = true

		if node.Message != nil {
			nodes = append(nodes, node)
		}
		id = node.Parent
	}

	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, nil
}
