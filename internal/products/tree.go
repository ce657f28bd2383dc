// Package products resolves the self-referential product hierarchy. All functions work
// on an in-memory snapshot of the flat product table.
package products

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/david/feedback-triage/internal/models"
)

// Node is one product in the nested tree view.
type Node struct {
	models.Product
	Children []*Node `json:"children"`
}

// BuildTree nests the flat list by ParentID. A node whose parent is not in the list is
// treated as a root so nothing is dropped. Children are sorted by name at every level.
func BuildTree(flat []models.Product) []*Node {
	nodes := make(map[uuid.UUID]*Node, len(flat))
	for _, p := range flat {
		nodes[p.ID] = &Node{Product: p, Children: []*Node{}}
	}

	parents := parentIndex(flat)
	var roots []*Node
	for _, p := range flat {
		n := nodes[p.ID]
		if p.ParentID != nil && !onCycle(parents, p.ID) {
			if parent, ok := nodes[*p.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sortNodes(roots)
	if roots == nil {
		roots = []*Node{}
	}
	return roots
}

// onCycle reports whether following parents from id leads back to id.
func onCycle(parents map[uuid.UUID]uuid.UUID, id uuid.UUID) bool {
	seen := map[uuid.UUID]bool{}
	current := id
	for {
		parent, ok := parents[current]
		if !ok {
			return false
		}
		if parent == id {
			return true
		}
		if seen[parent] {
			return false
		}
		seen[parent] = true
		current = parent
	}
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if a != b {
			return a < b
		}
		return nodes[i].ID.String() < nodes[j].ID.String()
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

func childIndex(flat []models.Product) map[uuid.UUID][]uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, p := range flat {
		if p.ParentID != nil {
			children[*p.ParentID] = append(children[*p.ParentID], p.ID)
		}
	}
	return children
}

// DescendantIDs returns every transitive descendant of id, breadth first, excluding id.
func DescendantIDs(flat []models.Product, id uuid.UUID) []uuid.UUID {
	children := childIndex(flat)

	seen := map[uuid.UUID]bool{id: true}
	var out []uuid.UUID
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// ExpandWithDescendants returns ids plus all their descendants, de-duplicated, in
// first-seen order.
func ExpandWithDescendants(flat []models.Product, ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		add(id)
		for _, d := range DescendantIDs(flat, id) {
			add(d)
		}
	}
	return out
}

// AncestorIDs walks the parent chain from id upward, nearest first. It stops on a
// missing parent or a revisited node.
func AncestorIDs(flat []models.Product, id uuid.UUID) []uuid.UUID {
	parents := parentIndex(flat)
	seen := map[uuid.UUID]bool{id: true}
	var out []uuid.UUID
	current := id
	for {
		parent, ok := parents[current]
		if !ok || seen[parent] {
			return out
		}
		seen[parent] = true
		out = append(out, parent)
		current = parent
	}
}

func parentIndex(flat []models.Product) map[uuid.UUID]uuid.UUID {
	parents := make(map[uuid.UUID]uuid.UUID, len(flat))
	for _, p := range flat {
		if p.ParentID != nil {
			parents[p.ID] = *p.ParentID
		}
	}
	return parents
}

// WouldCreateCycle reports whether making proposedParent the parent of id would close a
// loop. A chain that revisits a node counts as a cycle too, so existing corruption is
// never made worse.
func WouldCreateCycle(flat []models.Product, id, proposedParent uuid.UUID) bool {
	if id == proposedParent {
		return true
	}

	parents := parentIndex(flat)
	seen := map[uuid.UUID]bool{}
	current := proposedParent
	for {
		if current == id {
			return true
		}
		if seen[current] {
			return true
		}
		seen[current] = true

		parent, ok := parents[current]
		if !ok {
			return false
		}
		current = parent
	}
}
