package model

import "sort"

// TreeNode is a single node in the recursive dependency tree.
// Each node carries its full subtree of required patches inline, so the tree
// can be rendered at any depth.
//
// Example:
//
//	MyMod -> children: [CBA_Main -> children: [A3_Data_F]]
type TreeNode struct {
	Name     string      `json:"name" yaml:"name" toml:"name"`
	Source   string      `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	Family   string      `json:"family,omitempty" yaml:"family,omitempty" toml:"family,omitempty"`
	Resolved bool        `json:"resolved" yaml:"resolved" toml:"resolved"`
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// DependencyTree is a read-only view over the extracted patches. It does not
// order or validate anything; it only links declarations to the names they
// require.
type DependencyTree struct {
	// All holds every patch in extraction order.
	All []*Patch

	// ByName provides O(1) lookup by case-insensitive patch name. When two
	// declarations share a name the first one wins.
	ByName map[string]*Patch

	// Roots are the patches no other patch requires, each carrying its full
	// subtree of requirements.
	Roots []*TreeNode

	// Unresolved lists required names that no extracted patch declares,
	// sorted and deduplicated.
	Unresolved []string
}

func BuildDependencyTree(patches []*Patch) *DependencyTree {
	tree := &DependencyTree{
		ByName: make(map[string]*Patch, len(patches)),
	}

	for _, p := range patches {
		tree.All = append(tree.All, p)
		if _, ok := tree.ByName[p.Key()]; !ok {
			tree.ByName[p.Key()] = p
		}
	}

	required := map[string]bool{}
	unresolved := map[string]string{}
	for _, p := range patches {
		for _, dep := range p.Dependencies {
			key := normalizeKey(dep)
			required[key] = true
			if _, ok := tree.ByName[key]; !ok {
				if _, seen := unresolved[key]; !seen {
					unresolved[key] = dep
				}
			}
		}
	}
	for _, name := range unresolved {
		tree.Unresolved = append(tree.Unresolved, name)
	}
	sort.Strings(tree.Unresolved)

	tree.Roots = tree.buildTree(required)
	return tree
}

// workItem holds a pending node to be expanded along with the set of ancestor
// keys on the path from the root to this node (used for cycle detection).
type workItem struct {
	patch     *Patch
	node      *TreeNode
	ancestors map[string]bool
}

// buildTree builds the tree iteratively, level by level, using a queue
// instead of recursion so deep or wide graphs cannot overflow the stack.
//
// Cycles are broken by tracking the ancestor set on the path from the root to
// the current node: a child that would close a cycle is emitted as a leaf.
func (t *DependencyTree) buildTree(required map[string]bool) []*TreeNode {
	var tops []*Patch
	for key, p := range t.ByName {
		if !required[key] {
			tops = append(tops, p)
		}
	}
	// Every patch is required by another one: fall back to listing them all.
	if len(tops) == 0 {
		for _, p := range t.ByName {
			tops = append(tops, p)
		}
	}
	sort.Slice(tops, func(i, j int) bool {
		return tops[i].Key() < tops[j].Key()
	})

	roots := make([]*TreeNode, 0, len(tops))
	queue := make([]workItem, 0, len(tops))

	for _, p := range tops {
		node := newNode(p)
		roots = append(roots, node)
		queue = append(queue, workItem{patch: p, node: node, ancestors: map[string]bool{p.Key(): true}})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		// Children keep declaration order.
		for _, childName := range item.patch.Dependencies {
			childKey := normalizeKey(childName)
			child := t.ByName[childKey]
			if child == nil {
				item.node.Children = append(item.node.Children, &TreeNode{Name: childName})
				continue
			}

			childNode := newNode(child)
			item.node.Children = append(item.node.Children, childNode)

			if item.ancestors[childKey] {
				continue
			}

			childAncestors := make(map[string]bool, len(item.ancestors)+1)
			for k := range item.ancestors {
				childAncestors[k] = true
			}
			childAncestors[childKey] = true

			queue = append(queue, workItem{patch: child, node: childNode, ancestors: childAncestors})
		}
	}

	return roots
}

func newNode(p *Patch) *TreeNode {
	return &TreeNode{
		Name:     p.Name,
		Source:   p.Source,
		Family:   p.Family,
		Resolved: true,
	}
}
