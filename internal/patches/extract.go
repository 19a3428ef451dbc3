// Package patches extracts patch declarations from parsed configuration
// trees.
package patches

import (
	"iter"
	"slices"

	"github.com/FlipperPlz/BankProcessor/internal/model"
	"github.com/FlipperPlz/BankProcessor/internal/param"
)

const (
	// RootClass holds one child class per declared patch.
	RootClass = "CfgPatches"
	// DependencyProperty lists the patches a patch requires.
	DependencyProperty = "requiredAddons"
)

// Declarations yields one patch per direct child class of the top-level
// CfgPatches class, in declaration order. A tree without that class, or with
// an empty one, yields nothing. The sequence can be ranged over repeatedly.
func Declarations(tree *param.Tree) iter.Seq[model.Patch] {
	return func(yield func(model.Patch) bool) {
		if tree == nil || tree.Root == nil {
			return
		}
		root := tree.Root.FindClass(RootClass)
		if root == nil {
			return
		}
		for _, child := range root.Classes() {
			if !yield(declaration(child)) {
				return
			}
		}
	}
}

// Extract collects Declarations into a slice.
func Extract(tree *param.Tree) []model.Patch {
	return slices.Collect(Declarations(tree))
}

func declaration(c *param.Class) model.Patch {
	p := model.Patch{Name: c.Name, Dependencies: []string{}}
	m, ok := c.Lookup(DependencyProperty)
	if !ok {
		return p
	}
	if m.Value.Kind != param.KindArray {
		// a scalar requiredAddons is a single requirement
		if s := m.Value.String(); s != "" {
			p.Dependencies = append(p.Dependencies, s)
		}
		return p
	}
	for _, item := range flatten(m.Value.Items) {
		p.Dependencies = append(p.Dependencies, item.String())
	}
	return p
}

func flatten(items []param.Value) []param.Value {
	var out []param.Value
	for _, item := range items {
		if item.Kind == param.KindArray {
			out = append(out, flatten(item.Items)...)
			continue
		}
		out = append(out, item)
	}
	return out
}
