// Package model defines the data structures shared by the pipeline stages.
package model

import "strings"

// Patch is one patch declaration: a named mod component and the names of the
// components it requires, in declaration order.
type Patch struct {
	Name         string   // Patch class name (e.g., "MyMod")
	Dependencies []string // requiredAddons entries, order preserved

	// Provenance, filled by the pipeline.
	Source  string // Logical path of the config entry (e.g., "x\mymod\config.bin")
	Archive string // Bank file the entry was read from
	Form    string // Which config form declared it ("bin" or "cpp")
	Family  string // Known family of the patch name, empty when unknown
}

// Key returns the case-insensitive identity of the patch. Patch names are
// matched case-insensitively, so "CBA_Main" and "cba_main" share a key.
func (p *Patch) Key() string {
	return normalizeKey(p.Name)
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
