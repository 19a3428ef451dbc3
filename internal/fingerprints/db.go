// Package fingerprints provides a database of well-known patch name families,
// so reports can tell base-game and framework requirements apart from
// third-party mods.
package fingerprints

import "strings"

// Family describes how to recognise a known group of patches.
type Family struct {
	Name        string   // Canonical family name
	Prefixes    []string // Case-insensitive patch name prefixes
	Exact       []string // Case-insensitive full patch names
	BaseGame    bool     // Shipped with the game itself
	Description string
}

// KnownFamilies is the built-in fingerprint database. Order matters: the
// first matching family wins.
var KnownFamilies = []Family{
	{
		Name:        "arma3",
		Prefixes:    []string{"A3_"},
		BaseGame:    true,
		Description: "Arma 3 base game and DLC data",
	},
	{
		Name:        "arma2",
		Prefixes:    []string{"CA", "CAData", "CAWeapons", "CAMisc"},
		BaseGame:    true,
		Description: "Arma 2 / Combined Operations data",
	},
	{
		Name:        "cba",
		Prefixes:    []string{"CBA_"},
		Exact:       []string{"Extended_EventHandlers", "CBA_Extended_EventHandlers"},
		Description: "Community Base Addons",
	},
	{
		Name:        "ace",
		Prefixes:    []string{"ace_"},
		Description: "ACE3 advanced combat environment",
	},
	{
		Name:        "acre",
		Prefixes:    []string{"acre_", "idi_"},
		Description: "Advanced Combat Radio Environment 2",
	},
	{
		Name:        "tfar",
		Prefixes:    []string{"tfar_", "task_force_radio"},
		Description: "Task Force Arrowhead Radio",
	},
	{
		Name:        "rhs",
		Prefixes:    []string{"rhs_", "rhsusf_", "rhsgref_", "rhssaf_"},
		Description: "Red Hammer Studios",
	},
	{
		Name:        "cup",
		Prefixes:    []string{"CUP_"},
		Description: "Community Upgrade Project",
	},
}

// MatchFamily returns the first Family whose exact names or prefixes match
// the given patch name. Returns nil if no match is found.
func MatchFamily(name string) *Family {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i := range KnownFamilies {
		fam := &KnownFamilies[i]
		for _, exact := range fam.Exact {
			if lower == strings.ToLower(exact) {
				return fam
			}
		}
		for _, prefix := range fam.Prefixes {
			p := strings.ToLower(prefix)
			if !strings.HasPrefix(lower, p) {
				continue
			}
			// Short prefixes such as "CA" must be followed by a separator
			// or the end of the name to avoid matching "Camera_Mod".
			if len(p) <= 2 && len(lower) > len(p) && lower[len(p)] != '_' {
				continue
			}
			return fam
		}
	}
	return nil
}

// IsBaseGame reports whether the patch name belongs to the game itself.
func IsBaseGame(name string) bool {
	fam := MatchFamily(name)
	return fam != nil && fam.BaseGame
}
