package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FlipperPlz/BankProcessor/internal/bank"
)

// Policy decides which candidates become canonical.
type Policy string

const (
	// PolicyLastWriteWins keeps one candidate per directory: the last one
	// added.
	PolicyLastWriteWins Policy = "last-write-wins"
	// PolicyNone keeps every candidate.
	PolicyNone Policy = "none"
)

// Policies lists the accepted policy names.
var Policies = []Policy{PolicyLastWriteWins, PolicyNone}

// ParsePolicy accepts a policy name case-insensitively. The empty string
// selects PolicyLastWriteWins.
func ParsePolicy(s string) (Policy, error) {
	if strings.TrimSpace(s) == "" {
		return PolicyLastWriteWins, nil
	}
	for _, p := range Policies {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown dedup policy %q (want one of %s, %s)", s, PolicyLastWriteWins, PolicyNone)
}

// Selector collapses candidates into canonical entries. It has a single
// writer and is not safe for concurrent use.
type Selector struct {
	policy Policy
	byKey  map[string]Candidate
	all    []Candidate
}

func NewSelector(policy Policy) *Selector {
	if policy == "" {
		policy = PolicyLastWriteWins
	}
	return &Selector{policy: policy, byKey: map[string]Candidate{}}
}

// Add records c, overwriting any earlier candidate for the same directory.
func (s *Selector) Add(c Candidate) {
	c.Seq = len(s.all)
	s.all = append(s.all, c)
	s.byKey[c.Key()] = c
}

// Candidates returns every candidate added, in scan order.
func (s *Selector) Candidates() []Candidate {
	return s.all
}

// Found is the number of candidates added.
func (s *Selector) Found() int {
	return len(s.all)
}

// Deduped is the number of candidates the policy discarded.
func (s *Selector) Deduped() int {
	return len(s.all) - len(s.Canonical())
}

// Canonical returns the surviving candidates ordered by directory key, then
// by scan position.
func (s *Selector) Canonical() []Candidate {
	var out []Candidate
	if s.policy == PolicyNone {
		out = append(out, s.all...)
	} else {
		out = make([]Candidate, 0, len(s.byKey))
		for _, c := range s.byKey {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki != kj {
			return ki < kj
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Select scans every bank for each form in Forms order, the compiled form
// across all banks before the textual one.
func Select(banks []*bank.Bank, policy Policy) *Selector {
	sel := NewSelector(policy)
	for _, form := range Forms {
		for _, b := range banks {
			for c := range ScanEntries(b, form) {
				sel.Add(c)
			}
		}
	}
	return sel
}
