// Package scanner finds the configuration entries of a set of banks, keeps
// one canonical entry per directory and drives the parser and patch
// extractor over them.
package scanner

import (
	"context"
	"fmt"
	"io"

	"github.com/FlipperPlz/BankProcessor/internal/bank"
	"github.com/FlipperPlz/BankProcessor/internal/fingerprints"
	"github.com/FlipperPlz/BankProcessor/internal/issue"
	"github.com/FlipperPlz/BankProcessor/internal/logging"
	"github.com/FlipperPlz/BankProcessor/internal/model"
	"github.com/FlipperPlz/BankProcessor/internal/param"
	"github.com/FlipperPlz/BankProcessor/internal/patches"
)

// RootName is the name given to the root class of every parsed entry.
const RootName = "config"

// State is a step of a run. A run only moves forward.
type State int

const (
	StateScanning State = iota
	StateDeduplicating
	StateParsingEntry
	StateExtractingPatches
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDeduplicating:
		return "deduplicating"
	case StateParsingEntry:
		return "parsing-entry"
	case StateExtractingPatches:
		return "extracting-patches"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result is the outcome of a run. Patches and DependencyTree are only set
// when State is StateCompleted.
type Result struct {
	Patches        []*model.Patch
	DependencyTree *model.DependencyTree

	Archives       int
	EntriesFound   int
	EntriesDeduped int
	ParseFailures  int
	State          State
}

// Scanner runs the pipeline with one set of options applied to every entry.
type Scanner struct {
	Policy Policy
	Params param.Options
	Bank   bank.Options
	Logger *logging.Logger
	Dumper *Dumper

	// OnState, when set, observes every transition. index is the canonical
	// entry position for the per-entry states and -1 otherwise.
	OnState func(state State, index int)
}

// New creates a Scanner whose Dumper logs through logger and decodes with
// params.Charset.
func New(policy Policy, params param.Options, bankOpts bank.Options, logger *logging.Logger) *Scanner {
	return &Scanner{
		Policy: policy,
		Params: params,
		Bank:   bankOpts,
		Logger: logger,
		Dumper: &Dumper{Charset: params.Charset, Logger: logger},
	}
}

// Scan runs the pipeline over banks, which must already be open and in
// discovery order. It stops at the first entry that cannot be read or
// parsed; no patches are returned in that case.
func (s *Scanner) Scan(ctx context.Context, banks []*bank.Bank) (*Result, error) {
	res := &Result{Archives: len(banks)}

	s.enter(res, StateScanning, -1)
	sel := Select(banks, s.Policy)
	for _, c := range sel.Candidates() {
		s.Logger.Debug("config entry found",
			"archive", c.Entry.Bank.Path, "entry", c.Entry.LogicalPath(), "form", c.Form.Label)
	}

	s.enter(res, StateDeduplicating, -1)
	canonical := sel.Canonical()
	res.EntriesFound = sel.Found()
	res.EntriesDeduped = res.EntriesFound - len(canonical)
	s.Logger.Info("config entries selected",
		"archives", len(banks), "found", res.EntriesFound, "canonical", len(canonical), "policy", string(s.policy()))
	if len(canonical) == 0 {
		s.enter(res, StateAborted, -1)
		return res, &issue.NoConfigsError{Archives: len(banks)}
	}

	var found []*model.Patch
	for i, c := range canonical {
		if err := ctx.Err(); err != nil {
			s.enter(res, StateAborted, i)
			return res, err
		}
		entry := c.Entry.LogicalPath()
		archive := c.Entry.Bank.Path
		log := s.Logger.With("entry", entry)

		s.enter(res, StateParsingEntry, i)
		raw, err := readEntry(ctx, c.Entry, s.Bank)
		if err != nil {
			s.enter(res, StateAborted, i)
			log.Error("cannot read config entry", "archive", archive, "err", err)
			return res, &issue.StreamReadError{Entry: entry, Archive: archive, Cause: err}
		}

		tree, err := param.ParseBytes(RootName, raw, s.Params)
		if err != nil {
			res.ParseFailures++
			s.enter(res, StateAborted, i)
			log.Error("cannot parse config entry", "archive", archive, "err", err)
			s.dump(entry, raw)
			return res, &issue.ParseFailureError{Entry: entry, Archive: archive, Cause: err}
		}

		s.enter(res, StateExtractingPatches, i)
		n := 0
		for decl := range patches.Declarations(tree) {
			p := decl
			p.Source = entry
			p.Archive = archive
			p.Form = c.Form.Label
			if fam := fingerprints.MatchFamily(p.Name); fam != nil {
				p.Family = fam.Name
			}
			log.Debug("patch declared", "patch", p.Name, "requires", len(p.Dependencies))
			found = append(found, &p)
			n++
		}
		if n == 0 {
			log.Debug("config entry declares no patches")
		}
	}

	res.Patches = found
	res.DependencyTree = model.BuildDependencyTree(found)
	s.enter(res, StateCompleted, -1)
	s.Logger.Info("scan complete", "patches", len(found), "unresolved", len(res.DependencyTree.Unresolved))
	return res, nil
}

func (s *Scanner) policy() Policy {
	if s.Policy == "" {
		return PolicyLastWriteWins
	}
	return s.Policy
}

func (s *Scanner) enter(res *Result, state State, index int) {
	res.State = state
	s.Logger.Debug("pipeline state", "state", state.String(), "index", index)
	if s.OnState != nil {
		s.OnState(state, index)
	}
}

func (s *Scanner) dump(entry string, raw []byte) {
	d := s.Dumper
	if d == nil {
		d = &Dumper{Charset: s.Params.Charset, Logger: s.Logger}
	}
	path, err := d.Dump(entry, raw)
	switch {
	case err != nil:
		s.Logger.Warn("cannot write entry dump", "entry", entry, "err", err)
	case path != "":
		s.Logger.Info("entry dump written", "entry", entry, "path", path)
	}
}

// readEntry reads the whole entry once.
func readEntry(ctx context.Context, e *bank.Entry, opts bank.Options) ([]byte, error) {
	r, err := e.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
