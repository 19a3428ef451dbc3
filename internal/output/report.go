// Package output provides report serializers and the output directory
// lifecycle.
package output

import (
	"time"

	"github.com/FlipperPlz/BankProcessor/internal/model"
	"github.com/FlipperPlz/BankProcessor/internal/scanner"
)

// ToolName is recorded in every report.
const ToolName = "bankproc"

// Report is the serialized form of a completed run.
//
// Example (JSON):
//
//	{
//	  "metadata": { "tool": "bankproc", "version": "1.0.0", "policy": "last-write-wins", ... },
//	  "summary": { "archives": 2, "entriesFound": 3, "entriesDeduped": 1, "parseFailures": 0, "patches": 1 },
//	  "patches": [
//	    { "name": "MyMod", "dependencies": ["CBA_A3"], "source": "mymod\\config.cpp", "form": "cpp" }
//	  ],
//	  "tree": [ { "name": "MyMod", "resolved": true, "children": [ { "name": "CBA_A3", "resolved": false } ] } ],
//	  "unresolved": ["CBA_A3"]
//	}
type Report struct {
	Metadata   Metadata          `json:"metadata" yaml:"metadata" toml:"metadata"`
	Summary    Summary           `json:"summary" yaml:"summary" toml:"summary"`
	Patches    []PatchEntry      `json:"patches" yaml:"patches" toml:"patches"`
	Tree       []*model.TreeNode `json:"tree,omitempty" yaml:"tree,omitempty" toml:"tree,omitempty"`
	Unresolved []string          `json:"unresolved" yaml:"unresolved" toml:"unresolved"`
}

type Metadata struct {
	Tool      string `json:"tool" yaml:"tool" toml:"tool"`
	Version   string `json:"version" yaml:"version" toml:"version"`
	Timestamp string `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	Input     string `json:"input,omitempty" yaml:"input,omitempty" toml:"input,omitempty"`
	Policy    string `json:"policy" yaml:"policy" toml:"policy"`
}

type Summary struct {
	Archives       int `json:"archives" yaml:"archives" toml:"archives"`
	EntriesFound   int `json:"entriesFound" yaml:"entriesFound" toml:"entriesFound"`
	EntriesDeduped int `json:"entriesDeduped" yaml:"entriesDeduped" toml:"entriesDeduped"`
	ParseFailures  int `json:"parseFailures" yaml:"parseFailures" toml:"parseFailures"`
	Patches        int `json:"patches" yaml:"patches" toml:"patches"`
}

// PatchEntry is one patch declaration with its provenance.
type PatchEntry struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Dependencies []string `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	Source       string   `json:"source" yaml:"source" toml:"source"`
	Archive      string   `json:"archive" yaml:"archive" toml:"archive"`
	Form         string   `json:"form" yaml:"form" toml:"form"`
	Family       string   `json:"family,omitempty" yaml:"family,omitempty" toml:"family,omitempty"`
}

// BuildReport converts a scan result. meta.Tool and meta.Timestamp are filled
// in when empty.
func BuildReport(result *scanner.Result, meta Metadata) *Report {
	if meta.Tool == "" {
		meta.Tool = ToolName
	}
	if meta.Timestamp == "" {
		meta.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	r := &Report{
		Metadata: meta,
		Summary: Summary{
			Archives:       result.Archives,
			EntriesFound:   result.EntriesFound,
			EntriesDeduped: result.EntriesDeduped,
			ParseFailures:  result.ParseFailures,
			Patches:        len(result.Patches),
		},
		Patches:    make([]PatchEntry, 0, len(result.Patches)),
		Unresolved: []string{},
	}
	for _, p := range result.Patches {
		deps := p.Dependencies
		if deps == nil {
			deps = []string{}
		}
		r.Patches = append(r.Patches, PatchEntry{
			Name:         p.Name,
			Dependencies: deps,
			Source:       p.Source,
			Archive:      p.Archive,
			Form:         p.Form,
			Family:       p.Family,
		})
	}
	if result.DependencyTree != nil {
		r.Tree = result.DependencyTree.Roots
		if len(result.DependencyTree.Unresolved) > 0 {
			r.Unresolved = result.DependencyTree.Unresolved
		}
	}
	return r
}
