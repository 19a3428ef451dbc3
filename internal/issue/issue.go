// Package issue defines the fatal conditions of a run, the exit status each
// one maps to, and the remediation text shown to the operator.
package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	InputNotFoundId Id = iota + 1
	NoConfigsDiscoveredId
	ParameterParseFailureId
	StreamReadFailureId
	ConfigLoadFailedId
)

type MarkdownMsg string

type Issue struct {
	id          Id
	mdMsg       MarkdownMsg
	suggestions []string
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Suggestions() []string {
	return slices.Clone(i.suggestions)
}

// Markdown returns the message followed by its suggestions as a list.
func (i *Issue) Markdown() string {
	md := string(i.mdMsg)
	if len(i.suggestions) > 0 {
		md += "\n\n## Things you can try\n"
		for _, s := range i.suggestions {
			md += "- " + s + "\n"
		}
	}
	return md
}

// Render formats the issue for a terminal using the given glamour style
// ("auto", "dark", "light", "notty" or a path to a style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	inputNotFoundIssue = &Issue{
		id: InputNotFoundId,
		mdMsg: `
# Input not found

The path given with ` + "`--folder`" + ` (or as the positional argument) is neither
a file nor a directory.`,
		suggestions: []string{
			"Check the path for typos; relative paths are resolved from the current directory",
			"Pass a single `.pbo` file or a directory that contains `.pbo` files",
		},
	}

	noConfigsIssue = &Issue{
		id: NoConfigsDiscoveredId,
		mdMsg: `
# No configuration entries discovered

None of the scanned banks contains a ` + "`config.bin`" + ` or ` + "`config.cpp`" + ` entry,
so there are no patch declarations to extract.`,
		suggestions: []string{
			"Make sure the input directory holds the mod's `addons` banks",
			"Run with `-v` to list every bank that was scanned",
			"Obfuscated banks may hide their entries; try `--allow-obfuscated`",
		},
	}

	parseFailureIssue = &Issue{
		id: ParameterParseFailureId,
		mdMsg: `
# Configuration entry could not be parsed

The run stopped at the first configuration entry the parameter parser
rejected. No partial results were written. The raw entry text was dumped
to the log.`,
		suggestions: []string{
			"Inspect the dumped text around the reported line and column",
			"Relax the parser with `--allow-duplicate-classes`, `--allow-missing-parents` or `--allow-missing-delete-targets`",
			"Use `--skip-validation` to accept configs that only fail semantic checks",
			"Pick the right text encoding with `--charset`",
		},
	}

	streamReadIssue = &Issue{
		id: StreamReadFailureId,
		mdMsg: `
# Configuration entry could not be read

Reading or inflating a configuration entry from its bank failed. The bank is
probably corrupted, encrypted, or took longer than the decompression timeout.`,
		suggestions: []string{
			"Raise the decompression timeout with `-dc <minutes>`",
			"Verify the bank with `--require-signature`",
		},
	}

	configLoadIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

The command line, environment or configuration file holds an invalid value.`,
		suggestions: []string{
			"Run `bankproc --help` to list every option and its accepted values",
			"Check the CUE syntax of the configuration file",
		},
	}

	issues = map[Id]*Issue{
		inputNotFoundIssue.id: inputNotFoundIssue,
		noConfigsIssue.id:     noConfigsIssue,
		parseFailureIssue.id:  parseFailureIssue,
		streamReadIssue.id:    streamReadIssue,
		configLoadIssue.id:    configLoadIssue,
	}
)

func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for id := InputNotFoundId; id <= ConfigLoadFailedId; id++ {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
