package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/FlipperPlz/BankProcessor/internal/fingerprints"
	"github.com/FlipperPlz/BankProcessor/internal/scanner"
)

// Color palette for console output, tuned for dark terminal backgrounds.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	PathStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)

// maxListed caps the unresolved names printed in the summary.
const maxListed = 10

// printSummary writes a short overview of a completed run.
func printSummary(w io.Writer, res *scanner.Result, target string, noColor bool) {
	paint := func(s lipgloss.Style, text string) string {
		if noColor {
			return text
		}
		return s.Render(text)
	}

	fmt.Fprintln(w, paint(TitleStyle, "bankproc")+" "+paint(SubtitleStyle, getVersionString()))
	fmt.Fprintf(w, "%s %d patch(es) from %d config entr%s in %d archive(s)\n",
		paint(SuccessStyle, "✓"),
		len(res.Patches),
		res.EntriesFound-res.EntriesDeduped,
		plural(res.EntriesFound-res.EntriesDeduped, "y", "ies"),
		res.Archives)
	if res.EntriesDeduped > 0 {
		fmt.Fprintf(w, "  %s\n", paint(SubtitleStyle, fmt.Sprintf("%d duplicate config entr%s ignored",
			res.EntriesDeduped, plural(res.EntriesDeduped, "y", "ies"))))
	}
	if target != "-" {
		fmt.Fprintf(w, "  report: %s\n", paint(PathStyle, target))
	}

	if res.DependencyTree == nil {
		return
	}
	// Base game patches are never inside mod banks.
	var missing []string
	for _, name := range res.DependencyTree.Unresolved {
		if !fingerprints.IsBaseGame(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	names := missing
	more := ""
	if len(names) > maxListed {
		more = fmt.Sprintf(" (+%d more)", len(names)-maxListed)
		names = names[:maxListed]
	}
	fmt.Fprintf(w, "%s %d required patch(es) not declared by the input: %s%s\n",
		paint(WarningStyle, "!"),
		len(missing),
		strings.Join(names, ", "),
		more)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
