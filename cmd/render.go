package cmd

import "github.com/FlipperPlz/BankProcessor/internal/issue"

// renderIssue formats an issue page for the terminal. Plain markdown is
// returned when colors are off or rendering fails.
func renderIssue(i *issue.Issue, noColor bool) string {
	if i == nil {
		return ""
	}
	if noColor {
		return i.Markdown()
	}
	out, err := i.Render("auto")
	if err != nil {
		return i.Markdown()
	}
	return out
}
