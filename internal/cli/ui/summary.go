package ui

import (
	"fmt"
	"strings"

	"github.com/mdddj/blog-new/internal/migrate"
)

// maxListedFailures caps the per-table failure lines in a summary; the
// report file has all of them.
const maxListedFailures = 5

// FormatSummary renders the end-of-run summary of a report.
func FormatSummary(title string, r *migrate.Report) string {
	var b strings.Builder
	b.WriteString("\n" + StyleBold.Render(title) + "\n")

	for _, t := range r.Tables {
		s, f, k := t.Counts()
		symbol := StyleSuccess.Render(SymbolCheck)
		if f > 0 {
			symbol = StyleError.Render(SymbolCross)
		} else if k > 0 {
			symbol = StyleWarning.Render(SymbolWarning)
		}
		fmt.Fprintf(&b, "  %s %-14s %d ok, %d failed, %d skipped\n", symbol, t.Table, s, f, k)
		for i, e := range t.Errors {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "      %s\n", StyleHint.Render(fmt.Sprintf("... %d more", len(t.Errors)-i)))
				break
			}
			fmt.Fprintf(&b, "      %s\n", StyleDim.Render(e))
		}
	}

	fmt.Fprintf(&b, "\n  %s %s ok, %s failed, %s skipped\n",
		StyleBold.Render("Total:"),
		StyleGreen.Render(fmt.Sprint(r.TotalSuccess)),
		StyleRed.Render(fmt.Sprint(r.TotalFailed)),
		StyleYellow.Render(fmt.Sprint(r.TotalSkipped)))

	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  %s %s\n", StyleWarning.Render(SymbolWarning), e)
	}
	return b.String()
}
