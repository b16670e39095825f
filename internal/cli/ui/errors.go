package ui

import (
	"errors"
	"fmt"
	"strings"
)

// HintError carries commands the user can try to fix err.
type HintError struct {
	Err   error
	Hints []string
}

func (e *HintError) Error() string { return e.Err.Error() }
func (e *HintError) Unwrap() error { return e.Err }

// WithHints attaches suggestions to err. A nil err stays nil.
func WithHints(err error, hints ...string) error {
	if err == nil {
		return nil
	}
	return &HintError{Err: err, Hints: hints}
}

// FormatErr renders err with every hint found in its chain.
func FormatErr(err error) string {
	var hints []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if h, ok := e.(*HintError); ok {
			hints = append(hints, h.Hints...)
		}
	}
	return FormatError(err.Error(), hints...)
}

// FormatError styles msg as an error followed by a "Try:" list.
func FormatError(msg string, suggestions ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StyleBoldRed.Render("Error:"), msg)
	if len(suggestions) == 0 {
		return b.String()
	}
	b.WriteString("\n" + StyleHint.Render("  Try:") + "\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "    %s %s\n", StyleHint.Render(SymbolArrow), s)
	}
	return b.String()
}
