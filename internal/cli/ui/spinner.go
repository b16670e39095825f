package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mdddj/blog-new/internal/migrate"
)

// StepSpinner shows one step at a time: a braille spinner on a terminal,
// a static line otherwise. Safe for concurrent Update calls.
type StepSpinner struct {
	mu     sync.Mutex
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	noSpin bool
}

// NewStepSpinner writes to w. noSpin disables the animation for pipes and CI.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

func (ss *StepSpinner) Start(msg string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.stopLocked()
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s", msg)
		return
	}
	ss.s = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(ss.w))
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.Start()
}

// Update replaces the text after the spinner. Without animation it is a no-op
// so piped output gets one line per step.
func (ss *StepSpinner) Update(msg string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.s == nil {
		return
	}
	ss.s.Lock()
	ss.s.Suffix = " " + msg
	ss.s.Unlock()
}

// Done ends the step with a check mark.
func (ss *StepSpinner) Done() { ss.finish(StyleSuccess.Render(SymbolCheck), "") }

// Fail ends the step with a cross.
func (ss *StepSpinner) Fail() { ss.finish(StyleError.Render(SymbolCross), "") }

// Stop halts the animation without printing a status.
func (ss *StepSpinner) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.stopLocked()
}

func (ss *StepSpinner) finish(mark, detail string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if detail != "" {
		detail = "  " + detail
	}
	if ss.noSpin {
		fmt.Fprintf(ss.w, " %s%s\n", mark, detail)
		return
	}
	ss.stopLocked()
	fmt.Fprintf(ss.w, "\r  %s %s%s\n", ss.msg, mark, detail)
}

func (ss *StepSpinner) stopLocked() {
	if ss.s != nil {
		ss.s.Stop()
		ss.s = nil
	}
}

// PhaseSpinner reports migration progress as one spinner line per table.
type PhaseSpinner struct {
	sp *StepSpinner
}

var _ migrate.ProgressReporter = (*PhaseSpinner)(nil)

func NewPhaseSpinner(w io.Writer, noSpin bool) *PhaseSpinner {
	return &PhaseSpinner{sp: NewStepSpinner(w, noSpin)}
}

func phaseLabel(p migrate.Phase) string {
	return fmt.Sprintf("[%d/%d] %-14s", p.Index, p.Total, p.Name)
}

func (p *PhaseSpinner) StartPhase(phase migrate.Phase, totalItems int) {
	p.sp.Start(fmt.Sprintf("%s found %d", phaseLabel(phase), totalItems))
}

func (p *PhaseSpinner) Progress(phase migrate.Phase, completed, totalItems int) {
	if totalItems > 0 {
		p.sp.Update(fmt.Sprintf("%s %d/%d", phaseLabel(phase), completed, totalItems))
	}
}

// CompletePhase marks the table with a check, a warning when rows were
// skipped, or a cross when any row failed.
func (p *PhaseSpinner) CompletePhase(phase migrate.Phase, result *migrate.TableResult, elapsed time.Duration) {
	success, failed, skipped := result.Counts()
	mark := StyleSuccess.Render(SymbolCheck)
	switch {
	case failed > 0:
		mark = StyleError.Render(SymbolCross)
	case skipped > 0:
		mark = StyleWarning.Render(SymbolWarning)
	}
	p.sp.finish(mark, fmt.Sprintf("%d ok, %d failed, %d skipped (%s)",
		success, failed, skipped, elapsed.Round(time.Millisecond)))
}

func (p *PhaseSpinner) Warn(msg string) {
	p.sp.Stop()
	fmt.Fprintf(p.sp.w, "\n  %s %s\n", StyleWarning.Render(SymbolWarning), msg)
}
