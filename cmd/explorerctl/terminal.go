package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
)

// terminalView prints ledger marks as lines, prefixed "*" for unsaved and
// "-" for cleared.
type terminalView struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	pending int
}

func (v *terminalView) printf(format string, args ...any) {
	if !v.verbose {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, format, args...)
}

func (v *terminalView) MarkUnsaved(ref ledger.Ref, field string) {
	v.printf("* %s %s\n", ref, field)
}

func (v *terminalView) ClearUnsaved(ref ledger.Ref, field string) {
	v.printf("- %s %s\n", ref, field)
}

func (v *terminalView) ResetControl(ref ledger.Ref, field string, original any) {
	v.printf("  %s %s reset to %v\n", ref, field, original)
}

func (v *terminalView) SetControlsEnabled(bool) {}

func (v *terminalView) SetPendingCount(n int) {
	v.mu.Lock()
	v.pending = n
	v.mu.Unlock()
}

func (v *terminalView) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

func printNotice(w io.Writer) ledger.NotifierFunc {
	return func(n ledger.Notice) {
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	}
}

// promptConfirmer asks on w and reads the answer from r; only y or yes
// confirms. With assumeYes it never prompts.
type promptConfirmer struct {
	r         *bufio.Reader
	w         io.Writer
	assumeYes bool
}

func newPromptConfirmer(r io.Reader, w io.Writer, assumeYes bool) *promptConfirmer {
	return &promptConfirmer{r: bufio.NewReader(r), w: w, assumeYes: assumeYes}
}

func (c *promptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if c.assumeYes {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.w, "%s [y/N] ", prompt)
	line, err := c.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
