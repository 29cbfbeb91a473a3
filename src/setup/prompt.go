package setup

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

type choice struct {
	label string
	value string
}

// readLine shows prompt and returns the trimmed answer. After the first
// read error every further read returns "" and the error is kept in w.err.
func (w *Wizard) readLine(prompt string) string {
	if w.err != nil {
		return ""
	}
	w.In.SetPrompt(prompt)
	line, err := w.In.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		w.err = ErrAborted
		return ""
	}
	if err != nil {
		w.err = err
		return ""
	}
	return strings.TrimSpace(line)
}

func (w *Wizard) ask(prompt, def string) string {
	if def == "" {
		return w.readLine(fmt.Sprintf("  %s: ", prompt))
	}
	if raw := w.readLine(fmt.Sprintf("  %s [%s]: ", prompt, def)); raw != "" {
		return raw
	}
	return def
}

// askChoice lists options numbered from 1; def is 1-based
func (w *Wizard) askChoice(prompt string, options []choice, def int) string {
	for i, o := range options {
		w.printf("  %d) %s\n", i+1, o.label)
	}

	raw := w.readLine(fmt.Sprintf("  %s [%d]: ", prompt, def))
	if raw == "" {
		return options[def-1].value
	}
	if idx, err := strconv.Atoi(raw); err == nil && idx >= 1 && idx <= len(options) {
		return options[idx-1].value
	}
	w.printf("%sInvalid choice, using default.%s\n", ansiRed, ansiReset)
	return options[def-1].value
}

func (w *Wizard) askYN(prompt, def string) bool {
	raw := strings.ToLower(w.readLine(fmt.Sprintf("  %s (y/n) [%s]: ", prompt, def)))
	if raw == "" {
		raw = def
	}
	return raw == "y" || raw == "yes"
}

func (w *Wizard) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.Out, format, args...)
}

func (w *Wizard) println(args ...any) {
	_, _ = fmt.Fprintln(w.Out, args...)
}
