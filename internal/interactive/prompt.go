// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/history"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Proceed with this item
	ResponseNo                   // Skip this item
	ResponseAll                  // Approve all remaining items
	ResponseQuit                 // Abort interactive mode
)

// Prompter handles interactive prompts for destructive commands.
type Prompter struct {
	in         io.Reader
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// NewPrompterWithIO creates a prompter that reads answers from in and asks on out.
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal reports whether r is a terminal (TTY).
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	switch input {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		// Default to no for invalid input
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// Confirm asks a yes/no question. Anything but yes is a no.
func (p *Prompter) Confirm(question string) bool {
	_, _ = fmt.Fprintf(p.out, "%s [y/n] ", question)
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// SelectForDeletion asks about each history entry in turn and returns the
// approved ones. The second result is false when the user quit or declined
// the final confirmation.
func (p *Prompter) SelectForDeletion(candidates []history.Info) ([]history.Info, bool) {
	if len(candidates) == 0 {
		return nil, true
	}

	_, _ = fmt.Fprintf(p.out, "%d history entries can be pruned:\n\n", len(candidates))

	var approved []history.Info
	for _, info := range candidates {
		resp := p.prompt("Delete %s (%s -> %s, %s)?",
			info.ID, orNone(info.From), orNone(info.To), humanize.Time(info.CreatedAt))
		switch resp {
		case ResponseQuit:
			_, _ = fmt.Fprintln(p.out, "\nAborted.")
			return nil, false
		case ResponseYes, ResponseAll:
			approved = append(approved, info)
		}
	}

	if len(approved) == 0 {
		_, _ = fmt.Fprintln(p.out, "\nNothing selected.")
		return nil, true
	}

	_, _ = fmt.Fprintln(p.out)
	if !p.Confirm(fmt.Sprintf("Delete %d entries?", len(approved))) {
		return nil, false
	}
	return approved, true
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
