package ui

import (
	"os"

	"github.com/charmbracelet/x/term"
)

const (
	// DefaultTermWidth is used when stdout is not a terminal or its size
	// cannot be read.
	DefaultTermWidth = 120

	// maxMarkdownWidth caps rendered guide and macro pages so prose stays
	// readable on wide terminals.
	maxMarkdownWidth = 100
	minMarkdownWidth = 40
)

// DisplayContext describes the terminal tmx is writing to.
type DisplayContext struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplayContext inspects stdout.
func NewDisplayContext() *DisplayContext {
	fd := os.Stdout.Fd()
	d := &DisplayContext{TermWidth: DefaultTermWidth, IsTTY: term.IsTerminal(fd)}
	if d.IsTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			d.TermWidth = w
		}
	}
	return d
}

// MarkdownWidth returns the word-wrap width for rendered markdown.
func (d *DisplayContext) MarkdownWidth() int {
	w := d.TermWidth - 2
	switch {
	case w > maxMarkdownWidth:
		return maxMarkdownWidth
	case w < minMarkdownWidth:
		return minMarkdownWidth
	default:
		return w
	}
}
