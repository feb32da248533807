package session

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Changes counts the source lines that differ between two renders.
type Changes struct {
	Added   int
	Removed int
}

// Summarize compares the previously rendered source with the new one.
func Summarize(prev, curr []byte) Changes {
	m := difflib.NewMatcher(splitLines(string(prev)), splitLines(string(curr)))

	var c Changes

	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			c.Removed += op.I2 - op.I1
			c.Added += op.J2 - op.J1
		case 'd':
			c.Removed += op.I2 - op.I1
		case 'i':
			c.Added += op.J2 - op.J1
		}
	}

	return c
}

// Empty reports whether no line changed.
func (c Changes) Empty() bool { return c.Added == 0 && c.Removed == 0 }

func (c Changes) String() string {
	return fmt.Sprintf("+%d/-%d lines", c.Added, c.Removed)
}

// splitLines splits s into lines that keep their trailing newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
