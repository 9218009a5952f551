// Package utils provides shared helpers for logging, statistics and terminal
// text layout.
package utils

import "github.com/mattn/go-runewidth"

// Truncate shortens s to at most maxWidth terminal cells, ending in "..."
// when cut. If maxWidth is 0 or negative, returns s unchanged.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to width terminal cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// PadLeft right-aligns s in width terminal cells.
func PadLeft(s string, width int) string {
	return runewidth.FillLeft(s, width)
}

// Width is the number of terminal cells s occupies.
func Width(s string) int {
	return runewidth.StringWidth(s)
}
