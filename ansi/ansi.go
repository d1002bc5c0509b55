// Package ansi provides the raw escape-sequence primitives the compositor
// and renderer build on: SGR styling, cursor positioning, scroll-region
// control, and the host-terminal toggles that pass-through PTY bytes need
// filtered out of them.
//
// These are pure functions: they build byte sequences, they never touch
// an io.Writer themselves.
package ansi

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// CSI is the Control Sequence Introducer.
const CSI = "\x1b["

// ResetSGR returns the sequence that clears all character attributes.
func ResetSGR() string {
	return xansi.ResetStyle
}

// CursorTo returns a sequence that positions the cursor at the given
// 1-indexed row/column.
func CursorTo(row, col int) string {
	return xansi.CursorPosition(col, row)
}

// ClearLine returns a sequence that erases the entire current line without
// moving the cursor.
func ClearLine() string {
	return xansi.EraseEntireLine
}

// SaveCursor returns DECSC.
func SaveCursor() string {
	return xansi.SaveCursor
}

// RestoreCursor returns DECRC.
func RestoreCursor() string {
	return xansi.RestoreCursor
}

// HideCursor / ShowCursor toggle DECTCEM.
func HideCursor() string { return xansi.HideCursor }
func ShowCursor() string { return xansi.ShowCursor }

// SetScrollRegion installs DECSTBM for rows [top, bottom] (1-indexed,
// inclusive).
func SetScrollRegion(top, bottom int) string {
	return xansi.SetTopBottomMargins(top, bottom)
}

// ResetScrollRegion removes any installed scroll region, restoring it to
// the full screen of the given height.
func ResetScrollRegion(rows int) string {
	return xansi.SetTopBottomMargins(1, rows)
}

// DisableFocusReporting turns off DEC private mode 1004.
func DisableFocusReporting() string {
	return fmt.Sprintf("%s?1004l", CSI)
}

// EnableFocusReporting turns on DEC private mode 1004.
func EnableFocusReporting() string {
	return fmt.Sprintf("%s?1004h", CSI)
}

// SGR builds "CSI 0; <attrs...>; <fg>; <bg> m" — always a reset prefix
// followed by the explicit attribute/color params given.
func SGR(params ...string) string {
	seq := CSI + "0"
	for _, p := range params {
		if p == "" {
			continue
		}
		seq += ";" + p
	}
	return seq + "m"
}

// StripSGR removes CSI-SGR escape sequences ("ESC [ ... m") from s,
// leaving other bytes untouched. Used to measure a chrome line's visible
// length without counting the color tokens embedded in it.
func StripSGR(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			if j < len(s) && s[j] == 'm' {
				i = j + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// VisibleLength returns the rune length of s with SGR escapes stripped.
func VisibleLength(s string) int {
	return len([]rune(StripSGR(s)))
}
