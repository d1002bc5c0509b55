// Package render converts an emulator's cell grid into styled byte
// sequences for repaints.
package render

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/hydra-mux/hydra/ansi"
	"github.com/hydra-mux/hydra/vt"
)

// RenderLine walks columns [0, cols), skipping zero-width continuation
// cells of wide glyphs, and emits an SGR-compressed byte sequence. An
// entirely empty line renders to "" to avoid needless SGR noise.
func RenderLine(cells []vt.Cell, cols int) []byte {
	if allBlank(cells, cols) {
		return nil
	}

	var b strings.Builder
	prev := vt.DefaultStyle
	havePrev := false

	for col := 0; col < cols && col < len(cells); col++ {
		cell := cells[col]
		if cell.Ch == 0 {
			continue // zero-width continuation of a wide glyph
		}
		if !havePrev || !cell.Style.Equal(prev) {
			b.WriteString(sgrFor(cell.Style))
			prev = cell.Style
			havePrev = true
		}
		ch := cell.Ch
		if ch == 0 {
			ch = ' '
		}
		b.WriteRune(ch)
		if runewidth.RuneWidth(ch) == 0 {
			b.WriteByte(' ')
		}
	}
	b.WriteString(ansi.ResetSGR())
	return []byte(b.String())
}

func allBlank(cells []vt.Cell, cols int) bool {
	for col := 0; col < cols && col < len(cells); col++ {
		if cells[col].Ch != 0 && cells[col].Ch != ' ' {
			return false
		}
	}
	return true
}

// RenderBuffer produces visibleRows lines starting at
// max(0, liveStart - scrollOffset), where liveStart is the index of the
// live grid's top row within GetLine's retained address space
// (Length()-Rows(), i.e. len(scrollback)) rather than the emulator's
// unbounded BaseY — once a session has scrolled past the scrollback cap,
// BaseY keeps counting every line ever scrolled off, but GetLine can only
// address what's still retained, so anchoring on BaseY would walk past
// the top of the live grid and return nil for rows that are actually
// on-screen.
func RenderBuffer(e *vt.Emulator, scrollOffset, visibleRows int) [][]byte {
	liveStart := e.Length() - e.Rows()
	start := liveStart - scrollOffset
	if start < 0 {
		start = 0
	}
	n := visibleRows
	if e.Rows() < n {
		n = e.Rows()
	}
	out := make([][]byte, visibleRows)
	for i := 0; i < visibleRows; i++ {
		if i >= n {
			out[i] = nil
			continue
		}
		out[i] = RenderLine(e.GetLine(start+i), e.Cols())
	}
	return out
}

// sgrFor builds the "CSI 0; <attrs>; <fg>; <bg> m" sequence for a style,
// using termenv's color types for the fg/bg parameter formulas (30+n /
// 90+n&7 / 38;5;n / 38;2;r;g;b) via their Sequence(bg bool) method.
func sgrFor(s vt.CellStyle) string {
	var params []string
	if s.Bold {
		params = append(params, "1")
	}
	if s.Dim {
		params = append(params, "2")
	}
	if s.Italic {
		params = append(params, "3")
	}
	if s.Underline {
		params = append(params, "4")
	}
	if s.Inverse {
		params = append(params, "7")
	}
	if s.Strikethrough {
		params = append(params, "9")
	}
	if fg := colorSequence(s.FGMode, s.FGValue, false); fg != "" {
		params = append(params, fg)
	}
	if bg := colorSequence(s.BGMode, s.BGValue, true); bg != "" {
		params = append(params, bg)
	}
	return ansi.SGR(params...)
}

func colorSequence(mode vt.ColorMode, value int32, bg bool) string {
	switch mode {
	case vt.ColorPalette16:
		return termenv.ANSIColor(value).Sequence(bg)
	case vt.ColorPalette256:
		return termenv.ANSI256Color(value).Sequence(bg)
	case vt.ColorRGB:
		r := (value >> 16) & 0xff
		g := (value >> 8) & 0xff
		bcomp := value & 0xff
		hex := "#" + hexByte(r) + hexByte(g) + hexByte(bcomp)
		return termenv.RGBColor(hex).Sequence(bg)
	default:
		return ""
	}
}

func hexByte(v int32) string {
	s := strconv.FormatInt(int64(v), 16)
	if len(s) == 1 {
		s = "0" + s
	}
	return s
}
