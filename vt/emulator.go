// Package vt implements a headless VT/xterm-compatible terminal emulator:
// a cell grid with a bounded scrollback, fed by raw PTY bytes and read back
// by the buffer renderer. The surface is narrow on purpose — write, resize,
// dispose, and a read-only buffer view — so any conformant VT engine could
// back the same interface.
package vt

import (
	"strconv"
	"strings"
	"sync"
)

// Cell is a single grid position: a rune plus the style it was written
// with. A zero-width continuation cell (the second column of a wide
// glyph) carries Ch == 0.
type Cell struct {
	Ch    rune
	Style CellStyle
}

type parseState int

const (
	stateNormal parseState = iota
	stateEscape
	stateCSI
	stateOSC
)

// Emulator is one session's headless terminal. Write and the buffer-view
// methods all take the same lock, so the session manager's debounced
// batch can write from its timer goroutine while a render reads the
// buffer from the event loop.
type Emulator struct {
	mu sync.Mutex

	cols, rows int
	cells      [][]Cell

	curRow, curCol int
	curStyle       CellStyle

	scrollTop, scrollBot int

	scrollback    [][]Cell
	maxScrollback int
	baseY         int

	mainCells [][]Cell
	altCells  [][]Cell
	altActive bool

	savedRow, savedCol int
	savedStyle         CellStyle

	cursorHidden bool

	state  parseState
	csiBuf []byte
	oscBuf []byte
}

// New creates an emulator at cols x rows with the given scrollback bound.
func New(cols, rows, maxScrollback int) *Emulator {
	e := &Emulator{
		cols:          cols,
		rows:          rows,
		maxScrollback: maxScrollback,
		scrollBot:     rows - 1,
		curStyle:      DefaultStyle,
	}
	e.cells = newGrid(rows, cols)
	return e
}

func newGrid(rows, cols int) [][]Cell {
	g := make([][]Cell, rows)
	for i := range g {
		g[i] = newRow(cols)
	}
	return g
}

func newRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = Cell{Ch: ' '}
	}
	return row
}

// Cols, Rows report the live grid dimensions.
func (e *Emulator) Cols() int { e.mu.Lock(); defer e.mu.Unlock(); return e.cols }
func (e *Emulator) Rows() int { e.mu.Lock(); defer e.mu.Unlock(); return e.rows }

// BaseY is the count of lines that have scrolled off the top of the
// viewport. It keeps counting after the bounded scrollback has evicted
// old lines, so the renderer anchors repaints on Length()-Rows() instead.
func (e *Emulator) BaseY() int { e.mu.Lock(); defer e.mu.Unlock(); return e.baseY }

// Cursor returns the 0-indexed cursor position.
func (e *Emulator) Cursor() (row, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curRow, e.curCol
}

// Length returns the total number of addressable lines: scrollback plus
// the live grid.
func (e *Emulator) Length() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scrollback) + e.rows
}

// GetLine returns a copy of the cells at logical line y (0 is the oldest
// scrollback line). Out-of-range y returns nil.
func (e *Emulator) GetLine(y int) []Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	if y < 0 {
		return nil
	}
	if y < len(e.scrollback) {
		return append([]Cell(nil), e.scrollback[y]...)
	}
	row := y - len(e.scrollback)
	if row < 0 || row >= len(e.cells) {
		return nil
	}
	return append([]Cell(nil), e.cells[row]...)
}

// Write parses bytes into the grid, then invokes onDone. onDone is called
// synchronously; callers treat it as the completion signal for a batched
// flush.
func (e *Emulator) Write(data []byte, onDone func()) {
	e.mu.Lock()
	for i := 0; i < len(data); i++ {
		e.feed(data[i])
	}
	e.mu.Unlock()
	if onDone != nil {
		onDone()
	}
}

// Resize changes the live grid dimensions. Unlike a visible editor pane,
// hydra's emulator does not reflow scrollback on resize: the host
// terminal's native scrollback, not this grid, is what the user actually
// scrolls through once lines leave the viewport.
func (e *Emulator) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cols == e.cols && rows == e.rows {
		return
	}
	newCells := newGrid(rows, cols)
	copyRows := min(rows, len(e.cells))
	for r := 0; r < copyRows; r++ {
		copyCols := min(cols, len(e.cells[r]))
		copy(newCells[r][:copyCols], e.cells[r][:copyCols])
	}
	e.cells = newCells
	e.cols = cols
	e.rows = rows
	e.scrollTop = 0
	e.scrollBot = rows - 1
	if e.curRow >= rows {
		e.curRow = rows - 1
	}
	if e.curCol >= cols {
		e.curCol = cols - 1
	}
}

// Dispose releases the emulator's buffers. Safe to call more than once.
func (e *Emulator) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cells = nil
	e.scrollback = nil
	e.mainCells = nil
	e.altCells = nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// --- parser ---

func (e *Emulator) feed(b byte) {
	switch e.state {
	case stateNormal:
		e.feedNormal(b)
	case stateEscape:
		e.feedEscape(b)
	case stateCSI:
		e.feedCSI(b)
	case stateOSC:
		e.feedOSC(b)
	}
}

func (e *Emulator) feedNormal(b byte) {
	switch b {
	case 0x1b:
		e.state = stateEscape
	case '\r':
		e.curCol = 0
	case '\n':
		e.lineFeed()
	case '\b':
		if e.curCol > 0 {
			e.curCol--
		}
	case '\t':
		next := (e.curCol/8 + 1) * 8
		if next >= e.cols {
			next = e.cols - 1
		}
		e.curCol = next
	default:
		if b >= 0x20 {
			e.putChar(rune(b))
		}
	}
}

func (e *Emulator) feedEscape(b byte) {
	switch b {
	case '[':
		e.state = stateCSI
		e.csiBuf = e.csiBuf[:0]
	case ']':
		e.state = stateOSC
		e.oscBuf = e.oscBuf[:0]
	case 'M':
		e.reverseIndex()
		e.state = stateNormal
	case '7':
		e.savedRow, e.savedCol, e.savedStyle = e.curRow, e.curCol, e.curStyle
		e.state = stateNormal
	case '8':
		e.curRow, e.curCol, e.curStyle = e.savedRow, e.savedCol, e.savedStyle
		e.state = stateNormal
	default:
		e.state = stateNormal
	}
}

func (e *Emulator) feedCSI(b byte) {
	e.csiBuf = append(e.csiBuf, b)
	if b >= 0x40 && b <= 0x7e {
		e.processCSI()
		e.state = stateNormal
	}
}

func (e *Emulator) feedOSC(b byte) {
	if b == 0x07 || (b == '\\' && len(e.oscBuf) > 0 && e.oscBuf[len(e.oscBuf)-1] == 0x1b) {
		e.state = stateNormal
		return
	}
	e.oscBuf = append(e.oscBuf, b)
}

func (e *Emulator) putChar(ch rune) {
	if e.curCol >= e.cols {
		e.curCol = 0
		e.lineFeed()
	}
	e.cells[e.curRow][e.curCol] = Cell{Ch: ch, Style: e.curStyle}
	e.curCol++
}

func (e *Emulator) lineFeed() {
	if e.curRow == e.scrollBot {
		e.scrollUp()
	} else if e.curRow < e.rows-1 {
		e.curRow++
	}
}

func (e *Emulator) reverseIndex() {
	if e.curRow == e.scrollTop {
		e.scrollDown()
	} else if e.curRow > 0 {
		e.curRow--
	}
}

// scrollUp moves the top line of the scroll region into scrollback (only
// when the region starts at the top row and the main screen is active —
// other regions and the alt screen scroll in place) and shifts the
// region up one line.
func (e *Emulator) scrollUp() {
	if e.scrollTop == 0 && !e.altActive {
		e.pushScrollback(e.cells[e.scrollTop])
		e.baseY++
	}
	copy(e.cells[e.scrollTop:e.scrollBot], e.cells[e.scrollTop+1:e.scrollBot+1])
	e.cells[e.scrollBot] = newRow(e.cols)
}

func (e *Emulator) scrollDown() {
	copy(e.cells[e.scrollTop+1:e.scrollBot+1], e.cells[e.scrollTop:e.scrollBot])
	e.cells[e.scrollTop] = newRow(e.cols)
}

func (e *Emulator) pushScrollback(row []Cell) {
	cp := append([]Cell(nil), row...)
	e.scrollback = append(e.scrollback, cp)
	if len(e.scrollback) > e.maxScrollback {
		e.scrollback = e.scrollback[len(e.scrollback)-e.maxScrollback:]
	}
}

func (e *Emulator) processCSI() {
	if len(e.csiBuf) == 0 {
		return
	}
	final := e.csiBuf[len(e.csiBuf)-1]
	params := string(e.csiBuf[:len(e.csiBuf)-1])

	switch final {
	case 'm':
		e.processSGR(params)
	case 'A':
		e.curRow = clamp(e.curRow-parseParam(params, 1), 0, e.rows-1)
	case 'B':
		e.curRow = clamp(e.curRow+parseParam(params, 1), 0, e.rows-1)
	case 'C':
		e.curCol = clamp(e.curCol+parseParam(params, 1), 0, e.cols-1)
	case 'D':
		e.curCol = clamp(e.curCol-parseParam(params, 1), 0, e.cols-1)
	case 'H', 'f':
		row, col := parseParamPair(params, 1, 1)
		e.curRow = clamp(row-1, 0, e.rows-1)
		e.curCol = clamp(col-1, 0, e.cols-1)
	case 'J':
		e.eraseDisplay(parseParam(params, 0))
	case 'K':
		e.eraseLine(parseParam(params, 0))
	case 'r':
		top, bot := parseParamPair(params, 1, e.rows)
		e.scrollTop = clamp(top-1, 0, e.rows-1)
		e.scrollBot = clamp(bot-1, 0, e.rows-1)
	case 'L':
		for i := 0; i < parseParam(params, 1); i++ {
			e.scrollDown()
		}
	case 'M':
		for i := 0; i < parseParam(params, 1); i++ {
			e.scrollUp()
		}
	case 'G':
		e.curCol = clamp(parseParam(params, 1)-1, 0, e.cols-1)
	case 'd':
		e.curRow = clamp(parseParam(params, 1)-1, 0, e.rows-1)
	case 'h', 'l':
		e.processMode(params, final == 'h')
	case 's':
		e.savedRow, e.savedCol, e.savedStyle = e.curRow, e.curCol, e.curStyle
	case 'u':
		e.curRow, e.curCol, e.curStyle = e.savedRow, e.savedCol, e.savedStyle
		e.curRow = clamp(e.curRow, 0, e.rows-1)
		e.curCol = clamp(e.curCol, 0, e.cols-1)
	}
}

func (e *Emulator) processMode(params string, set bool) {
	if !strings.HasPrefix(params, "?") {
		return
	}
	for _, code := range splitParams(params[1:]) {
		switch code {
		case 25:
			e.cursorHidden = !set
		case 47, 1047:
			if set {
				e.enterAltScreen()
			} else {
				e.exitAltScreen()
			}
		case 1049:
			if set {
				e.savedRow, e.savedCol, e.savedStyle = e.curRow, e.curCol, e.curStyle
				e.enterAltScreen()
			} else {
				e.exitAltScreen()
				e.curRow, e.curCol, e.curStyle = e.savedRow, e.savedCol, e.savedStyle
				e.curRow = clamp(e.curRow, 0, e.rows-1)
				e.curCol = clamp(e.curCol, 0, e.cols-1)
			}
		}
	}
}

func (e *Emulator) enterAltScreen() {
	if e.altActive {
		return
	}
	e.mainCells = e.cells
	e.cells = newGrid(e.rows, e.cols)
	e.altActive = true
}

func (e *Emulator) exitAltScreen() {
	if !e.altActive {
		return
	}
	e.cells = e.mainCells
	e.mainCells = nil
	e.altActive = false
}

func (e *Emulator) processSGR(params string) {
	if params == "" {
		params = "0"
	}
	parts := splitParams(params)
	i := 0
	for i < len(parts) {
		p := parts[i]
		switch {
		case p == 0:
			e.curStyle = DefaultStyle
		case p == 1:
			e.curStyle.Bold = true
		case p == 2:
			e.curStyle.Dim = true
		case p == 3:
			e.curStyle.Italic = true
		case p == 4:
			e.curStyle.Underline = true
		case p == 7:
			e.curStyle.Inverse = true
		case p == 9:
			e.curStyle.Strikethrough = true
		case p == 22:
			e.curStyle.Bold, e.curStyle.Dim = false, false
		case p == 23:
			e.curStyle.Italic = false
		case p == 24:
			e.curStyle.Underline = false
		case p == 27:
			e.curStyle.Inverse = false
		case p == 29:
			e.curStyle.Strikethrough = false
		case p >= 30 && p <= 37:
			e.curStyle.FGMode = ColorPalette16
			e.curStyle.FGValue = int32(p - 30)
		case p == 38:
			n := e.parseExtendedColor(parts, &i)
			e.curStyle.FGMode, e.curStyle.FGValue = n.mode, n.value
			continue
		case p == 39:
			e.curStyle.FGMode = ColorDefault
		case p >= 40 && p <= 47:
			e.curStyle.BGMode = ColorPalette16
			e.curStyle.BGValue = int32(p - 40)
		case p == 48:
			n := e.parseExtendedColor(parts, &i)
			e.curStyle.BGMode, e.curStyle.BGValue = n.mode, n.value
			continue
		case p == 49:
			e.curStyle.BGMode = ColorDefault
		case p >= 90 && p <= 97:
			e.curStyle.FGMode = ColorPalette16
			e.curStyle.FGValue = int32(p - 90 + 8)
		case p >= 100 && p <= 107:
			e.curStyle.BGMode = ColorPalette16
			e.curStyle.BGValue = int32(p - 100 + 8)
		}
		i++
	}
}

type extColor struct {
	mode  ColorMode
	value int32
}

// parseExtendedColor consumes the 5/2 sub-sequence following a 38/48
// param and advances i past it.
func (e *Emulator) parseExtendedColor(parts []int, i *int) extColor {
	if *i+1 >= len(parts) {
		*i = len(parts)
		return extColor{}
	}
	mode := parts[*i+1]
	switch mode {
	case 5:
		if *i+2 < len(parts) {
			v := int32(parts[*i+2])
			*i += 3
			return extColor{mode: ColorPalette256, value: v}
		}
	case 2:
		if *i+4 < len(parts) {
			r, g, b := int32(parts[*i+2]), int32(parts[*i+3]), int32(parts[*i+4])
			*i += 5
			return extColor{mode: ColorRGB, value: packRGB(r, g, b)}
		}
	}
	*i = len(parts)
	return extColor{}
}

func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0:
		e.eraseLine(0)
		for r := e.curRow + 1; r < e.rows; r++ {
			e.cells[r] = newRow(e.cols)
		}
	case 1:
		e.eraseLine(1)
		for r := 0; r < e.curRow; r++ {
			e.cells[r] = newRow(e.cols)
		}
	case 2, 3:
		for r := 0; r < e.rows; r++ {
			e.cells[r] = newRow(e.cols)
		}
	}
}

func (e *Emulator) eraseLine(mode int) {
	row := e.cells[e.curRow]
	switch mode {
	case 0:
		for c := e.curCol; c < e.cols; c++ {
			row[c] = Cell{Ch: ' '}
		}
	case 1:
		for c := 0; c <= e.curCol && c < e.cols; c++ {
			row[c] = Cell{Ch: ' '}
		}
	case 2:
		e.cells[e.curRow] = newRow(e.cols)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseParamPair(s string, def1, def2 int) (int, int) {
	parts := strings.Split(s, ";")
	a, b := def1, def2
	if len(parts) > 0 && parts[0] != "" {
		if n, err := strconv.Atoi(parts[0]); err == nil {
			a = n
		}
	}
	if len(parts) > 1 && parts[1] != "" {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			b = n
		}
	}
	return a, b
}

func splitParams(s string) []int {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ";")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
