// Package compositor owns the host terminal: installing a scroll region
// that reserves three rows of chrome at the bottom, filtering pass-through
// PTY bytes so a session can never fight the chrome for those rows, and
// repainting viewports from an emulator's cell buffer on switch, resize,
// or modal exit.
package compositor

import (
	"fmt"
	"io"
	"strings"

	"github.com/hydra-mux/hydra/ansi"
	"github.com/hydra-mux/hydra/render"
	"github.com/hydra-mux/hydra/status"
	"github.com/hydra-mux/hydra/store"
	"github.com/hydra-mux/hydra/vt"
)

// ChromeRows is the fixed height of the bottom chrome: top border, status
// line, bottom border.
const ChromeRows = 3

// Geometry is the terminal dimensions and the viewport they imply.
type Geometry struct {
	Cols, Rows int
	InnerRows  int
}

func newGeometry(cols, rows int) Geometry {
	inner := rows - ChromeRows
	if inner < 1 {
		inner = 1
	}
	return Geometry{Cols: cols, Rows: rows, InnerRows: inner}
}

// TabInfo is the rendering-relevant view of one session, handed to the
// compositor by the controller so this package never needs to know about
// the session manager.
type TabInfo struct {
	ID       string
	Branch   string
	Active   bool
	ExitCode *int
	Status   status.State
}

// Compositor serializes every write to stdout so chrome and pass-through
// bytes never interleave mid-sequence.
type Compositor struct {
	out io.Writer
	geo Geometry

	chromeDirty bool
	inModal     bool
	lastChrome  *chromeState
}

type chromeState struct {
	mode         store.Mode
	tabs         []TabInfo
	scrollOffset int
	errorMessage string
}

// New builds a Compositor writing to out.
func New(out io.Writer) *Compositor {
	return &Compositor{out: out}
}

// Initialize clears the screen, installs the scroll region, and disables
// focus reporting. Safe to call again after a resize.
func (c *Compositor) Initialize(cols, rows int) {
	c.geo = newGeometry(cols, rows)
	c.write(ansi.CSI + "2J")
	c.write(ansi.SetScrollRegion(1, c.geo.InnerRows))
	c.write(ansi.CursorTo(1, 1))
	c.write(ansi.DisableFocusReporting())
	c.chromeDirty = true
}

// Cleanup restores the terminal to a usable state for the shell that
// resumes after the process exits.
func (c *Compositor) Cleanup() {
	c.write(ansi.ResetScrollRegion(c.geo.Rows))
	c.write(ansi.ShowCursor())
	c.write(ansi.CursorTo(c.geo.Rows, 1))
	c.write("\r\n")
}

// Resize reinstalls geometry for a new terminal size. Idempotent: calling
// it twice with the same dimensions is a no-op beyond redundant writes.
func (c *Compositor) Resize(cols, rows int) {
	c.Initialize(cols, rows)
}

// Geometry returns the current viewport geometry.
func (c *Compositor) Geometry() Geometry {
	return c.geo
}

func (c *Compositor) write(s string) {
	if s == "" {
		return
	}
	_, _ = io.WriteString(c.out, s)
}

// WritePassthrough filters raw PTY bytes and writes what survives to
// stdout. While a modal is active, bytes are dropped on the floor — the
// emulator upstream still receives them for state, this just withholds
// them from the terminal.
func (c *Compositor) WritePassthrough(data []byte) {
	if c.inModal {
		return
	}
	if c.chromeDirty && c.lastChrome != nil {
		c.drawChrome(*c.lastChrome)
	}
	filtered := filterPassthrough(data)
	if len(filtered) > 0 {
		c.write(string(filtered))
	}
}

// RepaintViewport redraws the inner rows from an emulator's buffer,
// honoring scrollOffset, then positions the cursor at the emulator's
// live cursor position (only meaningful when scrollOffset is 0).
func (c *Compositor) RepaintViewport(e *vt.Emulator, scrollOffset int) {
	c.write(ansi.ResetScrollRegion(c.geo.Rows))
	lines := render.RenderBuffer(e, scrollOffset, c.geo.InnerRows)
	for i := 0; i < c.geo.InnerRows; i++ {
		c.write(ansi.CursorTo(i+1, 1))
		c.write(ansi.ClearLine())
		if i < len(lines) && len(lines[i]) > 0 {
			c.write(string(lines[i]))
		}
	}
	c.write(ansi.SetScrollRegion(1, c.geo.InnerRows))
	if scrollOffset == 0 {
		row, col := e.Cursor()
		c.write(ansi.CursorTo(row+1, col+1))
	}
}

// RepaintPlaceholder clears the viewport for the no-active-session state.
func (c *Compositor) RepaintPlaceholder() {
	c.write(ansi.ResetScrollRegion(c.geo.Rows))
	msg := "no active session — press CTRL_B n to create one"
	mid := c.geo.InnerRows / 2
	for i := 0; i < c.geo.InnerRows; i++ {
		c.write(ansi.CursorTo(i+1, 1))
		c.write(ansi.ClearLine())
		if i == mid {
			pad := (c.geo.Cols - len(msg)) / 2
			if pad > 0 {
				c.write(strings.Repeat(" ", pad))
			}
			c.write(msg)
		}
	}
	c.write(ansi.SetScrollRegion(1, c.geo.InnerRows))
}

// EnterModal clears the viewport and writes centered lines, leaving
// chrome untouched.
func (c *Compositor) EnterModal(lines []string) {
	c.inModal = true
	c.write(ansi.ResetScrollRegion(c.geo.Rows))
	start := (c.geo.InnerRows - len(lines)) / 2
	if start < 0 {
		start = 0
	}
	for i := 0; i < c.geo.InnerRows; i++ {
		c.write(ansi.CursorTo(i+1, 1))
		c.write(ansi.ClearLine())
		li := i - start
		if li >= 0 && li < len(lines) {
			pad := (c.geo.Cols - len(lines[li])) / 2
			if pad > 0 {
				c.write(strings.Repeat(" ", pad))
			}
			c.write(lines[li])
		}
	}
	c.write(ansi.SetScrollRegion(1, c.geo.InnerRows))
}

// ExitModal clears the modal flag; callers follow with RepaintViewport or
// RepaintPlaceholder.
func (c *Compositor) ExitModal() {
	c.inModal = false
}

// MarkChromeDirty schedules a chrome redraw on the next pass-through
// write or explicit DrawChrome call.
func (c *Compositor) MarkChromeDirty() {
	c.chromeDirty = true
}

// DrawChrome redraws the bottom three rows unconditionally and caches the
// inputs so a later dirty-chrome redraw (triggered from the pass-through
// hot path) can repeat it without the caller re-supplying tab state.
func (c *Compositor) DrawChrome(mode store.Mode, tabs []TabInfo, scrollOffset int, errorMessage string) {
	c.lastChrome = &chromeState{mode: mode, tabs: tabs, scrollOffset: scrollOffset, errorMessage: errorMessage}
	c.drawChrome(*c.lastChrome)
}

func (c *Compositor) drawChrome(cs chromeState) {
	mode, tabs, scrollOffset, errorMessage := cs.mode, cs.tabs, cs.scrollOffset, cs.errorMessage
	c.write(ansi.SaveCursor())
	c.write(ansi.ResetScrollRegion(c.geo.Rows))

	c.write(ansi.CursorTo(c.geo.InnerRows+1, 1))
	c.write(ansi.ClearLine())
	if errorMessage != "" {
		c.write(ansi.SGR("1", "31") + truncate(errorMessage, c.geo.Cols) + ansi.ResetSGR())
	} else {
		c.write(strings.Repeat("─", c.geo.Cols))
	}

	c.write(ansi.CursorTo(c.geo.InnerRows+2, 1))
	c.write(ansi.ClearLine())
	c.write(chromeLine(mode, tabs, scrollOffset, c.geo.Cols))

	c.write(ansi.CursorTo(c.geo.InnerRows+3, 1))
	c.write(ansi.ClearLine())
	c.write(strings.Repeat("─", c.geo.Cols))

	c.write(ansi.SetScrollRegion(1, c.geo.InnerRows))
	c.write(ansi.RestoreCursor())
	c.chromeDirty = false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// chromeLine assembles the status line so its visible width never
// exceeds cols: the right-hand keybinding hint, then the left-hand
// prefix, then the scroll/exited suffix are each truncated in turn
// against whatever room remains, and the tab list — the part most
// likely to overflow with many sessions or long branch names — gets
// whatever's left, dropped one tab at a time with a trailing "…" marker
// rather than ever running past cols.
func chromeLine(mode store.Mode, tabs []TabInfo, scrollOffset int, cols int) string {
	if cols <= 0 {
		return ""
	}

	prefix := " hydra | "
	switch mode {
	case store.ModeCreatingSession:
		prefix += "[CREATE] "
	case store.ModeConfirmingClose:
		prefix += "[CLOSE?] "
	}

	var suffixB strings.Builder
	if scrollOffset > 0 {
		fmt.Fprintf(&suffixB, " [scroll: -%d]", scrollOffset)
	}
	for _, t := range tabs {
		if t.Active && t.ExitCode != nil {
			fmt.Fprintf(&suffixB, " exited(%d)", *t.ExitCode)
		}
	}
	suffix := suffixB.String()

	right := " CTRL_B: n=new w=close ]=next [=prev q=quit "
	right = truncate(right, cols)
	remaining := cols - ansi.VisibleLength(right)

	prefix = truncate(prefix, remaining)
	remaining -= ansi.VisibleLength(prefix)

	suffix = truncate(suffix, remaining)
	spaceForTabs := remaining - ansi.VisibleLength(suffix)

	tabBudget := spaceForTabs - 1 // reserve one column for a "…" marker
	if tabBudget < 0 {
		tabBudget = 0
	}
	tabsText, overflowed := renderTabs(tabs, tabBudget)

	marker := ""
	if overflowed && spaceForTabs-ansi.VisibleLength(tabsText) >= 1 {
		marker = "…"
	}

	left := prefix + tabsText + marker + suffix
	visLeft := ansi.VisibleLength(left)
	visRight := ansi.VisibleLength(right)
	pad := cols - visLeft - visRight
	if pad < 0 {
		pad = 0
	}
	return left + strings.Repeat(" ", pad) + right
}

// renderTabs renders as many leading tabs as fit within budget visible
// columns, reporting whether any tab had to be dropped to fit.
func renderTabs(tabs []TabInfo, budget int) (string, bool) {
	var b strings.Builder
	used := 0
	for i, t := range tabs {
		sep := ""
		if i > 0 {
			sep = "|"
		}
		label := fmt.Sprintf(" %d:%s ", i+1, t.Branch)
		width := ansi.VisibleLength(sep) + ansi.VisibleLength(label)
		if used+width > budget {
			return b.String(), true
		}
		b.WriteString(sep)
		switch {
		case t.ExitCode != nil:
			b.WriteString(ansi.SGR("31") + label + ansi.ResetSGR())
		case t.Active:
			b.WriteString(ansi.SGR("1", "37", "44") + label + ansi.ResetSGR())
		case t.Status == status.Working:
			b.WriteString(ansi.SGR("32") + label + ansi.ResetSGR())
		case t.Status == status.Waiting:
			b.WriteString(ansi.SGR("33") + label + ansi.ResetSGR())
		default:
			b.WriteString(ansi.SGR("90") + label + ansi.ResetSGR())
		}
		used += width
	}
	return b.String(), false
}
