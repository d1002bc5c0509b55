// Package app wires the compositor, session manager, status tracker,
// input router, and state store together, runs the single event loop
// that serializes every callback onto one goroutine, and owns signal
// handling and shutdown.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/hydra-mux/hydra/checkout"
	"github.com/hydra-mux/hydra/compositor"
	"github.com/hydra-mux/hydra/config"
	"github.com/hydra-mux/hydra/input"
	"github.com/hydra-mux/hydra/session"
	"github.com/hydra-mux/hydra/status"
	"github.com/hydra-mux/hydra/store"
)

// Controller owns the whole running program: one goroutine reads stdin,
// one goroutine per PTY reads child output, one goroutine watches
// signals — but every one of them only ever posts a closure onto events;
// the loop goroutine started by Run is the only one that touches the
// store or the compositor. Session emulators are written by the session
// manager's batch timer goroutines, under each emulator's own lock.
type Controller struct {
	st        *store.Store
	sessions  *session.Manager
	tracker   *status.Tracker
	comp      *compositor.Compositor
	router    *input.Router
	checkouts *checkout.Manager
	log       *logrus.Entry

	events chan func()

	lastRenderedID string
	lastMode       store.Mode

	modalBuf []byte

	shutdownOnce sync.Once
	done         chan struct{}
}

// New builds a Controller. repoRoot must already be validated (the
// caller performs the preflight check before constructing one).
func New(repoRoot string, cfg *config.Config, log *logrus.Entry) (*Controller, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	st := store.New()
	checkouts := checkout.New(repoRoot, home, log)
	sessions := session.New(st, checkouts, session.Config{
		Command:       cfg.Command,
		Args:          cfg.Args,
		BatchInterval: cfg.BatchInterval(),
		MaxScrollback: cfg.MaxScrollback,
	}, log)
	tracker := status.NewWithSilence(cfg.SilenceDuration())
	comp := compositor.New(os.Stdout)
	router := input.NewWithTimeout(input.Stdin(), st, sessions, cfg.PrefixTimeout())

	c := &Controller{
		st:        st,
		sessions:  sessions,
		tracker:   tracker,
		comp:      comp,
		router:    router,
		checkouts: checkouts,
		log:       log,
		events:    make(chan func(), 256),
		lastMode:  store.ModeNormal,
		done:      make(chan struct{}),
	}
	c.wire()
	return c, nil
}

func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

func (c *Controller) wire() {
	c.sessions.OnRawPTYData = func(id string, chunk []byte) {
		c.post(func() { c.onRawPTYData(id, chunk) })
	}
	c.sessions.OnPTYData = func(id string) {
		c.post(func() { c.onPTYData(id) })
	}
	c.sessions.OnDataReceived = func(id string) {
		c.post(func() { c.tracker.DataReceived(id) })
	}
	c.tracker.OnChange = func(id string, s status.State) {
		c.post(func() { c.comp.MarkChromeDirty() })
	}

	c.router.OnQuit = func() { c.post(c.Shutdown) }
	c.router.OnSubmit = func(id string) {
		c.post(func() { c.tracker.Submit(id) })
	}
	c.router.OnModalInput = func(mode store.Mode, chunk []byte) {
		c.post(func() { c.handleModalInput(mode, chunk) })
	}
	c.router.OnPrefixTimeout = func() {
		c.post(c.router.FirePrefixTimeout)
	}

	c.st.Subscribe(func(prev, next store.AppState) {
		c.post(func() { c.onStateChange(prev, next) })
	})
}

// Run starts raw mode, restores any prior sessions, installs signal
// handlers, and drives the event loop until shutdown.
func (c *Controller) Run() error {
	cols, rows, err := term.GetSize(input.Stdin())
	if err != nil {
		return fmt.Errorf("query terminal size: %w", err)
	}

	if err := c.checkouts.PruneOrphans(); err != nil && c.log != nil {
		c.log.WithError(err).Warn("failed to prune orphaned checkouts")
	}
	if err := c.sessions.RestoreExistingSessions(cols, rows-compositor.ChromeRows); err != nil && c.log != nil {
		c.log.WithError(err).Warn("failed to restore sessions")
	}

	if err := c.router.Start(); err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	c.comp.Initialize(cols, rows)
	c.renderAfterStartup()

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	winchCh := make(chan os.Signal, 4)
	signal.Notify(winchCh, syscall.SIGWINCH)

	go c.readStdin()
	go func() {
		for range sigCh {
			c.post(c.Shutdown)
			return
		}
	}()
	go func() {
		for range winchCh {
			c.post(c.onResize)
		}
	}()

	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return nil
		}
	}
}

func (c *Controller) readStdin() {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			c.post(func() { c.router.HandleChunk(chunk) })
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) onRawPTYData(id string, chunk []byte) {
	state := c.st.State()
	if state.ActiveID == id {
		c.comp.WritePassthrough(chunk)
	}
}

func (c *Controller) onPTYData(id string) {
	state := c.st.State()
	if state.Mode != store.ModeNormal {
		return
	}
	if state.ActiveID != id || state.ScrollOffset != 0 {
		return
	}
	if emu := c.sessions.Emulator(id); emu != nil {
		c.comp.RepaintViewport(emu, 0)
	}
	c.comp.MarkChromeDirty()
}

func (c *Controller) renderAfterStartup() {
	state := c.st.State()
	c.tracker.Sync(sessionIDs(state))
	if state.ActiveID == "" {
		c.comp.RepaintPlaceholder()
	} else if emu := c.sessions.Emulator(state.ActiveID); emu != nil {
		c.comp.RepaintViewport(emu, state.ScrollOffset)
	}
	c.lastRenderedID = state.ActiveID
	c.drawChrome(state)
}

// onStateChange implements the render policy: sync status entries, then
// dispatch to modal-enter, modal-exit, session-switch, or a chrome-only
// redraw, in that priority order.
func (c *Controller) onStateChange(prev, next store.AppState) {
	c.tracker.Sync(sessionIDs(next))

	switch {
	case next.Mode == store.ModeCreatingSession || next.Mode == store.ModeConfirmingClose:
		c.enterModal(next.Mode)

	case c.lastMode != store.ModeNormal && next.Mode == store.ModeNormal:
		c.comp.ExitModal()
		c.repaintActive(next)
		c.drawChrome(next)

	case next.ActiveID != c.lastRenderedID:
		c.repaintActive(next)
		c.drawChrome(next)

	default:
		c.comp.MarkChromeDirty()
		c.drawChrome(next)
	}

	c.lastMode = next.Mode
	c.lastRenderedID = next.ActiveID
}

func (c *Controller) enterModal(mode store.Mode) {
	var lines []string
	switch mode {
	case store.ModeCreatingSession:
		c.modalBuf = nil
		lines = []string{"new session", "", "enter a branch name, then press Enter", "(Esc to cancel)"}
	case store.ModeConfirmingClose:
		lines = []string{"close this session?", "", "press Enter to confirm, Esc to cancel"}
	}
	c.comp.EnterModal(lines)
}

// handleModalInput owns ESC/Enter/Backspace/printable handling for
// whichever modal is currently active. Per the escape-bundling caveat, any
// chunk starting with ESC is treated as cancel regardless of what follows.
func (c *Controller) handleModalInput(mode store.Mode, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if chunk[0] == 0x1b {
		c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeNormal})
		return
	}

	switch mode {
	case store.ModeCreatingSession:
		c.handleCreateInput(chunk)
	case store.ModeConfirmingClose:
		if chunk[0] == '\r' || chunk[0] == '\n' {
			id := c.st.State().ActiveID
			c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeNormal})
			if id != "" {
				c.sessions.CloseSession(id)
			}
		}
	}
}

func (c *Controller) handleCreateInput(chunk []byte) {
	switch chunk[0] {
	case '\r', '\n':
		branch := string(c.modalBuf)
		c.modalBuf = nil
		c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeNormal})
		if branch == "" {
			return
		}
		geo := c.comp.Geometry()
		if _, err := c.sessions.CreateSession(branch, geo.Cols, geo.InnerRows, ""); err != nil {
			c.st.Dispatch(store.Action{Kind: store.SetError, Message: err.Error()})
		}
	case 0x7f, 0x08:
		if n := len(c.modalBuf); n > 0 {
			c.modalBuf = c.modalBuf[:n-1]
		}
		c.comp.EnterModal([]string{"new session", "", "enter a branch name, then press Enter", "(Esc to cancel)", string(c.modalBuf)})
	default:
		c.modalBuf = append(c.modalBuf, chunk...)
		c.comp.EnterModal([]string{"new session", "", "enter a branch name, then press Enter", "(Esc to cancel)", string(c.modalBuf)})
	}
}

func (c *Controller) repaintActive(s store.AppState) {
	if s.ActiveID == "" {
		c.comp.RepaintPlaceholder()
		return
	}
	if emu := c.sessions.Emulator(s.ActiveID); emu != nil {
		c.comp.RepaintViewport(emu, s.ScrollOffset)
	}
}

func (c *Controller) drawChrome(s store.AppState) {
	tabs := make([]compositor.TabInfo, len(s.Sessions))
	for i, sess := range s.Sessions {
		tabs[i] = compositor.TabInfo{
			ID:       sess.ID,
			Branch:   sess.Branch,
			Active:   sess.ID == s.ActiveID,
			ExitCode: sess.ExitCode,
			Status:   c.tracker.Get(sess.ID),
		}
	}
	c.comp.DrawChrome(s.Mode, tabs, s.ScrollOffset, s.ErrorMessage)
}

func (c *Controller) onResize() {
	cols, rows, err := term.GetSize(input.Stdin())
	if err != nil {
		if c.log != nil {
			c.log.WithError(err).Warn("failed to query terminal size on resize")
		}
		return
	}
	var ws unix.Winsize
	if ws2, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ); err == nil {
		ws = *ws2
		if int(ws.Col) > 0 {
			cols = int(ws.Col)
		}
		if int(ws.Row) > 0 {
			rows = int(ws.Row)
		}
	}

	c.sessions.ResizeAll(cols, rows-compositor.ChromeRows)
	c.comp.Resize(cols, rows)

	state := c.st.State()
	c.repaintActive(state)
	c.drawChrome(state)
}

// Shutdown runs once: kills every session's PTY, disposes its emulator,
// restores the terminal, and unblocks Run. It deliberately does not go
// through CloseSession — checkouts are left on disk so the sessions are
// restored on the next launch, rather than torn down like an explicit
// CTRL_B w close.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.sessions.StopAll()
		_ = c.router.Stop()
		c.comp.Cleanup()
		close(c.done)
	})
}

func sessionIDs(s store.AppState) []string {
	ids := make([]string, len(s.Sessions))
	for i, sess := range s.Sessions {
		ids[i] = sess.ID
	}
	return ids
}
