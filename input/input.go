// Package input implements a prefix-key input router: raw-mode stdin
// reading, a tmux-style prefix-key state machine, modal input dispatch,
// and pass-through to the active PTY. Priority is modal callback first,
// prefix state machine second, pass-through last.
package input

import (
	"os"
	"time"

	"golang.org/x/term"

	"github.com/hydra-mux/hydra/store"
)

// PrefixByte is CTRL_B, the prefix key.
const PrefixByte = 0x02

// PrefixTimeout is how long the router waits, after a prefix byte, before
// forwarding a lone CTRL_B to the active PTY.
const PrefixTimeout = 500 * time.Millisecond

type prefixState int

const (
	prefixInactive prefixState = iota
	prefixActive
)

// Sessions is the subset of the session manager the router depends on.
type Sessions interface {
	WritePTY(id string, data []byte)
}

// Router owns stdin in raw mode while running and decides, for every
// chunk, whether it is a modal keystroke, a prefix command, or
// pass-through to the active PTY.
type Router struct {
	fd       int
	oldState *term.State

	st       *store.Store
	sessions Sessions

	state         prefixState
	prefixTimer   *time.Timer
	prefixTimeout time.Duration

	// OnModalInput is called with the raw chunk whenever mode is
	// CreatingSession or ConfirmingClose; it owns ESC/Enter/Backspace/
	// printable handling for the active modal. Returns nothing — modal
	// callbacks mutate their own buffer and dispatch SET_MODE themselves
	// on completion/cancel.
	OnModalInput func(mode store.Mode, chunk []byte)

	// OnQuit is invoked on the 'q'/'Q' prefix command.
	OnQuit func()

	// OnSubmit is invoked when a lone carriage return is passed through
	// to the active session — the Idle->Working status trigger.
	OnSubmit func(sessionID string)

	// OnPrefixTimeout fires on the prefix timer's own goroutine; the
	// owner is expected to marshal it back onto the event loop before
	// calling FirePrefixTimeout, the same way every other background
	// callback (PTY batch flush, status silence) crosses threads.
	OnPrefixTimeout func()
}

// New builds a Router over the given stdin file descriptor, using the
// default prefix timeout. Use NewWithTimeout to override it.
func New(fd int, st *store.Store, sessions Sessions) *Router {
	return NewWithTimeout(fd, st, sessions, PrefixTimeout)
}

// NewWithTimeout builds a Router with a caller-supplied prefix timeout,
// falling back to the default when timeout is zero.
func NewWithTimeout(fd int, st *store.Store, sessions Sessions, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = PrefixTimeout
	}
	return &Router{fd: fd, st: st, sessions: sessions, prefixTimeout: timeout}
}

// Start puts stdin into raw mode.
func (r *Router) Start() error {
	old, err := term.MakeRaw(r.fd)
	if err != nil {
		return err
	}
	r.oldState = old
	return nil
}

// Stop clears any pending prefix timer and restores stdin's prior mode.
func (r *Router) Stop() error {
	if r.prefixTimer != nil {
		r.prefixTimer.Stop()
		r.prefixTimer = nil
	}
	if r.oldState == nil {
		return nil
	}
	return term.Restore(r.fd, r.oldState)
}

// HandleChunk processes one chunk of stdin bytes, applying modal
// priority, then the prefix state machine, then pass-through.
func (r *Router) HandleChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	state := r.st.State()
	if state.Mode == store.ModeCreatingSession || state.Mode == store.ModeConfirmingClose {
		if r.OnModalInput != nil {
			r.OnModalInput(state.Mode, chunk)
		}
		return
	}

	if r.state == prefixActive {
		r.consumePrefixCommand(chunk)
		return
	}

	if len(chunk) == 1 && chunk[0] == PrefixByte {
		r.enterPrefix()
		return
	}

	r.passThrough(chunk)
}

func (r *Router) enterPrefix() {
	r.state = prefixActive
	if r.prefixTimer != nil {
		r.prefixTimer.Stop()
	}
	r.prefixTimer = time.AfterFunc(r.prefixTimeout, func() {
		if r.OnPrefixTimeout != nil {
			r.OnPrefixTimeout()
		}
	})
}

// FirePrefixTimeout runs the lone-CTRL_B forwarding the prefix timer
// schedules. Callers must invoke it from the event loop goroutine, via
// OnPrefixTimeout posted the same way as every other background
// callback — never from the timer goroutine directly, since it reads
// and writes r.state. If the prefix has already been consumed (a
// command byte arrived and lost the race), r.state is no longer
// prefixActive and this is a no-op.
func (r *Router) FirePrefixTimeout() {
	if r.state != prefixActive {
		return
	}
	r.state = prefixInactive
	r.prefixTimer = nil
	r.writeToActive([]byte{PrefixByte})
}

func (r *Router) consumePrefixCommand(chunk []byte) {
	if r.prefixTimer != nil {
		r.prefixTimer.Stop()
		r.prefixTimer = nil
	}
	r.state = prefixInactive

	if len(chunk) == 0 {
		return
	}

	// Arrow keys arrive as multi-byte escape sequences; check those
	// before single-byte commands.
	if len(chunk) >= 3 && chunk[0] == 0x1b && chunk[1] == '[' {
		switch chunk[2] {
		case 'A':
			r.st.Dispatch(store.Action{Kind: store.ScrollUp, N: 5})
			return
		case 'B':
			r.st.Dispatch(store.Action{Kind: store.ScrollDown, N: 5})
			return
		}
	}

	switch chunk[0] {
	case 'q', 'Q':
		if r.OnQuit != nil {
			r.OnQuit()
		}
	case 'n', 'N':
		r.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})
	case 'w', 'W':
		if r.st.State().ActiveID != "" {
			r.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeConfirmingClose})
		}
	case ']':
		r.st.Dispatch(store.Action{Kind: store.NextTab})
	case '[':
		r.st.Dispatch(store.Action{Kind: store.PrevTab})
	case 'A':
		r.st.Dispatch(store.Action{Kind: store.ScrollUp, N: 5})
	case 'B':
		r.st.Dispatch(store.Action{Kind: store.ScrollDown, N: 5})
	default:
		if chunk[0] >= '1' && chunk[0] <= '9' {
			idx := int(chunk[0] - '1')
			r.st.Dispatch(store.Action{Kind: store.JumpToTab, Index: idx})
		}
		// anything else: drop
	}
}

func (r *Router) passThrough(chunk []byte) {
	state := r.st.State()
	if state.ActiveID == "" {
		return
	}
	for _, s := range state.Sessions {
		if s.ID == state.ActiveID && s.ExitCode != nil {
			return
		}
	}
	r.writeToActive(chunk)
	if len(chunk) == 1 && chunk[0] == '\r' && r.OnSubmit != nil {
		r.OnSubmit(state.ActiveID)
	}
}

func (r *Router) writeToActive(chunk []byte) {
	state := r.st.State()
	if state.ActiveID == "" || r.sessions == nil {
		return
	}
	r.sessions.WritePTY(state.ActiveID, chunk)
}

// Stdin returns the process's stdin descriptor, used by callers wiring up
// New without hand-rolling the fd lookup.
func Stdin() int {
	return int(os.Stdin.Fd())
}
