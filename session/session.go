// Package session implements the session lifecycle manager: owning
// per-session (Emulator, PTY child, checkout path) triples, wiring PTY
// output into the emulator with debounced batching, and surfacing data
// events to the compositor.
//
// Each session's PTY read loop runs on its own goroutine, but output is
// coalesced through a single timer per session — reset, not recreated,
// on every chunk — so a burst of small reads collapses into one emulator
// write and one repaint instead of many.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hydra-mux/hydra/checkout"
	"github.com/hydra-mux/hydra/ptyio"
	"github.com/hydra-mux/hydra/store"
	"github.com/hydra-mux/hydra/vt"
)

// DefaultBatchInterval is the PTY output coalescing window used when
// Config.BatchInterval is zero.
const DefaultBatchInterval = 8 * time.Millisecond

// DefaultMaxScrollback bounds the emulator's scrollback ring when
// Config.MaxScrollback is zero.
const DefaultMaxScrollback = 5000

// Config is the per-command configuration used to spawn a session's PTY
// child, plus the tunables a Manager applies to every session.
type Config struct {
	Command string
	Args    []string

	BatchInterval time.Duration
	MaxScrollback int
}

func (c Config) batchInterval() time.Duration {
	if c.BatchInterval > 0 {
		return c.BatchInterval
	}
	return DefaultBatchInterval
}

func (c Config) maxScrollback() int {
	if c.MaxScrollback > 0 {
		return c.MaxScrollback
	}
	return DefaultMaxScrollback
}

// live holds the resources the store doesn't own: the emulator and PTY
// child, keyed by session id, plus bookkeeping for the debounced batch.
type live struct {
	emulator *vt.Emulator
	pty      *ptyio.PTY
	path     string

	mu      sync.Mutex
	pending []byte
	timer   *time.Timer
}

// Manager owns the live per-session resources and wires them to the
// store. It does not own stdout; the compositor is wired in via
// OnRawPTYData/OnPTYData callbacks so the hot path never depends on the
// store's subscribe mechanism.
type Manager struct {
	st        *store.Store
	checkouts *checkout.Manager
	cfg       Config
	log       *logrus.Entry

	mu      sync.Mutex
	sess    map[string]*live
	counter int

	// OnRawPTYData is invoked unconditionally and synchronously for every
	// chunk read from a session's PTY, before the debounce timer —
	// the hot path to the compositor's pass-through write.
	OnRawPTYData func(sessionID string, chunk []byte)

	// OnPTYData is invoked once the debounced batch has been written
	// into the emulator (or once, immediately, on PTY exit) so the
	// compositor can repaint/update chrome.
	OnPTYData func(sessionID string)

	// OnDataReceived is invoked for every raw chunk, so the status
	// tracker's silence timer can be reset.
	OnDataReceived func(sessionID string)
}

// New builds a Manager around a store, a checkout manager, and the
// command to spawn per session.
func New(st *store.Store, checkouts *checkout.Manager, cfg Config, log *logrus.Entry) *Manager {
	return &Manager{
		st:        st,
		checkouts: checkouts,
		cfg:       cfg,
		log:       log,
		sess:      make(map[string]*live),
	}
}

func (m *Manager) nextID() string {
	m.counter++
	return fmt.Sprintf("session-%d-%d", m.counter, time.Now().UnixMilli())
}

// CreateSession spawns a new session against branch. If existingPath is
// non-empty, no new checkout is requested (used by RestoreExistingSessions).
func (m *Manager) CreateSession(branch string, cols, rows int, existingPath string) (string, error) {
	path := existingPath
	if path == "" {
		p, err := m.checkouts.Add(branch)
		if err != nil {
			return "", fmt.Errorf("create checkout: %w", err)
		}
		path = p
	}

	emu := vt.New(cols, rows, m.cfg.maxScrollback())

	p, err := ptyio.Spawn(m.cfg.Command, m.cfg.Args, path, cols, rows, nil)
	if err != nil {
		return "", fmt.Errorf("spawn pty: %w", err)
	}

	id := m.nextID()
	l := &live{emulator: emu, pty: p, path: path}

	m.mu.Lock()
	m.sess[id] = l
	m.mu.Unlock()

	p.OnData(func(chunk []byte) { m.handlePTYData(id, l, chunk) })
	p.OnExit(func(code int) { m.handlePTYExit(id, code) })

	m.st.Dispatch(store.Action{Kind: store.AddSession, Session: store.Session{ID: id, Branch: branch}})

	return id, nil
}

func (m *Manager) handlePTYData(id string, l *live, chunk []byte) {
	if m.OnRawPTYData != nil {
		m.OnRawPTYData(id, chunk)
	}

	l.mu.Lock()
	l.pending = append(l.pending, chunk...)
	if l.timer == nil {
		l.timer = time.AfterFunc(m.cfg.batchInterval(), func() { m.flush(id, l) })
	} else {
		l.timer.Reset(m.cfg.batchInterval())
	}
	l.mu.Unlock()

	if m.OnDataReceived != nil {
		m.OnDataReceived(id)
	}
}

func (m *Manager) flush(id string, l *live) {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	l.emulator.Write(batch, func() {
		if m.OnPTYData != nil {
			m.OnPTYData(id)
		}
	})
}

func (m *Manager) handlePTYExit(id string, code int) {
	m.st.Dispatch(store.Action{Kind: store.SessionExited, ID: id, Code: code})
	if m.OnPTYData != nil {
		m.OnPTYData(id)
	}
}

// StopAll kills every live session's PTY child and disposes its emulator,
// leaving checkouts and the manifest untouched so they are restored on
// the next launch. Used on graceful shutdown — unlike CloseSession, this
// never removes a checkout.
func (m *Manager) StopAll() {
	m.mu.Lock()
	live := make([]*live, 0, len(m.sess))
	for id, l := range m.sess {
		live = append(live, l)
		delete(m.sess, id)
	}
	m.mu.Unlock()

	for _, l := range live {
		if l.pty != nil {
			_ = l.pty.Kill()
		}
		l.emulator.Dispose()
	}
}

// CloseSession kills a session's PTY child, disposes its emulator, removes
// its checkout, and drops it from the store.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	l, ok := m.sess[id]
	if ok {
		delete(m.sess, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if l.pty != nil {
		_ = l.pty.Kill()
	}
	l.emulator.Dispose()
	if err := m.checkouts.Remove(l.path); err != nil && m.log != nil {
		m.log.WithError(err).WithField("path", l.path).Warn("failed to remove checkout")
	}

	m.st.Dispatch(store.Action{Kind: store.RemoveSession, ID: id})
}

// ResizeAll resizes every session still running: the emulator before the
// PTY, to avoid a race where the child writes for a larger grid than the
// emulator has.
func (m *Manager) ResizeAll(cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.sess {
		var exited bool
		for _, s := range m.st.State().Sessions {
			if s.ID == id && s.ExitCode != nil {
				exited = true
			}
		}
		if exited {
			continue
		}
		l.emulator.Resize(cols, rows)
		if l.pty != nil {
			_ = l.pty.Resize(cols, rows)
		}
	}
}

// RestoreExistingSessions lists known checkouts and re-creates a session
// against each one.
func (m *Manager) RestoreExistingSessions(cols, rows int) error {
	entries, err := m.checkouts.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := m.CreateSession(e.Branch, cols, rows, e.Path); err != nil {
			if m.log != nil {
				m.log.WithError(err).WithField("branch", e.Branch).Warn("failed to restore session")
			}
		}
	}
	return nil
}

// CleanupOrphans delegates to the checkout manager.
func (m *Manager) CleanupOrphans() error {
	return m.checkouts.PruneOrphans()
}

// Emulator returns the live emulator for a session id, or nil.
func (m *Manager) Emulator(id string) *vt.Emulator {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.sess[id]; ok {
		return l.emulator
	}
	return nil
}

// WritePTY sends bytes to the given session's PTY, if it exists and its
// child hasn't exited.
func (m *Manager) WritePTY(id string, data []byte) {
	m.mu.Lock()
	l, ok := m.sess[id]
	m.mu.Unlock()
	if !ok || l.pty == nil || l.pty.Exited() {
		return
	}
	_, _ = l.pty.Write(data)
}
