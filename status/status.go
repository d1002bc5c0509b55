// Package status implements a per-session idle/working/waiting tracker:
// a silence timer reset on every PTY data chunk, with a status
// transition when it fires, one timer per session id.
package status

import (
	"sync"
	"time"
)

// State is a session's observed activity state.
type State int

const (
	Idle State = iota
	Working
	Waiting
)

// SilenceDuration is the quiet period after which a Working session is
// considered Waiting.
const SilenceDuration = 3000 * time.Millisecond

type entry struct {
	state State
	timer *time.Timer
}

// Tracker owns one silence timer per session id. Callers must not use it
// concurrently from more than one goroutine without external
// synchronization beyond what Tracker itself provides — it is built for
// a single-threaded event loop and locks only to guard against the
// timer's own goroutine firing concurrently with a call from the loop
// thread.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	silence time.Duration

	// OnChange is invoked whenever a status transitions: on the caller's
	// goroutine for Submit, and off the loop thread, from a timer
	// goroutine, for the silence transition; callers should marshal this
	// back onto the loop before touching shared state.
	OnChange func(sessionID string, s State)
}

// New returns an empty Tracker using SilenceDuration as the default
// working->waiting window.
func New() *Tracker {
	return NewWithSilence(SilenceDuration)
}

// NewWithSilence returns an empty Tracker using a caller-supplied silence
// window, falling back to SilenceDuration when silence is zero.
func NewWithSilence(silence time.Duration) *Tracker {
	if silence <= 0 {
		silence = SilenceDuration
	}
	return &Tracker{entries: make(map[string]*entry), silence: silence}
}

// Sync creates entries (Idle) for new ids and removes entries for ids no
// longer present.
func (t *Tracker) Sync(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
		if _, ok := t.entries[id]; !ok {
			t.entries[id] = &entry{state: Idle}
		}
	}
	for id, e := range t.entries {
		if !present[id] {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(t.entries, id)
		}
	}
}

// Get returns the current status for a session id (Idle if unknown).
func (t *Tracker) Get(id string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.state
	}
	return Idle
}

// Submit marks a session Working on a submit event (a lone carriage
// return pass-through from the input router).
func (t *Tracker) Submit(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &entry{}
		t.entries[id] = e
	}
	e.state = Working
	t.mu.Unlock()
	t.notify(id, Working)
}

// DataReceived resets the silence timer for id; called on every PTY data
// chunk.
func (t *Tracker) DataReceived(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &entry{}
		t.entries[id] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(t.silence, func() { t.onSilence(id) })
	t.mu.Unlock()
}

func (t *Tracker) onSilence(id string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.state != Working {
		t.mu.Unlock()
		return
	}
	e.state = Waiting
	t.mu.Unlock()
	t.notify(id, Waiting)
}

func (t *Tracker) notify(id string, s State) {
	if t.OnChange != nil {
		t.OnChange(id, s)
	}
}

// Remove stops and drops the entry for a removed session.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.entries, id)
	}
}
