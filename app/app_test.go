package app

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/hydra-mux/hydra/compositor"
	"github.com/hydra-mux/hydra/input"
	"github.com/hydra-mux/hydra/session"
	"github.com/hydra-mux/hydra/status"
	"github.com/hydra-mux/hydra/store"
)

func newTestController(t *testing.T) (*Controller, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer

	st := store.New()
	sessions := session.New(st, nil, session.Config{}, nil)
	tracker := status.New()
	comp := compositor.New(&buf)
	comp.Initialize(80, 24)
	router := input.New(input.Stdin(), st, sessions)

	c := &Controller{
		st:       st,
		sessions: sessions,
		tracker:  tracker,
		comp:     comp,
		router:   router,
		lastMode: store.ModeNormal,
		done:     make(chan struct{}),
	}
	return c, &buf
}

func TestOnStateChangeEntersModalOnCreatingSession(t *testing.T) {
	c, buf := newTestController(t)
	prev := c.st.State()
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})
	next := c.st.State()

	buf.Reset()
	c.onStateChange(prev, next)

	if !strings.Contains(buf.String(), "new session") {
		t.Fatalf("expected modal prompt written to output, got %q", buf.String())
	}
	if c.lastMode != store.ModeCreatingSession {
		t.Fatalf("expected lastMode updated to ModeCreatingSession, got %v", c.lastMode)
	}
}

func TestOnStateChangeExitsModalBackToNormal(t *testing.T) {
	c, buf := newTestController(t)
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})
	c.onStateChange(store.AppState{}, c.st.State())

	prev := c.st.State()
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeNormal})
	next := c.st.State()

	buf.Reset()
	c.onStateChange(prev, next)

	if c.lastMode != store.ModeNormal {
		t.Fatalf("expected lastMode back to ModeNormal, got %v", c.lastMode)
	}
	if !strings.Contains(buf.String(), "no active session") {
		t.Fatalf("expected placeholder repaint after modal exit with no sessions, got %q", buf.String())
	}
}

func TestHandleModalInputEscCancelsToNormal(t *testing.T) {
	c, _ := newTestController(t)
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})

	c.handleModalInput(store.ModeCreatingSession, []byte{0x1b})

	if got := c.st.State().Mode; got != store.ModeNormal {
		t.Fatalf("expected ESC to cancel back to ModeNormal, got %v", got)
	}
}

func TestHandleCreateInputBuildsAndBackspacesBuffer(t *testing.T) {
	c, _ := newTestController(t)
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})

	c.handleCreateInput([]byte("foo"))
	if string(c.modalBuf) != "foo" {
		t.Fatalf("expected modalBuf %q, got %q", "foo", c.modalBuf)
	}

	c.handleCreateInput([]byte{0x7f})
	if string(c.modalBuf) != "fo" {
		t.Fatalf("expected backspace to drop last rune, got %q", c.modalBuf)
	}
}

func TestHandleCreateInputEmptyBranchCancelsWithoutCreating(t *testing.T) {
	c, _ := newTestController(t)
	c.st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})

	c.handleCreateInput([]byte{'\r'})

	if got := c.st.State().Mode; got != store.ModeNormal {
		t.Fatalf("expected Enter on empty branch to return to ModeNormal, got %v", got)
	}
	if len(c.st.State().Sessions) != 0 {
		t.Fatalf("expected no session created from an empty branch name")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c, _ := newTestController(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Shutdown()
		}()
	}
	wg.Wait()

	select {
	case <-c.done:
	default:
		t.Fatalf("expected done channel closed after Shutdown")
	}
}

func TestSessionIDsReflectsStateOrder(t *testing.T) {
	s := store.AppState{Sessions: []store.Session{{ID: "a"}, {ID: "b"}}}
	ids := sessionIDs(s)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}
