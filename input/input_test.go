package input

import (
	"testing"
	"time"

	"github.com/hydra-mux/hydra/store"
)

type fakeSessions struct {
	writes [][]byte
}

func (f *fakeSessions) WritePTY(id string, data []byte) {
	f.writes = append(f.writes, append([]byte(nil), data...))
}

func newRouterWithSession(t *testing.T) (*Router, *store.Store, *fakeSessions) {
	t.Helper()
	st := store.New()
	st.Dispatch(store.Action{Kind: store.AddSession, Session: store.Session{ID: "s1", Branch: "main"}})
	fs := &fakeSessions{}
	r := New(0, st, fs)
	return r, st, fs
}

func TestPassThroughWritesToActiveSession(t *testing.T) {
	r, _, fs := newRouterWithSession(t)
	r.HandleChunk([]byte("hello"))
	if len(fs.writes) != 1 || string(fs.writes[0]) != "hello" {
		t.Fatalf("expected pass-through write of 'hello', got %+v", fs.writes)
	}
}

func TestPrefixTimeoutForwardsSingleCtrlB(t *testing.T) {
	r, _, fs := newRouterWithSession(t)
	r.OnPrefixTimeout = r.FirePrefixTimeout
	r.HandleChunk([]byte{PrefixByte})
	if r.state != prefixActive {
		t.Fatalf("expected prefix state active after CTRL_B")
	}
	time.Sleep(PrefixTimeout + 100*time.Millisecond)
	if len(fs.writes) != 1 || fs.writes[0][0] != PrefixByte {
		t.Fatalf("expected exactly one forwarded CTRL_B, got %+v", fs.writes)
	}
	if r.state != prefixInactive {
		t.Fatalf("expected prefix state inactive after timeout")
	}
}

func TestFirePrefixTimeoutNoopsAfterCommandConsumed(t *testing.T) {
	r, _, fs := newRouterWithSession(t)
	r.HandleChunk([]byte{PrefixByte})
	r.HandleChunk([]byte("]"))

	// Simulate the timer firing after the command was already consumed,
	// the race the cross-thread fix must lose gracefully.
	r.FirePrefixTimeout()
	if len(fs.writes) != 0 {
		t.Fatalf("expected no spurious CTRL_B forward after command consumed, got %+v", fs.writes)
	}
}

func TestPrefixCommandConsumedNoPassThrough(t *testing.T) {
	r, st, fs := newRouterWithSession(t)
	r.HandleChunk([]byte{PrefixByte})
	r.HandleChunk([]byte("]"))
	if len(fs.writes) != 0 {
		t.Fatalf("expected no pass-through for a consumed prefix command, got %+v", fs.writes)
	}
	_ = st
}

func TestJumpToTabOutOfRangeNoStateChange(t *testing.T) {
	r, st, _ := newRouterWithSession(t)
	st.Dispatch(store.Action{Kind: store.AddSession, Session: store.Session{ID: "s2", Branch: "dev"}})
	before := st.State()
	changes := 0
	st.Subscribe(func(prev, next store.AppState) { changes++ })

	r.HandleChunk([]byte{PrefixByte})
	r.HandleChunk([]byte("5"))

	after := st.State()
	if after.ActiveID != before.ActiveID {
		t.Fatalf("expected active id unchanged on out-of-range jump")
	}
	if changes != 0 {
		t.Fatalf("expected no state change event on out-of-range jump, got %d", changes)
	}
}

func TestModalInputTakesPriorityOverPrefix(t *testing.T) {
	r, st, fs := newRouterWithSession(t)
	st.Dispatch(store.Action{Kind: store.SetMode, Mode: store.ModeCreatingSession})

	var gotChunk []byte
	r.OnModalInput = func(mode store.Mode, chunk []byte) { gotChunk = chunk }

	r.HandleChunk([]byte{PrefixByte})
	if r.state == prefixActive {
		t.Fatalf("expected modal input not to enter prefix state")
	}
	if string(gotChunk) != string([]byte{PrefixByte}) {
		t.Fatalf("expected modal callback to receive the raw chunk")
	}
	if len(fs.writes) != 0 {
		t.Fatalf("expected no pass-through while in a modal")
	}
}
