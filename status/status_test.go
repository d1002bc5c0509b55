package status

import (
	"testing"
	"time"
)

func TestSubmitTransitionsToWorking(t *testing.T) {
	tr := New()
	tr.Sync([]string{"s1"})
	tr.Submit("s1")
	if got := tr.Get("s1"); got != Working {
		t.Fatalf("expected Working after submit, got %v", got)
	}
}

func TestSilenceTransitionsWorkingToWaiting(t *testing.T) {
	tr := New()
	tr.Sync([]string{"s1"})
	tr.Submit("s1")

	done := make(chan State, 1)
	tr.OnChange = func(id string, s State) {
		if id == "s1" {
			done <- s
		}
	}
	tr.DataReceived("s1") // arms a SilenceDuration (3s) timer; the transition is checked on tr2 below

	// Use a tiny override so the test doesn't wait 3s: directly force
	// the timer by calling the private silence hook path via a fresh
	// tracker configured with a short timer instead of the package
	// constant, exercising the same transition logic.
	tr2 := New()
	tr2.Sync([]string{"s1"})
	tr2.Submit("s1")
	tr2.mu.Lock()
	e := tr2.entries["s1"]
	e.timer = time.AfterFunc(10*time.Millisecond, func() { tr2.onSilence("s1") })
	tr2.mu.Unlock()
	tr2.OnChange = func(id string, s State) {
		if id == "s1" {
			done <- s
		}
	}

	select {
	case s := <-done:
		if s != Waiting {
			t.Fatalf("expected Waiting, got %v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for silence transition")
	}
}

func TestIdleNeverTransitionsOnSilence(t *testing.T) {
	tr := New()
	tr.Sync([]string{"s1"})
	called := false
	tr.OnChange = func(id string, s State) { called = true }
	tr.onSilence("s1") // idle, not Working: no-op
	if called {
		t.Fatalf("expected no transition from Idle on silence")
	}
	if got := tr.Get("s1"); got != Idle {
		t.Fatalf("expected still Idle, got %v", got)
	}
}

func TestSyncRemovesDroppedSessions(t *testing.T) {
	tr := New()
	tr.Sync([]string{"s1", "s2"})
	tr.Sync([]string{"s2"})
	if got := tr.Get("s1"); got != Idle {
		t.Fatalf("expected unknown session to report Idle default, got %v", got)
	}
	tr.mu.Lock()
	_, ok := tr.entries["s1"]
	tr.mu.Unlock()
	if ok {
		t.Fatalf("expected s1 entry removed by Sync")
	}
}
