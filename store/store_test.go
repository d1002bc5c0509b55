package store

import "testing"

func withSessions(ids ...string) AppState {
	s := initial()
	for _, id := range ids {
		s = Reduce(s, Action{Kind: AddSession, Session: Session{ID: id, Branch: id}})
	}
	return s
}

func TestActiveInvariant(t *testing.T) {
	s := initial()
	if s.ActiveID != "" {
		t.Fatalf("expected no active id on empty state")
	}
	s = withSessions("a", "b")
	if s.ActiveID == "" {
		t.Fatalf("expected active id once sessions exist")
	}
	s = Reduce(s, Action{Kind: RemoveSession, ID: "a"})
	s = Reduce(s, Action{Kind: RemoveSession, ID: "b"})
	if s.ActiveID != "" {
		t.Fatalf("expected no active id once all sessions removed, got %q", s.ActiveID)
	}
}

func TestRemoveActiveMidList(t *testing.T) {
	s := withSessions("a", "b", "c")
	s = Reduce(s, Action{Kind: SetActive, ID: "b"})
	s = Reduce(s, Action{Kind: RemoveSession, ID: "b"})
	if len(s.Sessions) != 2 || s.Sessions[0].ID != "a" || s.Sessions[1].ID != "c" {
		t.Fatalf("unexpected sessions after removal: %+v", s.Sessions)
	}
	if s.ActiveID != "c" {
		t.Fatalf("expected active=c (min(1, len-1)), got %q", s.ActiveID)
	}
}

func TestRemoveSessionIdempotentAfterFirstApplication(t *testing.T) {
	s := withSessions("a", "b")
	s1 := Reduce(s, Action{Kind: RemoveSession, ID: "a"})
	s2 := Reduce(s1, Action{Kind: RemoveSession, ID: "a"})
	if !statesEqual(s1, s2) {
		t.Fatalf("expected RemoveSession idempotent after first application")
	}
}

func TestScrollResetOnSessionListMutation(t *testing.T) {
	s := withSessions("a", "b")
	s = Reduce(s, Action{Kind: ScrollUp, N: 5})
	if s.ScrollOffset != 5 {
		t.Fatalf("expected scroll offset 5, got %d", s.ScrollOffset)
	}
	s = Reduce(s, Action{Kind: NextTab})
	if s.ScrollOffset != 0 {
		t.Fatalf("expected scroll offset reset to 0 after NextTab, got %d", s.ScrollOffset)
	}
}

func TestScrollDownUnderflowClampsToZero(t *testing.T) {
	s := withSessions("a")
	s = Reduce(s, Action{Kind: ScrollUp, N: 3})
	s = Reduce(s, Action{Kind: ScrollDown, N: 5})
	if s.ScrollOffset != 0 {
		t.Fatalf("expected scroll offset clamped to 0, got %d", s.ScrollOffset)
	}
}

func TestJumpToTabOutOfRangeIsNoOp(t *testing.T) {
	s := withSessions("main", "dev")
	before := s.ActiveID
	s2 := Reduce(s, Action{Kind: JumpToTab, Index: 5})
	if s2.ActiveID != before {
		t.Fatalf("expected active id unchanged on out-of-range jump")
	}
	if !statesEqual(s, s2) {
		t.Fatalf("expected no state change event for an out-of-range jump")
	}
}

func TestSetModeIdempotent(t *testing.T) {
	s := withSessions("a")
	s1 := Reduce(s, Action{Kind: SetMode, Mode: ModeCreatingSession})
	s2 := Reduce(s1, Action{Kind: SetMode, Mode: ModeCreatingSession})
	if !statesEqual(s1, s2) {
		t.Fatalf("expected SetMode idempotent when applied twice with the same mode")
	}
}

func TestDispatchOnlyNotifiesOnDistinctState(t *testing.T) {
	st := New()
	calls := 0
	st.Subscribe(func(prev, next AppState) { calls++ })

	st.Dispatch(Action{Kind: AddSession, Session: Session{ID: "a", Branch: "a"}})
	if calls != 1 {
		t.Fatalf("expected 1 notification after AddSession, got %d", calls)
	}

	st.Dispatch(Action{Kind: JumpToTab, Index: 99})
	if calls != 1 {
		t.Fatalf("expected no notification for a no-op dispatch, got %d total", calls)
	}
}
