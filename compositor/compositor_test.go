package compositor

import (
	"bytes"
	"testing"

	"github.com/hydra-mux/hydra/ansi"
	"github.com/hydra-mux/hydra/store"
)

func TestChromeLineWidthMatchesCols(t *testing.T) {
	tabs := []TabInfo{
		{ID: "s1", Branch: "main", Active: true},
		{ID: "s2", Branch: "feature-a"},
	}
	for _, cols := range []int{40, 80, 120} {
		line := chromeLine(store.ModeNormal, tabs, 0, cols)
		if got := ansi.VisibleLength(line); got != cols {
			t.Fatalf("cols=%d: expected visible length %d, got %d for %q", cols, cols, got, line)
		}
	}
}

func TestChromeLineShowsModeTag(t *testing.T) {
	line := chromeLine(store.ModeCreatingSession, nil, 0, 80)
	if !bytes.Contains([]byte(line), []byte("[CREATE]")) {
		t.Fatalf("expected [CREATE] tag in %q", line)
	}
}

func TestChromeLineShowsScrollTag(t *testing.T) {
	line := chromeLine(store.ModeNormal, nil, 12, 80)
	if !bytes.Contains([]byte(line), []byte("[scroll: -12]")) {
		t.Fatalf("expected scroll tag in %q", line)
	}
}

func TestFilterDropsDECSTBM(t *testing.T) {
	out := filterPassthrough([]byte("a\x1b[5;10rb"))
	if string(out) != "ab" {
		t.Fatalf("expected DECSTBM stripped, got %q", out)
	}
}

func TestFilterDropsAltScreenToggle(t *testing.T) {
	out := filterPassthrough([]byte("X\x1b[?1049hY\x1b[?1049lZ"))
	if string(out) != "XYZ" {
		t.Fatalf("expected alt-screen toggles stripped, got %q", out)
	}
}

func TestFilterDropsFocusReporting(t *testing.T) {
	out := filterPassthrough([]byte("a\x1b[?1004hb\x1b[?1004lc"))
	if string(out) != "abc" {
		t.Fatalf("expected focus reporting stripped, got %q", out)
	}
}

func TestFilterDropsCursorPositionReport(t *testing.T) {
	out := filterPassthrough([]byte("a\x1b[6nb"))
	if string(out) != "ab" {
		t.Fatalf("expected DSR cursor position report stripped, got %q", out)
	}
}

func TestFilterDropsDeviceAttributeQueries(t *testing.T) {
	out := filterPassthrough([]byte("a\x1b[cb\x1b[>cc"))
	if string(out) != "abc" {
		t.Fatalf("expected primary and secondary DA queries stripped, got %q", out)
	}
}

func TestFilterKeepsOtherDSRReports(t *testing.T) {
	// CSI 5 n (device status report) is a different DSR variant that
	// doesn't echo a cursor position onto stdin; only "6n" is dropped.
	out := filterPassthrough([]byte("a\x1b[5nb"))
	if string(out) != "a\x1b[5nb" {
		t.Fatalf("expected non-cursor-position DSR to pass through, got %q", out)
	}
}

func TestFilterPassesSGRUntouched(t *testing.T) {
	in := []byte("\x1b[1;31mhello\x1b[0m")
	out := filterPassthrough(in)
	if string(out) != string(in) {
		t.Fatalf("expected SGR to pass through untouched, got %q", out)
	}
}

func TestFilterKeepsIncompleteTrailingSequence(t *testing.T) {
	in := []byte("abc\x1b[5;1")
	out := filterPassthrough(in)
	if string(out) != string(in) {
		t.Fatalf("expected incomplete trailing sequence preserved, got %q", out)
	}
}
