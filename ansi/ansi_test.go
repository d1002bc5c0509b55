package ansi

import "testing"

func TestVisibleLengthIgnoresSGR(t *testing.T) {
	s := SGR("1", "31") + "hi" + ResetSGR()
	if got := VisibleLength(s); got != 2 {
		t.Fatalf("expected visible length 2, got %d for %q", got, s)
	}
}

func TestStripSGRLeavesPlainText(t *testing.T) {
	if got := StripSGR("plain text"); got != "plain text" {
		t.Fatalf("expected unchanged plain text, got %q", got)
	}
}
