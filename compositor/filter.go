package compositor

import "bytes"

// filterPassthrough scans raw PTY bytes for host-terminal control sequences
// that would conflict with the chrome the compositor owns, and strips or
// rewrites them before they reach the real terminal:
//
//   - DECSTBM (CSI <n> ; <m> r) is dropped entirely — the active session
//     never gets to install its own scroll region; the compositor's own
//     region, covering only the viewport rows, stays installed for the
//     whole run.
//   - Alt-screen toggles (CSI ? 47/1047/1049 h|l) are dropped: a child
//     that tries to take over the whole screen would fight the chrome for
//     the bottom rows, so the session's emulator tracks alt-screen
//     state instead and the host terminal never sees the toggle.
//   - Focus reporting (CSI ? 1004 h|l) is dropped; the compositor manages
//     its own.
//   - Kitty keyboard protocol negotiation (CSI > ... u / CSI < u / CSI =
//     ... u) is dropped, since the input router owns raw-mode stdin and a
//     child negotiating its own keyboard protocol would desync it.
//   - Cursor position reports (CSI 6 n) and device attribute queries
//     (CSI c / CSI > c) are dropped: the host terminal would otherwise
//     reply on stdin with a DSR/DA response that the input router has no
//     way to distinguish from a keystroke, desyncing the prefix state
//     machine.
//
// Everything else — cursor movement, SGR, line editing, bell — passes
// through untouched. Each call sees one raw PTY read: pass-through runs
// before the 8ms coalescing window upstream, so a control sequence split
// across two reads is not recognized — its incomplete head is written
// through as-is and its tail arrives as ordinary bytes in the next call.
func filterPassthrough(data []byte) []byte {
	if !bytes.ContainsRune(data, 0x1b) {
		return data
	}

	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		if b != 0x1b || i+1 >= len(data) || data[i+1] != '[' {
			out = append(out, b)
			i++
			continue
		}

		j := i + 2
		for j < len(data) && !isCSIFinal(data[j]) {
			j++
		}
		if j >= len(data) {
			// Incomplete sequence at the end of the chunk: pass the
			// remainder through rather than silently dropping it.
			out = append(out, data[i:]...)
			break
		}

		seq := data[i : j+1]
		params := data[i+2 : j]
		final := data[j]

		if shouldDropCSI(params, final) {
			i = j + 1
			continue
		}
		out = append(out, seq...)
		i = j + 1
	}
	return out
}

func isCSIFinal(b byte) bool {
	return b >= 0x40 && b <= 0x7e
}

func shouldDropCSI(params []byte, final byte) bool {
	switch final {
	case 'r':
		return true // DECSTBM
	case 'h', 'l':
		if len(params) > 0 && params[0] == '?' {
			mode := params[1:]
			if bytes.Equal(mode, []byte("47")) || bytes.Equal(mode, []byte("1047")) ||
				bytes.Equal(mode, []byte("1049")) || bytes.Equal(mode, []byte("1004")) {
				return true
			}
		}
	case 'u':
		if len(params) > 0 && (params[0] == '>' || params[0] == '<' || params[0] == '=') {
			return true // Kitty keyboard protocol negotiation
		}
	case 'n':
		return bytes.Equal(params, []byte("6")) // DSR cursor position report
	case 'c':
		if len(params) == 0 {
			return true // DA
		}
		return params[0] == '>' // secondary DA
	}
	return false
}
