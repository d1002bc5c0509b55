// Package ptyio adapts a spawned child process to a PTY: the rest of the
// program treats it as an opaque byte-stream child, fed and drained
// through callbacks rather than an event-posting UI loop.
package ptyio

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PTY wraps one spawned child process and its pseudo-terminal.
type PTY struct {
	cmd  *exec.Cmd
	file *os.File

	mu      sync.Mutex
	exited  bool
	onData  func([]byte)
	onExit  func(int)
}

// Spawn starts command in dir with the given size and environment,
// appended to the process's own environment plus TERM/COLORTERM so the
// child renders as a true-color xterm-compatible terminal.
func Spawn(command string, args []string, dir string, cols, rows int, extraEnv []string) (*PTY, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.Env = append(append([]string{}, os.Environ()...), extraEnv...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color", "COLORTERM=truecolor")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, err
	}

	p := &PTY{cmd: cmd, file: f}
	go p.readLoop()
	go p.waitLoop()
	return p, nil
}

// OnData registers the callback invoked with each chunk read from the
// PTY. Must be set before data can be observed; safe to set once at
// construction time from the session manager.
func (p *PTY) OnData(fn func([]byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onData = fn
}

// OnExit registers the callback invoked once the child process exits.
func (p *PTY) OnExit(fn func(code int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = fn
}

func (p *PTY) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := p.file.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.mu.Lock()
			cb := p.onData
			p.mu.Unlock()
			if cb != nil {
				cb(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *PTY) waitLoop() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.mu.Lock()
	p.exited = true
	cb := p.onExit
	p.mu.Unlock()
	if cb != nil {
		cb(code)
	}
}

// Write sends bytes to the child's stdin side of the PTY.
func (p *PTY) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

// Resize changes the PTY's reported window size.
func (p *PTY) Resize(cols, rows int) error {
	return pty.Setsize(p.file, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Kill terminates the child process, best-effort.
func (p *PTY) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Exited reports whether the child has exited.
func (p *PTY) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}
