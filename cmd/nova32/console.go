package main

import (
	"os"

	"golang.org/x/term"
)

// consoleBackend connects the serial port to the controlling terminal.
// Stdin is switched to raw mode so the guest sees individual
// keystrokes; typing Ctrl-C leaves raw mode and exits.
type consoleBackend struct {
	oldState *term.State
	in       chan byte
}

func newConsole() (*consoleBackend, error) {
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return nil, err
	}
	c := &consoleBackend{
		oldState: oldState,
		in:       make(chan byte, 64),
	}
	go c.readLoop()
	return c, nil
}

func (c *consoleBackend) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 1 {
			if buf[0] == 0x03 { // Ctrl-C
				c.Close()
				os.Exit(130)
			}
			c.in <- buf[0]
		}
	}
}

// ReadByte returns a pending keystroke without blocking.
func (c *consoleBackend) ReadByte() (byte, bool) {
	select {
	case b := <-c.in:
		return b, true
	default:
		return 0, false
	}
}

// WriteByte sends one output byte to the terminal. Raw mode disables
// output processing, so newlines need an explicit carriage return.
func (c *consoleBackend) WriteByte(b byte) {
	if b == '\n' {
		os.Stdout.Write([]byte{'\r', '\n'})
		return
	}
	os.Stdout.Write([]byte{b})
}

func (c *consoleBackend) Close() error {
	return term.Restore(int(os.Stdin.Fd()), c.oldState)
}
