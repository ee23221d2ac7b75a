package ferrite

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// pollTimeoutMs is the read-loop poll timeout; it also paces the clipboard
// paste check.
const pollTimeoutMs = 100

const readBufferSize = 1024

// exitNotice is printed on its own row when the child exits.
const exitNotice = "[program exited, restarting]"

// Driver owns the pty and pumps its output through the parser. It forwards
// reply sequences and host input back to the child, and recovers from child
// exit by respawning.
type Driver struct {
	screen *Screen
	parser *Parser
	clip   Clipboard
	logger *log.Logger

	spawn func(rows, cols int) (*Pty, error)

	mu   sync.Mutex // guards pty across respawn
	pty  *Pty
	done chan struct{}
}

// NewDriver wires a driver to the given screen and parser. spawn is invoked
// for the initial child and again after each child exit.
func NewDriver(screen *Screen, parser *Parser, clip Clipboard, spawn func(rows, cols int) (*Pty, error), logger *log.Logger) *Driver {
	if clip == nil {
		clip = NopClipboard{}
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &Driver{
		screen: screen,
		parser: parser,
		clip:   clip,
		spawn:  spawn,
		logger: logger,
		done:   make(chan struct{}),
	}
	parser.SetReplyCallback(d.WriteFull)
	parser.SetCopyCallback(clip.Copy)
	parser.SetPasteRequestCallback(clip.RequestPaste)
	screen.SetWinchCallback(func(rows, cols int) {
		d.mu.Lock()
		p := d.pty
		d.mu.Unlock()
		if p != nil {
			if err := p.Resize(rows, cols); err != nil {
				d.logger.Error("pty resize failed", "err", err)
			}
		}
	})
	return d
}

// Start spawns the child and begins the read loop.
func (d *Driver) Start() error {
	cols, rows := d.screen.Size()
	p, err := d.spawn(rows, cols)
	if err != nil {
		return fmt.Errorf("spawn child: %w", err)
	}
	d.mu.Lock()
	d.pty = p
	d.mu.Unlock()
	go d.loop()
	return nil
}

// Stop terminates the read loop and the child.
func (d *Driver) Stop() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.mu.Lock()
	p := d.pty
	d.pty = nil
	d.mu.Unlock()
	if p != nil {
		p.Kill()
		p.Close()
	}
}

// Send forwards host input (keystrokes, pastes) to the child.
func (d *Driver) Send(data []byte) {
	d.WriteFull(data)
}

// loop polls the pty, feeds the parser, and watches for child exit and
// pending pastes.
func (d *Driver) loop() {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-d.done:
			return
		default:
		}

		d.mu.Lock()
		p := d.pty
		d.mu.Unlock()
		if p == nil {
			return
		}

		fds := []unix.PollFd{{Fd: int32(p.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil && !errors.Is(err, unix.EINTR) {
			d.logger.Error("poll failed", "err", err)
			return
		}

		if n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			r, err := unix.Read(p.Fd(), buf)
			if r > 0 {
				d.logger.Debug("recv", "data", prettyBytes(buf[:r]))
				d.parser.Parse(buf[:r])
			} else if errors.Is(err, syscall.EIO) || r == 0 {
				d.handleChildExit(p)
			} else if err != nil && !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) {
				d.logger.Error("pty read failed", "err", err)
				d.handleChildExit(p)
			}
		}

		// check if anything to paste
		if paste, ok := d.clip.Poll(); ok {
			d.logger.Info("paste from clipboard", "size", len(paste))
			d.WriteFull([]byte("\x1b]52;c;" + paste + "\x1b\\"))
		}
	}
}

// handleChildExit closes the dead pty, prints a notice and respawns.
func (d *Driver) handleChildExit(old *Pty) {
	d.logger.Info("child exited, restarting")

	d.mu.Lock()
	d.pty = nil
	d.mu.Unlock()
	old.Close()
	go old.Wait()

	d.screen.AppendNotice(exitNotice)

	cols, rows := d.screen.Size()
	p, err := d.spawn(rows, cols)
	if err != nil {
		d.logger.Error("respawn failed", "err", err)
		return
	}
	d.mu.Lock()
	d.pty = p
	d.mu.Unlock()
}

// WriteFull writes all bytes to the pty, retrying short writes. With no
// child attached it is a no-op.
func (d *Driver) WriteFull(data []byte) {
	d.mu.Lock()
	p := d.pty
	d.mu.Unlock()
	if p == nil {
		return
	}

	d.logger.Debug("send", "data", prettyBytes(data))

	written := 0
	for written < len(data) {
		n, err := p.Write(data[written:])
		if err != nil {
			d.logger.Error("pty write failed", "err", err)
			return
		}
		written += n
	}
}

// prettyBytes renders a byte chunk with control bytes hex-escaped, for logs.
func prettyBytes(data []byte) string {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b >= 127 || b < 32 {
			out = append(out, []byte(fmt.Sprintf("\\x%02x", b))...)
		} else {
			out = append(out, b)
		}
	}
	return string(out)
}
