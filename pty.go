package ferrite

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// Pty owns the master side of a pseudo-terminal with a child command
// attached to the slave side.
type Pty struct {
	master *os.File
	cmd    *exec.Cmd
}

// StartPty launches the command on a fresh pseudo-terminal with the given
// geometry.
func StartPty(name string, args []string, rows, cols int) (*Pty, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
	)
	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	return &Pty{master: master, cmd: cmd}, nil
}

// Fd returns the master file descriptor for polling.
func (p *Pty) Fd() int {
	return int(p.master.Fd())
}

// Read reads child output from the master side.
func (p *Pty) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

// Write sends input to the child.
func (p *Pty) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// Resize updates the kernel window size of the pty.
func (p *Pty) Resize(rows, cols int) error {
	return pty.Setsize(p.master, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Kill terminates the child process.
func (p *Pty) Kill() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Wait reaps the child and returns its exit error, if any.
func (p *Pty) Wait() error {
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Wait()
}

// Close closes the master side.
func (p *Pty) Close() error {
	return p.master.Close()
}
