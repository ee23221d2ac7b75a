// Package cli provides a host frontend that runs the ferrite emulator core
// inside an existing terminal, rendering the screen model through tcell and
// feeding keyboard input back to the child process.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"

	"github.com/ferriteterm/ferrite"
)

// Options configures terminal creation.
type Options struct {
	Cols  int    // terminal width in columns (default 80)
	Rows  int    // terminal height in rows (default 24)
	Shell string // command to run (default $SHELL or /bin/sh)

	Logger *log.Logger
}

// Terminal is a complete terminal emulator session: core screen, parser,
// pty driver, and a tcell renderer.
type Terminal struct {
	screen *ferrite.Screen
	parser *ferrite.Parser
	driver *ferrite.Driver

	tscreen tcell.Screen
	logger  *log.Logger

	redraw chan struct{}
	done   chan struct{}
}

// New creates a terminal session with the given options.
func New(opts Options) *Terminal {
	if opts.Cols <= 0 {
		opts.Cols = ferrite.DefaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = ferrite.DefaultRows
	}
	if opts.Shell == "" {
		opts.Shell = os.Getenv("SHELL")
		if opts.Shell == "" {
			opts.Shell = "/bin/sh"
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	screen := ferrite.NewScreen(opts.Cols, opts.Rows, opts.Logger)
	parser := ferrite.NewParser(screen, opts.Logger)
	spawn := func(rows, cols int) (*ferrite.Pty, error) {
		return ferrite.StartPty(opts.Shell, nil, rows, cols)
	}
	driver := ferrite.NewDriver(screen, parser, ferrite.NopClipboard{}, spawn, opts.Logger)

	t := &Terminal{
		screen: screen,
		parser: parser,
		driver: driver,
		logger: opts.Logger,
		redraw: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	screen.SetDirtyCallback(t.requestRedraw)
	return t
}

// requestRedraw coalesces change notifications into one pending redraw.
func (t *Terminal) requestRedraw() {
	select {
	case t.redraw <- struct{}{}:
	default:
	}
}

// Run starts the session and runs the host event loop until Stop is called
// or the host screen is finalized; no key ends the session. Errors come only
// from setting up the host screen and starting the child.
func (t *Terminal) Run() error {
	ts, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open host screen: %w", err)
	}
	if err := ts.Init(); err != nil {
		return fmt.Errorf("init host screen: %w", err)
	}
	t.tscreen = ts
	defer ts.Fini()

	// size the emulator to the host window
	if w, h := ts.Size(); w > 1 && h > 1 {
		t.screen.Resize(h, w)
	}

	if err := t.driver.Start(); err != nil {
		return err
	}
	defer t.driver.Stop()

	go t.renderLoop()
	t.eventLoop()
	return nil
}

// Stop ends the session.
func (t *Terminal) Stop() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

// eventLoop dispatches host events until the session stops.
func (t *Terminal) eventLoop() {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		ev := t.tscreen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			w, h := ev.Size()
			if w > 1 && h > 1 {
				t.screen.Resize(h, w)
			}
			t.tscreen.Sync()
			t.requestRedraw()
		case *tcell.EventKey:
			if t.handleKey(ev) {
				t.Stop()
				return
			}
		case nil:
			// screen finalized
			return
		}
	}
}
