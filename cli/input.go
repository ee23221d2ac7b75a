package cli

import (
	"github.com/gdamore/tcell/v2"
)

// scrollStep is how many history rows a scroll key moves the view.
const scrollStep = 5

// handleKey encodes one host key event as child input. The result reports
// whether the session should end; no key ends it, so it is always false.
func (t *Terminal) handleKey(ev *tcell.EventKey) bool {
	// view scrolling stays in the host
	if ev.Modifiers()&tcell.ModShift != 0 {
		switch ev.Key() {
		case tcell.KeyPgUp:
			t.screen.ScrollBy(scrollStep)
			t.requestRedraw()
			return false
		case tcell.KeyPgDn:
			t.screen.ScrollBy(-scrollStep)
			t.requestRedraw()
			return false
		}
	}

	if data := encodeKey(ev); data != nil {
		t.driver.Send(data)
	}
	return false
}

// encodeKey maps a tcell key event to the byte sequence a child process
// expects from a VT100-style terminal.
func encodeKey(ev *tcell.EventKey) []byte {
	switch ev.Key() {
	case tcell.KeyRune:
		return []byte(string(ev.Rune()))
	case tcell.KeyEnter:
		return []byte{'\r'}
	case tcell.KeyTab:
		return []byte{'\t'}
	case tcell.KeyBacktab:
		return []byte("\x1b[Z")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return []byte{0x7F}
	case tcell.KeyEsc:
		return []byte{0x1B}
	case tcell.KeyUp:
		return []byte("\x1b[A")
	case tcell.KeyDown:
		return []byte("\x1b[B")
	case tcell.KeyRight:
		return []byte("\x1b[C")
	case tcell.KeyLeft:
		return []byte("\x1b[D")
	case tcell.KeyHome:
		return []byte("\x1b[H")
	case tcell.KeyEnd:
		return []byte("\x1b[F")
	case tcell.KeyInsert:
		return []byte("\x1b[2~")
	case tcell.KeyDelete:
		return []byte("\x1b[3~")
	case tcell.KeyPgUp:
		return []byte("\x1b[5~")
	case tcell.KeyPgDn:
		return []byte("\x1b[6~")
	case tcell.KeyF1:
		return []byte("\x1bOP")
	case tcell.KeyF2:
		return []byte("\x1bOQ")
	case tcell.KeyF3:
		return []byte("\x1bOR")
	case tcell.KeyF4:
		return []byte("\x1bOS")
	}

	// Ctrl-A..Ctrl-Z arrive as key codes 0x01-0x1A
	if k := ev.Key(); k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		return []byte{byte(k)}
	}
	if ev.Key() == tcell.KeyCtrlSpace {
		return []byte{0x00}
	}
	return nil
}
