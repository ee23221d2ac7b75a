package cli

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ferriteterm/ferrite"
)

// renderInterval caps the redraw rate while changes are streaming in.
const renderInterval = 16 * time.Millisecond

// renderLoop waits for change notifications and paints snapshots.
func (t *Terminal) renderLoop() {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	pending := true
	for {
		select {
		case <-t.done:
			return
		case <-t.redraw:
			pending = true
		case <-ticker.C:
			if pending {
				pending = false
				t.draw()
			}
		}
	}
}

// draw paints one snapshot of the emulator screen onto the host screen.
func (t *Terminal) draw() {
	snap := t.screen.Snapshot()

	for y := 0; y < snap.Rows; y++ {
		line := snap.Lines[y]
		for x := 0; x < snap.Cols; x++ {
			cell := line[x]
			if cell.Rune == ferrite.WideTail {
				// covered by the wide glyph to its left
				continue
			}
			r := cell.Rune
			if r == 0 {
				r = ' '
			}
			t.tscreen.SetContent(x, y, r, nil, hostStyle(cell.Style, snap.ReverseVideo))
		}
	}

	if snap.ShowCursor {
		t.tscreen.ShowCursor(snap.CursorCol, snap.CursorRow)
	} else {
		t.tscreen.HideCursor()
	}
	t.tscreen.Show()
}

// hostStyle converts a cell rendition to a tcell style, applying the
// screen-wide reverse video mode.
func hostStyle(s ferrite.Style, reverse bool) tcell.Style {
	fore, back := s.Fore, s.Back
	if reverse {
		fore, back = back, fore
	}
	st := tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(int32(fore.R), int32(fore.G), int32(fore.B))).
		Background(tcell.NewRGBColor(int32(back.R), int32(back.G), int32(back.B)))
	if s.Weight == ferrite.WeightBold {
		st = st.Bold(true)
	}
	if s.Blink {
		st = st.Blink(true)
	}
	return st
}
