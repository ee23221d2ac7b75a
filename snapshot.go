package ferrite

// Snapshot is a read-only copy of the screen state taken under the lock,
// safe to hand to a renderer without further synchronization.
type Snapshot struct {
	Cols, Rows   int
	CursorRow    int
	CursorCol    int
	ShowCursor   bool
	ReverseVideo bool

	// Lines is the visible view: when the host has scrolled back it is a
	// window over history followed by the top of the live grid, otherwise
	// the live grid itself. Rows narrower than Cols (old history widths)
	// are padded with blanks.
	Lines [][]Cell

	// HistorySize is the total number of scrollback rows.
	HistorySize int

	// ScrollOffset is the host view offset the snapshot was taken at.
	ScrollOffset int
}

// Snapshot copies the visible screen for rendering.
func (s *Screen) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Cols:         s.cols,
		Rows:         s.rows,
		CursorRow:    s.row,
		CursorCol:    s.col,
		ShowCursor:   s.showCursor,
		ReverseVideo: s.reverseVideo,
		HistorySize:  len(s.history),
		ScrollOffset: s.scrollOffset,
	}
	if snap.CursorCol > s.cols-1 {
		snap.CursorCol = s.cols - 1
	}

	snap.Lines = make([][]Cell, s.rows)
	for y := 0; y < s.rows; y++ {
		snap.Lines[y] = s.copyViewRow(y)
	}

	// the cursor is only drawn on the live screen
	if s.scrollOffset > 0 {
		snap.ShowCursor = false
	}
	return snap
}

// copyViewRow returns a copy of visible row y for the current scroll offset,
// padded to the screen width.
func (s *Screen) copyViewRow(y int) []Cell {
	var src []Cell
	idx := y - s.scrollOffset
	if idx >= 0 {
		src = s.buffer[idx]
	} else {
		src = s.history[len(s.history)+idx]
	}
	row := make([]Cell, s.cols)
	for i := range row {
		if i < len(src) {
			row[i] = src[i]
		} else {
			row[i] = blankCell()
		}
	}
	return row
}

// SaveText returns the scrollback followed by the live screen as plain
// text, one line per row, trailing blanks trimmed.
func (s *Screen) SaveText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sb []byte
	for _, row := range s.history {
		sb = append(sb, rowString(row)...)
		sb = append(sb, '\n')
	}
	for _, row := range s.buffer {
		sb = append(sb, rowString(row)...)
		sb = append(sb, '\n')
	}
	return string(sb)
}

func rowString(row []Cell) string {
	runes := make([]rune, 0, len(row))
	for _, c := range row {
		switch c.Rune {
		case WideTail:
		case 0:
			runes = append(runes, ' ')
		default:
			runes = append(runes, c.Rune)
		}
	}
	end := len(runes)
	for end > 0 && runes[end-1] == ' ' {
		end--
	}
	return string(runes[:end])
}

// Cell returns a copy of the live grid cell at (row, col).
func (s *Screen) Cell(row, col int) Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return blankCell()
	}
	return s.buffer[row][col]
}

// RowText returns the live grid row as a string with unset cells rendered
// as spaces and wide-glyph tails skipped. Trailing blanks are trimmed.
func (s *Screen) RowText(row int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= s.rows {
		return ""
	}
	return rowString(s.buffer[row])
}
