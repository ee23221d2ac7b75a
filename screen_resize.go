package ferrite

// --- Resize coordination ---

// resizeInternal applies a geometry change: rows are truncated or padded,
// the scrolling region resets to the full screen, the cursor is clamped and
// the tab stops extend into the new width.
func (s *Screen) resizeInternal(rows, cols int) {
	oldCols := s.cols
	s.rows = rows
	s.cols = cols

	// update scroll margins
	s.scrollTop = 0
	s.scrollBottom = s.rows - 1

	if len(s.buffer) > rows {
		s.buffer = s.buffer[:rows]
	}
	for len(s.buffer) < rows {
		s.buffer = append(s.buffer, nil)
	}
	for i := range s.buffer {
		s.buffer[i] = resizeRow(s.buffer[i], cols)
	}

	if s.row > s.rows-1 {
		s.row = s.rows - 1
	}
	if s.col > s.cols-1 {
		s.col = s.cols - 1
	}

	if len(s.tabStops) > cols {
		s.tabStops = s.tabStops[:cols]
	} else {
		grown := make([]bool, cols)
		copy(grown, s.tabStops)
		s.tabStops = grown
		for i := oldCols; i < cols; i += tabInterval {
			s.tabStops[i] = true
		}
	}

	s.markDirty()
}

// resizeRow pads or truncates one row to the given width.
func resizeRow(row []Cell, cols int) []Cell {
	if len(row) > cols {
		return row[:cols]
	}
	for len(row) < cols {
		row = append(row, blankCell())
	}
	return row
}

// Resize applies a host geometry change and notifies the pty.
func (s *Screen) Resize(rows, cols int) {
	if rows < 2 || cols < 2 {
		return
	}
	s.mu.Lock()
	s.resizeInternal(rows, cols)
	winch := s.onWinch
	s.mu.Unlock()
	if winch != nil {
		winch(rows, cols)
	}
}

// setColumnMode switches between 80 and 132 column mode (DECCOLM) and
// notifies the host so it can adjust the window width.
func (s *Screen) setColumnMode(cols int) {
	s.logger.Debug("column mode change", "cols", cols)
	s.resizeInternal(s.rows, cols)
	if s.onWinch != nil {
		s.onWinch(s.rows, cols)
	}
	if s.onHostWidth != nil {
		s.onHostWidth(cols)
	}
}
