package ferrite

// --- Region scrolling and scrollback ---

// pushHistory appends an evicted row to the scrollback, dropping the oldest
// rows beyond MaxHistoryLines. Rows keep the width they had when evicted.
func (s *Screen) pushHistory(row []Cell) {
	s.history = append(s.history, row)
	if n := len(s.history) - MaxHistoryLines; n > 0 {
		s.history = s.history[n:]
	}
}

// scrollUpRegion shifts the scrolling region up by n lines, blanking the
// bottom (SU). The history is not fed; only the overflow path does that.
func (s *Screen) scrollUpRegion(n int) {
	for i := s.scrollTop; i <= s.scrollBottom; i++ {
		if i+n <= s.scrollBottom {
			s.buffer[i] = s.buffer[i+n]
		} else {
			s.buffer[i] = s.blankRow()
		}
	}
	s.markDirty()
}

// setScrollRegion sets the scrolling margins (DECSTBM), already 0-based.
// An inverted or degenerate region is ignored. On success the cursor moves
// to the region home.
func (s *Screen) setScrollRegion(top, bottom int) bool {
	if bottom <= top {
		return false
	}
	if top < 0 {
		top = 0
	}
	if bottom > s.rows-1 {
		bottom = s.rows - 1
	}
	if bottom <= top {
		return false
	}
	s.scrollTop = top
	s.scrollBottom = bottom
	s.row = s.scrollTop
	s.col = 0
	s.markDirty()
	return true
}

// ScrollRegion returns the scrolling margins, inclusive and 0-based.
func (s *Screen) ScrollRegion() (top, bottom int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrollTop, s.scrollBottom
}

// HistorySize returns the number of scrollback rows.
func (s *Screen) HistorySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// HistoryLine returns a copy of scrollback row k (0 = oldest), or nil when
// out of range.
func (s *Screen) HistoryLine(k int) []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k < 0 || k >= len(s.history) {
		return nil
	}
	row := make([]Cell, len(s.history[k]))
	copy(row, s.history[k])
	return row
}

// ScrollBy adjusts the host view offset into the scrollback: positive n
// scrolls toward older rows, negative toward the live screen.
func (s *Screen) ScrollBy(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollOffset += n
	if s.scrollOffset > len(s.history) {
		s.scrollOffset = len(s.history)
	}
	if s.scrollOffset < 0 {
		s.scrollOffset = 0
	}
	s.markDirty()
}

// ScrollOffset returns the host view offset.
func (s *Screen) ScrollOffset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scrollOffset
}
