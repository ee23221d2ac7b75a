package ferrite

// --- Character output ---

// insertRune writes one decoded code point at the cursor, handling wide
// glyphs, auto-wrap and insert mode.
func (s *Screen) insertRune(r rune) {
	cw := charWidth(r)
	// don't insert zero-width characters
	if cw <= 0 {
		return
	}

	// can fit if just equal cols
	if s.col+cw > s.cols {
		if s.autoWrap {
			s.row++
			s.col = 0
			s.scrollOnOverflow()
		} else {
			// overwrite at the right margin
			s.col = s.cols - cw
			// back off a broken wide glyph
			for s.col > 0 && s.buffer[s.row][s.col].Rune == WideTail {
				s.col--
			}
		}
	}

	if s.insertMode {
		// move characters rightward by the glyph width, losing the tail
		line := s.buffer[s.row]
		for i := s.cols - 1; i >= s.col+cw; i-- {
			line[i] = line[i-cw]
		}
		for i := s.col; i < s.col+cw && i < s.cols; i++ {
			line[i] = blankCell()
		}
	}

	if cw > 1 {
		// place the wide glyph and cw-2 middle spacers
		s.buffer[s.row][s.col] = Cell{Rune: r, Style: s.style}
		s.col++
		for i := 1; i < cw-1 && s.col < s.cols; i++ {
			s.buffer[s.row][s.col] = Cell{Rune: WideTail, Style: s.style}
			s.col++
		}
		// final spacer can't be placed past the margin
		if s.col == s.cols {
			s.markDirty()
			return
		}
		r = WideTail
	}
	s.buffer[s.row][s.col] = Cell{Rune: r, Style: s.style}
	s.col++
	s.markDirty()
}

// scrollOnOverflow handles the cursor stepping past the scrolling bottom
// after LF, IND or auto-wrap: the top row of the region is pushed to
// history, the region shifts up, and the cursor lands on the bottom row.
// This path is the only feeder of the scrollback history.
func (s *Screen) scrollOnOverflow() {
	if s.row == s.scrollBottom+1 {
		s.pushHistory(s.buffer[s.scrollTop])
		copy(s.buffer[s.scrollTop:s.scrollBottom], s.buffer[s.scrollTop+1:s.scrollBottom+1])
		s.buffer[s.scrollBottom] = s.blankRow()
		s.row--
	} else if s.row >= s.rows {
		s.row = s.rows - 1
	}
	s.markDirty()
}

// lineFeed moves the cursor down one row, scrolling at the region bottom.
func (s *Screen) lineFeed() {
	s.row++
	s.scrollOnOverflow()
}

// nextLine implements NEL: line feed plus carriage return.
func (s *Screen) nextLine() {
	s.row++
	s.col = 0
	s.scrollOnOverflow()
}

// reverseIndex implements RI: at the scrolling top the region shifts down
// with a blank new top row; elsewhere the cursor moves up one row.
func (s *Screen) reverseIndex() {
	if s.row == s.scrollTop {
		for i := s.scrollBottom; i > s.scrollTop; i-- {
			s.buffer[i] = s.buffer[i-1]
		}
		s.buffer[s.scrollTop] = s.blankRow()
	} else {
		s.row--
		s.clampCursor()
	}
	s.markDirty()
}

// alignmentTest fills the whole grid with 'E' cells (DECALN).
func (s *Screen) alignmentTest() {
	for i := 0; i < s.rows; i++ {
		for j := 0; j < s.cols; j++ {
			s.buffer[i][j] = Cell{Rune: 'E', Style: DefaultStyle()}
		}
	}
	s.markDirty()
}

// AppendNotice writes a host message on its own row, as the driver does when
// the child process exits.
func (s *Screen) AppendNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col > 0 {
		s.row++
		s.scrollOnOverflow()
		s.col = 0
	}
	for _, r := range msg {
		s.insertRune(r)
	}
	s.row++
	s.scrollOnOverflow()
	s.col = 0
}
