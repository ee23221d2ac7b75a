package ferrite

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Default geometry used when the host does not specify one.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// MaxHistoryLines bounds the scrollback; the oldest rows are dropped first.
const MaxHistoryLines = 5000

// tabInterval is the distance between the initial tab stops.
const tabInterval = 8

// Screen is the terminal screen model: a fixed-geometry grid of cells, the
// scrollback history, the cursor, and the mode state the escape parser
// operates on.
//
// Locking: exported methods take the mutex; lowercase methods assume it is
// held. The parser holds the lock across a whole input chunk so a renderer
// snapshot never observes a half-applied sequence.
type Screen struct {
	mu sync.RWMutex

	cols int
	rows int

	// Grid storage: rows x cols, row 0 at the top. Every row holds exactly
	// cols cells.
	buffer [][]Cell

	// Rows evicted from the top of the scrolling region, oldest first.
	history [][]Cell

	// Cursor. col may transiently equal cols after a write at the right
	// margin; cursor movement commands clamp it back, while LF, IND and RI
	// at the scrolling top leave the column unchanged.
	row int
	col int

	saveRow   int
	saveCol   int
	saveStyle Style

	style Style

	// Scrolling region, inclusive, scrollTop < scrollBottom.
	scrollTop    int
	scrollBottom int

	tabStops []bool

	insertMode   bool
	originMode   bool
	autoWrap     bool
	reverseVideo bool
	showCursor   bool

	// Recognized-but-unimplemented DEC private modes, kept as bare flags.
	privateFlags map[int]bool

	// Host view offset into history, 0 = live screen.
	scrollOffset int

	dirty   bool
	onDirty func()

	// Invoked after a geometry change so the pty can be told the new size.
	onWinch func(rows, cols int)

	// Invoked when DECCOLM switches between 80 and 132 columns.
	onHostWidth func(cols int)

	logger *log.Logger
}

// NewScreen creates a screen with the given geometry.
func NewScreen(cols, rows int, logger *log.Logger) *Screen {
	if cols < 2 {
		cols = DefaultCols
	}
	if rows < 2 {
		rows = DefaultRows
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Screen{
		style:        DefaultStyle(),
		saveStyle:    DefaultStyle(),
		autoWrap:     true,
		showCursor:   true,
		privateFlags: make(map[int]bool),
		logger:       logger,
		dirty:        true,
	}
	s.resizeInternal(rows, cols)
	return s
}

// Size returns the screen geometry.
func (s *Screen) Size() (cols, rows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, s.rows
}

// Cursor returns the cursor position, row-major and 0-based. A pending-wrap
// column is reported clamped to the last column.
func (s *Screen) Cursor() (row, col int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col = s.col
	if col > s.cols-1 {
		col = s.cols - 1
	}
	return s.row, col
}

// SetDirtyCallback sets a callback invoked whenever the screen changes.
func (s *Screen) SetDirtyCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDirty = fn
}

// SetWinchCallback sets a callback invoked after a geometry change.
func (s *Screen) SetWinchCallback(fn func(rows, cols int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWinch = fn
}

// SetHostWidthCallback sets a callback invoked when DECCOLM flips the column
// count between 80 and 132.
func (s *Screen) SetHostWidthCallback(fn func(cols int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHostWidth = fn
}

func (s *Screen) markDirty() {
	s.dirty = true
	if s.onDirty != nil {
		s.onDirty()
	}
}

// IsDirty returns true if the screen changed since the last ClearDirty.
func (s *Screen) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty clears the dirty flag.
func (s *Screen) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// blankCell is the fill used by erases and new rows.
func blankCell() Cell {
	return Cell{Style: DefaultStyle()}
}

func (s *Screen) blankRow() []Cell {
	row := make([]Cell, s.cols)
	for i := range row {
		row[i] = blankCell()
	}
	return row
}

// --- Modes ---

// setInsertMode toggles IRM (CSI 4 h/l).
func (s *Screen) setInsertMode(on bool) {
	s.insertMode = on
}

// setOriginMode toggles DECOM and re-clamps the cursor into the region.
func (s *Screen) setOriginMode(on bool) {
	s.originMode = on
	s.clampCursor()
}

// setAutoWrap toggles DECAWM.
func (s *Screen) setAutoWrap(on bool) {
	s.autoWrap = on
}

// setReverseVideo toggles DECSCNM.
func (s *Screen) setReverseVideo(on bool) {
	s.reverseVideo = on
	s.markDirty()
}

// setShowCursor toggles DECTCEM.
func (s *Screen) setShowCursor(on bool) {
	s.showCursor = on
	s.markDirty()
}

// setPrivateFlag records a recognized-but-unimplemented DEC private mode.
func (s *Screen) setPrivateFlag(mode int, on bool) {
	s.privateFlags[mode] = on
}

// ShowCursor reports cursor visibility.
func (s *Screen) ShowCursor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showCursor
}

// ReverseVideo reports the DECSCNM state.
func (s *Screen) ReverseVideo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reverseVideo
}

// InsertMode reports the IRM state.
func (s *Screen) InsertMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insertMode
}

// --- Tab stops ---

// setTabStop places a tab stop at the cursor column (ESC H).
func (s *Screen) setTabStop() {
	if s.col >= 0 && s.col < len(s.tabStops) {
		s.tabStops[s.col] = true
	}
}

// clearTabStop clears the tab stop at the cursor column (TBC 0).
func (s *Screen) clearTabStop() {
	if s.col >= 0 && s.col < len(s.tabStops) {
		s.tabStops[s.col] = false
	}
}

// clearAllTabStops clears every tab stop (TBC 3).
func (s *Screen) clearAllTabStops() {
	for i := range s.tabStops {
		s.tabStops[i] = false
	}
}

// --- Reset ---

// reset restores the initial terminal state (RIS). The history is kept.
func (s *Screen) reset() {
	for i := range s.buffer {
		s.buffer[i] = s.blankRow()
	}
	s.row, s.col = 0, 0
	s.saveRow, s.saveCol = 0, 0
	s.style = DefaultStyle()
	s.saveStyle = DefaultStyle()
	s.scrollTop = 0
	s.scrollBottom = s.rows - 1
	s.insertMode = false
	s.originMode = false
	s.autoWrap = true
	s.reverseVideo = false
	s.showCursor = true
	s.privateFlags = make(map[int]bool)
	s.tabStops = make([]bool, s.cols)
	for i := 0; i < s.cols; i += tabInterval {
		s.tabStops[i] = true
	}
	s.markDirty()
}

// Reset restores the initial terminal state.
func (s *Screen) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
