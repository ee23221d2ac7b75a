package ferrite

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestTerm() (*Parser, *Screen) {
	s := NewScreen(DefaultCols, DefaultRows, testLogger())
	p := NewParser(s, testLogger())
	return p, s
}

// replyRecorder captures parser replies bound for the pty.
type replyRecorder struct {
	data []byte
}

func (r *replyRecorder) write(b []byte) {
	r.data = append(r.data, b...)
}

func cursorAt(t *testing.T, s *Screen, row, col int) {
	t.Helper()
	gotRow, gotCol := s.Cursor()
	if gotRow != row || gotCol != col {
		t.Errorf("cursor at (%d,%d), want (%d,%d)", gotRow, gotCol, row, col)
	}
}

func cellRune(t *testing.T, s *Screen, row, col int, want rune) {
	t.Helper()
	if got := s.Cell(row, col).Rune; got != want {
		t.Errorf("cell (%d,%d) = %q, want %q", row, col, got, want)
	}
}

func TestPlainTextAndNewline(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("hi\r\n")
	cellRune(t, s, 0, 0, 'h')
	cellRune(t, s, 0, 1, 'i')
	cursorAt(t, s, 1, 0)
}

func TestSGRColorThenReset(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[31mA\x1b[0mB")
	a := s.Cell(0, 0)
	if a.Rune != 'A' || a.Style.Fore != PaletteColor(ColorRed) {
		t.Errorf("cell A = %+v, want red 'A'", a)
	}
	b := s.Cell(0, 1)
	if b.Rune != 'B' || b.Style != DefaultStyle() {
		t.Errorf("cell B = %+v, want default 'B'", b)
	}
	cursorAt(t, s, 0, 2)
}

func TestDeviceStatusReport(t *testing.T) {
	p, _ := newTestTerm()
	var rec replyRecorder
	p.SetReplyCallback(rec.write)
	p.ParseString("\x1b[5n")
	if got := string(rec.data); got != "\x1b[0n" {
		t.Errorf("DSR 5 reply = %q, want ESC[0n", got)
	}
}

func TestCursorPositionReport(t *testing.T) {
	p, _ := newTestTerm()
	var rec replyRecorder
	p.SetReplyCallback(rec.write)
	p.ParseString("abc\x1b[6n")
	if got := string(rec.data); got != "\x1b[1;4R" {
		t.Errorf("CPR reply = %q, want ESC[1;4R", got)
	}
}

func TestDeviceAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"primary empty", "\x1b[c", "\x1b[?1;2c"},
		{"primary zero", "\x1b[0c", "\x1b[?1;2c"},
		{"secondary", "\x1b[>c", "\x1b[>0;276;0c"},
		{"secondary zero", "\x1b[>0c", "\x1b[>0;276;0c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestTerm()
			var rec replyRecorder
			p.SetReplyCallback(rec.write)
			p.ParseString(tt.input)
			if got := string(rec.data); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScrollIntoHistory(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString(strings.Repeat("x\r\n", DefaultRows))
	if got := s.HistorySize(); got != 1 {
		t.Fatalf("history size = %d, want 1", got)
	}
	p.ParseString("x\r\n")
	if got := s.HistorySize(); got != 2 {
		t.Fatalf("history size = %d, want 2", got)
	}
	first := s.HistoryLine(0)
	if first[0].Rune != 'x' {
		t.Errorf("history[0][0] = %q, want 'x'", first[0].Rune)
	}
	for i := 0; i < DefaultCols; i++ {
		if !s.Cell(DefaultRows-1, i).IsBlank() {
			t.Fatalf("bottom row cell %d not blank", i)
		}
	}
	cursorAt(t, s, DefaultRows-1, 0)
}

func TestNoWrapOverwritesLastColumn(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[?7l" + strings.Repeat("x", 200))
	for i := 0; i < DefaultCols; i++ {
		cellRune(t, s, 0, i, 'x')
	}
	cursorAt(t, s, 0, 79)
	if s.HistorySize() != 0 {
		t.Errorf("history grew with wrap disabled")
	}
	cellRune(t, s, 1, 0, 0)
}

func TestWrapAdvancesRow(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString(strings.Repeat("x", DefaultCols+1))
	cellRune(t, s, 0, DefaultCols-1, 'x')
	cellRune(t, s, 1, 0, 'x')
	cursorAt(t, s, 1, 1)
}

func TestSaveRestoreCursorAndStyle(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[31m\x1b[5;10H\x1b7")
	p.ParseString("\x1b[0m\x1b[Hsomething\x1b[2J")
	p.ParseString("\x1b8")
	cursorAt(t, s, 4, 9)
	p.ParseString("Z")
	if got := s.Cell(4, 9); got.Style.Fore != PaletteColor(ColorRed) {
		t.Errorf("restored style fore = %v, want red", got.Style.Fore)
	}
}

func TestSaveRestoreViaCSI(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[3;7H\x1b[s\x1b[H\x1b[u")
	cursorAt(t, s, 2, 6)
}

func TestSGRSwapInvolution(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[7m\x1b[7mA")
	if got := s.Cell(0, 0).Style; got != DefaultStyle() {
		t.Errorf("double swap style = %+v, want default", got)
	}
	// 7 then 27 also restores
	p.ParseString("\x1b[7m\x1b[27mB")
	if got := s.Cell(0, 1).Style; got != DefaultStyle() {
		t.Errorf("7 then 27 style = %+v, want default", got)
	}
}

func TestSGRTable(t *testing.T) {
	def := DefaultStyle()
	swapped := def.Swap()
	tests := []struct {
		name  string
		input string
		want  Style
	}{
		{"bold", "\x1b[1m", Style{Fore: def.Fore, Back: def.Back, Weight: WeightBold}},
		{"bold off", "\x1b[1;22m", def},
		{"blink", "\x1b[5m", Style{Fore: def.Fore, Back: def.Back, Blink: true}},
		{"rapid blink", "\x1b[6m", Style{Fore: def.Fore, Back: def.Back, Blink: true}},
		{"blink off", "\x1b[5;25m", def},
		{"swap", "\x1b[7m", swapped},
		{"fore green", "\x1b[32m", Style{Fore: PaletteColor(ColorGreen), Back: def.Back}},
		{"back blue", "\x1b[44m", Style{Fore: def.Fore, Back: PaletteColor(ColorBlue)}},
		{"bright fore", "\x1b[96m", Style{Fore: PaletteColor(ColorBrightCyan), Back: def.Back}},
		{"bright back", "\x1b[103m", Style{Fore: def.Fore, Back: PaletteColor(ColorBrightYellow)}},
		{"default fore", "\x1b[32;39m", def},
		{"default back", "\x1b[44;49m", def},
		{"fore 256", "\x1b[38;5;196m", Style{Fore: Color256(196), Back: def.Back}},
		{"back 256", "\x1b[48;5;21m", Style{Fore: def.Fore, Back: Color256(21)}},
		{"fore rgb", "\x1b[38;2;1;2;3m", Style{Fore: RGB{1, 2, 3}, Back: def.Back}},
		{"back rgb", "\x1b[48;2;9;8;7m", Style{Fore: def.Fore, Back: RGB{9, 8, 7}}},
		{"underline ignored", "\x1b[4m", def},
		{"malformed extended", "\x1b[38;1m", def},
		{"truncated 256", "\x1b[38;5m", def},
		{"unknown ignored", "\x1b[73m", def},
		{"reset mid stream", "\x1b[1;31;0m", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := newTestTerm()
			p.ParseString(tt.input + "A")
			if got := s.Cell(0, 0).Style; got != tt.want {
				t.Errorf("style = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEraseDisplayIdempotent(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("hello\x1b[2J")
	once := s.Snapshot()
	p.ParseString("\x1b[2J")
	twice := s.Snapshot()
	for y := 0; y < once.Rows; y++ {
		for x := 0; x < once.Cols; x++ {
			if once.Lines[y][x] != twice.Lines[y][x] {
				t.Fatalf("cell (%d,%d) differs after second ED", y, x)
			}
		}
	}
}

func TestCursorVisibilityModes(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[?25l")
	if s.ShowCursor() {
		t.Error("cursor still visible after DECTCEM reset")
	}
	p.ParseString("\x1b[?25h")
	if !s.ShowCursor() {
		t.Error("cursor hidden after DECTCEM set")
	}
}

func TestReverseIndexAtTop(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("top\r\nsecond\x1b[H\x1bM")
	cursorAt(t, s, 0, 0)
	if got := s.RowText(1); got != "top" {
		t.Errorf("row 1 = %q, want shifted 'top'", got)
	}
	if got := s.RowText(0); got != "" {
		t.Errorf("row 0 = %q, want blank", got)
	}
}

func TestReverseIndexWithinRegion(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[5;10r") // region rows 4..9
	p.ParseString("\x1b[5;1Hband")
	p.ParseString("\x1b[5;1H\x1bM") // at region top: shift region down
	if got := s.RowText(5); got != "band" {
		t.Errorf("row 5 = %q, want 'band'", got)
	}
	if got := s.RowText(4); got != "" {
		t.Errorf("row 4 = %q, want blank", got)
	}
	// the cursor stays on the region top
	cursorAt(t, s, 4, 0)
}

func TestOriginModeCursorAddressing(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[5;10r\x1b[?6h\x1b[H")
	cursorAt(t, s, 4, 0)
	p.ParseString("\x1b[2;3H")
	cursorAt(t, s, 5, 2)
	// clamped into the region
	p.ParseString("\x1b[99;1H")
	cursorAt(t, s, 9, 0)
	p.ParseString("\x1b[?6l\x1b[H")
	cursorAt(t, s, 0, 0)
}

func TestScrollRegionRejectsDegenerate(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[7;7r")
	top, bottom := s.ScrollRegion()
	if top != 0 || bottom != DefaultRows-1 {
		t.Errorf("region = (%d,%d), want untouched full screen", top, bottom)
	}
	p.ParseString("\x1b[9;3r")
	top, bottom = s.ScrollRegion()
	if top != 0 || bottom != DefaultRows-1 {
		t.Errorf("inverted region accepted: (%d,%d)", top, bottom)
	}
}

func TestRegionScrollFeedsHistoryOnlyFromTop(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[1;5rkeep\r\n")
	p.ParseString("\x1b[5;1H") // region bottom
	for i := 0; i < 3; i++ {
		p.ParseString("line\n")
	}
	if got := s.HistorySize(); got != 3 {
		t.Errorf("history size = %d, want 3", got)
	}
	// SU must not feed history
	before := s.HistorySize()
	p.ParseString("\x1b[2S")
	if got := s.HistorySize(); got != before {
		t.Errorf("SU grew history from %d to %d", before, got)
	}
}

func TestCursorMovementClamps(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[999;999H")
	cursorAt(t, s, DefaultRows-1, DefaultCols-1)
	p.ParseString("\x1b[999A")
	cursorAt(t, s, 0, DefaultCols-1)
	p.ParseString("\x1b[999D")
	cursorAt(t, s, 0, 0)
	p.ParseString("\x1b[999B")
	cursorAt(t, s, DefaultRows-1, 0)
	p.ParseString("\x1b[999C")
	cursorAt(t, s, DefaultRows-1, DefaultCols-1)
}

func TestCursorUpStopsAtScrollTop(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[5;10r") // top = row 4
	p.ParseString("\x1b[8;1H\x1b[99A")
	cursorAt(t, s, 4, 0)
	// already above the region: free to move
	p.ParseString("\x1b[?6l")
	s.mu.Lock()
	s.row, s.col = 2, 0
	s.mu.Unlock()
	p.ParseString("\x1b[9A")
	cursorAt(t, s, 0, 0)
}

func TestTabStops(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("a\tb\tc")
	cellRune(t, s, 0, 0, 'a')
	cellRune(t, s, 0, 8, 'b')
	cellRune(t, s, 0, 16, 'c')

	// custom stop via HTS
	p.ParseString("\r\n\x1b[4G\x1bH\r\t")
	cursorAt(t, s, 1, 3)

	// TBC 0 clears it again
	p.ParseString("\x1b[g\r\t")
	cursorAt(t, s, 1, 8)

	// TBC 3 clears everything: tab runs to the last column
	p.ParseString("\x1b[3g\r\t")
	cursorAt(t, s, 1, DefaultCols-1)
}

func TestInsertMode(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("abc\x1b[H\x1b[4hX")
	if got := s.RowText(0); got != "Xabc" {
		t.Errorf("row = %q, want 'Xabc'", got)
	}
	p.ParseString("\x1b[4l\x1b[HY")
	if got := s.RowText(0); got != "Yabc" {
		t.Errorf("row = %q, want 'Yabc' after IRM reset", got)
	}
}

func TestEditOperations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		row   int
		want  string
	}{
		{"DCH", "abcdef\x1b[3;1H\x1b[1;1H\x1b[2P", 0, "cdef"},
		{"ICH", "abcd\x1b[1;1H\x1b[2@", 0, "  abcd"},
		{"ECH", "abcdef\x1b[1;2H\x1b[3X", 0, "a   ef"},
		{"EL right", "abcdef\x1b[1;3H\x1b[K", 0, "ab"},
		{"EL left", "abcdef\x1b[1;3H\x1b[1K", 0, "   def"},
		{"EL all", "abcdef\x1b[2K", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := newTestTerm()
			p.ParseString(tt.input)
			if got := s.RowText(tt.row); got != tt.want {
				t.Errorf("row %d = %q, want %q", tt.row, got, tt.want)
			}
		})
	}
}

func TestInsertDeleteLines(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("one\r\ntwo\r\nthree")
	p.ParseString("\x1b[2;1H\x1b[1L")
	if s.RowText(1) != "" || s.RowText(2) != "two" || s.RowText(3) != "three" {
		t.Errorf("after IL rows = %q/%q/%q", s.RowText(1), s.RowText(2), s.RowText(3))
	}
	p.ParseString("\x1b[2;1H\x1b[1M")
	if s.RowText(1) != "two" || s.RowText(2) != "three" {
		t.Errorf("after DL rows = %q/%q", s.RowText(1), s.RowText(2))
	}
	// outside the scrolling region both are ignored
	p.ParseString("\x1b[5;10r\x1b[12;1H\x1b[5L")
	if s.RowText(1) != "two" {
		t.Errorf("IL outside region changed the grid")
	}
}

func TestAlignmentTest(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b#8")
	cellRune(t, s, 0, 0, 'E')
	cellRune(t, s, DefaultRows-1, DefaultCols-1, 'E')
}

func TestFullReset(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[31m\x1b[?6h\x1b[5;10rjunk\x1bc")
	cursorAt(t, s, 0, 0)
	top, bottom := s.ScrollRegion()
	if top != 0 || bottom != DefaultRows-1 {
		t.Errorf("region = (%d,%d) after RIS", top, bottom)
	}
	p.ParseString("A")
	if got := s.Cell(0, 0).Style; got != DefaultStyle() {
		t.Errorf("style after RIS = %+v", got)
	}
}

func TestOSCClipboard(t *testing.T) {
	p, _ := newTestTerm()
	var copied string
	pasteRequested := false
	p.SetCopyCallback(func(b64 string) { copied = b64 })
	p.SetPasteRequestCallback(func() { pasteRequested = true })

	p.ParseString("\x1b]52;c;aGVsbG8=\x07")
	if copied != "aGVsbG8=" {
		t.Errorf("copied = %q, want base64 payload", copied)
	}
	p.ParseString("\x1b]52;c;?\x1b\\")
	if !pasteRequested {
		t.Error("paste request callback not invoked")
	}
}

func TestOSCColorReports(t *testing.T) {
	p, _ := newTestTerm()
	var rec replyRecorder
	p.SetReplyCallback(rec.write)
	p.ParseString("\x1b]10;?\x1b\\")
	if got := string(rec.data); got != "\x1b]10;rgb:0/0/0\x1b\\" {
		t.Errorf("foreground report = %q", got)
	}
	rec.data = nil
	p.ParseString("\x1b]11;?\x07")
	if got := string(rec.data); got != "\x1b]11;rgb:f/f/f\x1b\\" {
		t.Errorf("background report = %q", got)
	}
}

func TestDCSDiscarded(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1bPsome payload\x1b\\after")
	if got := s.RowText(0); got != "after" {
		t.Errorf("row = %q, DCS payload leaked", got)
	}
}

func TestUnknownSequencesAreHarmless(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[999z\x1b[?1049h\x1b[>1m\x1b[2004h\x1bZok")
	if got := s.RowText(0); got != "ok" {
		t.Errorf("row = %q, want 'ok'", got)
	}
	cursorAt(t, s, 0, 2)
}

func TestColumnModeResize(t *testing.T) {
	p, s := newTestTerm()
	var hostWidth int
	s.SetHostWidthCallback(func(cols int) { hostWidth = cols })
	p.ParseString("\x1b[?3h")
	cols, rows := s.Size()
	if cols != 132 || rows != DefaultRows {
		t.Errorf("size = %dx%d, want 132x%d", cols, rows, DefaultRows)
	}
	if hostWidth != 132 {
		t.Errorf("host width notify = %d, want 132", hostWidth)
	}
	p.ParseString("\x1b[?3l")
	cols, _ = s.Size()
	if cols != 80 {
		t.Errorf("cols = %d after DECCOLM reset, want 80", cols)
	}
}

func TestWideCharacters(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("中a")
	cellRune(t, s, 0, 0, '中')
	cellRune(t, s, 0, 1, WideTail)
	cellRune(t, s, 0, 2, 'a')
	cursorAt(t, s, 0, 3)
}

func TestWideCharacterWrapsAtMargin(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[1;80H中")
	cellRune(t, s, 1, 0, '中')
	cellRune(t, s, 1, 1, WideTail)
	cursorAt(t, s, 1, 2)
}

func TestWideCharacterNoWrapBacksOff(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[?7l\x1b[1;80H中")
	cellRune(t, s, 0, 78, '中')
	cellRune(t, s, 0, 79, WideTail)
	cursorAt(t, s, 0, 79)
}

func TestOverwritingBrokenWideGlyph(t *testing.T) {
	p, s := newTestTerm()
	p.ParseString("\x1b[?7l\x1b[1;78H中") // wide at 77/78
	p.ParseString("\x1b[1;80H中")         // lands on the tail at 78 and backs off
	cellRune(t, s, 0, 77, '中')
	cellRune(t, s, 0, 78, WideTail)
	cellRune(t, s, 0, 79, 0)
}

func TestInvariantsAfterByteSoup(t *testing.T) {
	inputs := []string{
		"plain text\r\nwith lines\r\n",
		"\x1b[31;44;1mstyled\x1b[0m",
		"\x1b[5;10r\x1b[?6h\x1b[H" + strings.Repeat("wrap around the region\n", 30),
		"\x1b[2J\x1b[999;999H\x1b[5L\x1b[5M\x1b[10P\x1b[10@\x1b[10X",
		"\xff\xfe\x80 garbage \x1b[ \x1b]no terminator yet",
		strings.Repeat("中", 200),
		"\x1b[?7l" + strings.Repeat("overflow", 50),
	}
	for i, in := range inputs {
		p, s := newTestTerm()
		p.ParseString(in)
		checkInvariants(t, s, i)
	}
}

func checkInvariants(t *testing.T, s *Screen, tag int) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.buffer) != s.rows {
		t.Fatalf("case %d: %d rows stored, want %d", tag, len(s.buffer), s.rows)
	}
	for y, row := range s.buffer {
		if len(row) != s.cols {
			t.Fatalf("case %d: row %d has %d cells, want %d", tag, y, len(row), s.cols)
		}
		for x, c := range row {
			if c.Rune == WideTail {
				if x == 0 {
					t.Fatalf("case %d: dangling wide tail at row %d col 0", tag, y)
				}
				// walk left to the head
				k := x - 1
				for k > 0 && row[k].Rune == WideTail {
					k--
				}
				if w := charWidth(row[k].Rune); w <= 1 || k+w <= x {
					t.Fatalf("case %d: tail at (%d,%d) has no wide head", tag, y, x)
				}
			}
		}
	}
	if s.row < 0 || s.row >= s.rows {
		t.Fatalf("case %d: cursor row %d out of range", tag, s.row)
	}
	if s.col < 0 || s.col > s.cols {
		t.Fatalf("case %d: cursor col %d out of range", tag, s.col)
	}
	if len(s.history) > MaxHistoryLines {
		t.Fatalf("case %d: history %d exceeds limit", tag, len(s.history))
	}
	if s.scrollTop < 0 || s.scrollTop >= s.scrollBottom || s.scrollBottom > s.rows-1 {
		t.Fatalf("case %d: bad region (%d,%d)", tag, s.scrollTop, s.scrollBottom)
	}
	if len(s.tabStops) != s.cols {
		t.Fatalf("case %d: %d tab stops, want %d", tag, len(s.tabStops), s.cols)
	}
}

func TestHistoryBounded(t *testing.T) {
	p, s := newTestTerm()
	s.Resize(4, 20)
	p.ParseString(strings.Repeat("\n", MaxHistoryLines+500))
	if got := s.HistorySize(); got != MaxHistoryLines {
		t.Errorf("history size = %d, want %d", got, MaxHistoryLines)
	}
}
