package ferrite

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Parser states
type escapeState int

const (
	stateGround escapeState = iota
	stateEscape             // After ESC
	stateCSI                // After ESC [
	stateOSC                // After ESC ]
	stateDCS                // After ESC P
)

// Parser classifies a pty byte stream into control functions and printable
// text, and applies the effects to a Screen. Replies (device attributes,
// cursor reports, clipboard) are emitted through the reply callback.
type Parser struct {
	screen *Screen
	state  escapeState

	// Accumulated parameter and intermediate bytes of the sequence in
	// flight. For CSI sequences a leading '?' or '>' marker is kept here.
	escBuf []byte

	utf8 utf8Decoder

	reply          func([]byte)
	onCopy         func(base64 string)
	onPasteRequest func()

	logger *log.Logger
}

// NewParser creates a parser bound to the given screen.
func NewParser(screen *Screen, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		screen: screen,
		state:  stateGround,
		escBuf: make([]byte, 0, 64),
		logger: logger,
	}
}

// SetReplyCallback sets the function receiving reply byte sequences bound
// for the child process.
func (p *Parser) SetReplyCallback(fn func([]byte)) {
	p.reply = fn
}

// SetCopyCallback sets the function receiving OSC 52 clipboard writes
// (base64 payload).
func (p *Parser) SetCopyCallback(fn func(string)) {
	p.onCopy = fn
}

// SetPasteRequestCallback sets the function invoked on an OSC 52 clipboard
// read request.
func (p *Parser) SetPasteRequestCallback(fn func()) {
	p.onPasteRequest = fn
}

// Parse processes a chunk of pty output. The screen lock is held for the
// whole chunk, so concurrent snapshots see whole sequences only.
func (p *Parser) Parse(data []byte) {
	p.screen.mu.Lock()
	defer p.screen.mu.Unlock()
	for _, b := range data {
		p.processByte(b)
	}
}

// ParseString processes a string of pty output.
func (p *Parser) ParseString(data string) {
	p.Parse([]byte(data))
}

func (p *Parser) send(data []byte) {
	if p.reply != nil {
		p.reply(data)
	}
}

func (p *Parser) processByte(b byte) {
	switch p.state {
	case stateGround:
		p.handleGround(b)
	case stateEscape:
		p.handleEscape(b)
	case stateCSI:
		p.handleCSI(b)
	case stateOSC:
		p.handleOSC(b)
	case stateDCS:
		p.handleDCS(b)
	}
}

func (p *Parser) handleGround(b byte) {
	// A multi-byte UTF-8 sequence in flight consumes every byte; an invalid
	// continuation silently drops the partial code point.
	if p.utf8.pending() {
		if r, ok := p.utf8.feed(b); ok {
			p.screen.insertRune(r)
		}
		return
	}

	switch {
	case b >= 0x20 && b <= 0x7F:
		// printable ASCII
		p.screen.insertRune(rune(b))
	case b >= 0xC2:
		// UTF-8 lead byte
		p.utf8.feed(b)
	case b == 0x0D: // CR
		p.screen.carriageReturn()
	case b == 0x0A: // LF
		p.screen.lineFeed()
	case b == 0x0B || b == 0x0C: // VT, FF - treated as line feed
		p.screen.lineFeed()
	case b == 0x08: // BS
		p.screen.backspace()
	case b == 0x09: // HT
		p.screen.tab()
	case b == 0x1B: // ESC
		p.escBuf = p.escBuf[:0]
		p.state = stateEscape
	default:
		// NUL, BEL, remaining C0 bytes and stray continuations are ignored
	}
}

func (p *Parser) handleEscape(b byte) {
	empty := len(p.escBuf) == 0
	switch {
	case b == '[' && empty: // CSI
		p.state = stateCSI
	case b == ']' && empty: // OSC
		p.state = stateOSC
	case b == 'P' && empty: // DCS
		p.state = stateDCS
	case b == '=' && empty: // DECKPAM - alternate keypad mode
		p.state = stateGround
	case b == '>' && empty: // DECKPNM - numeric keypad mode
		p.state = stateGround
	case b == 'A' && empty: // cursor up
		p.screen.row--
		p.screen.clampCursor()
		p.state = stateGround
	case b == 'B' && empty: // cursor down
		p.screen.row++
		p.screen.clampCursor()
		p.state = stateGround
	case b == 'C' && empty: // cursor right
		p.screen.col++
		p.screen.clampCursor()
		p.state = stateGround
	case b == 'D' && empty: // IND - index, scrolls at the region bottom
		p.screen.row++
		p.screen.scrollOnOverflow()
		p.state = stateGround
	case b == 'E' && empty: // NEL - next line
		p.screen.nextLine()
		p.state = stateGround
	case b == 'H' && empty: // HTS - set tab stop at current column
		p.screen.setTabStop()
		p.state = stateGround
	case b == 'M' && empty: // RI - reverse index
		p.screen.reverseIndex()
		p.state = stateGround
	case b == '7' && empty: // DECSC - save cursor
		p.screen.saveCursor()
		p.state = stateGround
	case b == '8' && empty: // DECRC - restore cursor
		p.screen.restoreCursor()
		p.state = stateGround
	case b == '8' && string(p.escBuf) == "#": // DECALN - fill screen with E
		p.screen.alignmentTest()
		p.state = stateGround
	case b == 'c' && empty: // RIS - full reset
		p.screen.reset()
		p.state = stateGround
	case b == '#' || b == '(' || b == ')':
		// intermediate byte, sequence continues
		p.escBuf = append(p.escBuf, b)
	default:
		p.logger.Debug("unknown escape sequence", "buffer", string(p.escBuf), "final", string(rune(b)))
		p.state = stateGround
	}
}

// paramInt parses the leading integer of the escape buffer, returning def
// when the buffer is empty.
func (p *Parser) paramInt(def int) int {
	s := string(p.escBuf)
	if s == "" {
		return def
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return def
	}
	return n
}

func (p *Parser) handleCSI(b byte) {
	switch {
	case b >= 0x40 && b <= 0x7E:
		// final byte
		p.executeCSI(b)
		p.state = stateGround
	case b >= 0x20 && b <= 0x3F:
		// parameter bytes in [0x30, 0x3F], intermediate bytes in [0x20, 0x2F]
		p.escBuf = append(p.escBuf, b)
	default:
		p.logger.Debug("invalid byte in CSI", "buffer", string(p.escBuf), "byte", b)
		p.state = stateGround
	}
}

func (p *Parser) executeCSI(final byte) {
	s := p.screen
	buf := string(p.escBuf)
	switch {
	case final == 'A': // CUU - cursor up, stops at the scroll top
		s.cursorUp(p.paramInt(1))

	case final == 'B': // CUD - cursor down, stops at the scroll bottom
		s.cursorDown(p.paramInt(1))

	case final == 'C': // CUF - cursor forward
		s.cursorForward(max(p.paramInt(1), 1))

	case final == 'D': // CUB - cursor backward
		s.cursorBackward(max(p.paramInt(1), 1))

	case final == 'E': // CNL - cursor to start of line, n down
		s.row += p.paramInt(1)
		s.col = 0
		s.clampCursor()
		s.markDirty()

	case final == 'F': // CPL - cursor to start of line, n up
		s.row -= p.paramInt(1)
		s.col = 0
		s.clampCursor()
		s.markDirty()

	case final == 'G': // CHA - cursor to column
		s.col = p.paramInt(1) - 1
		s.clampCursor()
		s.markDirty()

	case final == 'H' || final == 'f': // CUP/HVP - cursor position
		parts := strings.Split(buf, ";")
		switch {
		case buf == "":
			s.setCursor(0, 0)
		case len(parts) == 1:
			s.setCursor(atoiOr(parts[0], 1)-1, 0)
		case len(parts) == 2:
			s.setCursor(atoiOr(parts[0], 1)-1, atoiOr(parts[1], 1)-1)
		default:
			p.unknownCSI(final)
		}

	case final == 'J': // ED - erase in display
		switch buf {
		case "", "0":
			s.eraseBelow()
		case "1":
			s.eraseAbove()
		case "2":
			s.eraseAll()
		default:
			p.unknownCSI(final)
		}

	case final == 'K': // EL - erase in line
		switch buf {
		case "", "0":
			s.eraseLineRight()
		case "1":
			s.eraseLineLeft()
		case "2":
			s.eraseLine()
		default:
			p.unknownCSI(final)
		}

	case final == 'L': // IL - insert blank lines
		s.insertLines(p.paramInt(1))

	case final == 'M': // DL - delete lines
		s.deleteLines(p.paramInt(1))

	case final == 'P': // DCH - delete characters
		s.deleteChars(p.paramInt(1))

	case final == 'S': // SU - scroll region up
		s.scrollUpRegion(p.paramInt(1))

	case final == 'X': // ECH - erase characters in place
		s.eraseChars(p.paramInt(1))

	case final == '@' && csiNumericParams(buf): // ICH - insert blank characters
		s.insertChars(p.paramInt(1))

	case final == 'c' && (buf == "" || buf == "0"):
		// Primary DA: report VT100 with advanced video option
		p.send([]byte("\x1b[?1;2c"))

	case final == 'c' && (buf == ">" || buf == ">0"):
		// Secondary DA
		p.send([]byte("\x1b[>0;276;0c"))

	case final == 'd' && buf != "": // VPA - cursor to row
		s.row = p.paramInt(1) - 1
		s.clampCursor()
		s.markDirty()

	case final == 'g': // TBC - clear tab stops
		switch p.paramInt(0) {
		case 0:
			s.clearTabStop()
		case 3:
			s.clearAllTabStops()
		default:
			p.unknownCSI(final)
		}

	case final == 'h' && len(buf) > 0 && buf[0] == '?':
		p.setPrivateModes(buf[1:], true)

	case final == 'l' && len(buf) > 0 && buf[0] == '?':
		p.setPrivateModes(buf[1:], false)

	case final == 'h' && len(buf) > 0:
		p.setModes(buf, true)

	case final == 'l' && len(buf) > 0:
		p.setModes(buf, false)

	case final == 'm' && (len(buf) == 0 || buf[0] != '>'):
		p.executeSGR(buf)

	case final == 'm':
		// XTMODKEYS - accepted, no effect

	case final == 'n' && buf == "5":
		// DSR - report operating status OK
		p.send([]byte("\x1b[0n"))

	case final == 'n' && buf == "6":
		// DSR - report cursor position, 1-based
		p.send([]byte("\x1b[" + strconv.Itoa(s.row+1) + ";" + strconv.Itoa(s.col+1) + "R"))

	case final == 'r': // DECSTBM - set scrolling region
		parts := strings.Split(buf, ";")
		top, bottom := 0, s.rows-1
		switch {
		case buf == "":
		case len(parts) == 1:
			top = atoiOr(parts[0], 1) - 1
		case len(parts) == 2:
			top = atoiOr(parts[0], 1) - 1
			bottom = atoiOr(parts[1], s.rows) - 1
		default:
			p.unknownCSI(final)
			return
		}
		s.setScrollRegion(top, bottom)

	case final == 's': // SCP - save cursor position
		s.saveCursor()

	case final == 'u': // RCP - restore cursor position
		s.restoreCursor()

	default:
		p.unknownCSI(final)
	}
}

func (p *Parser) unknownCSI(final byte) {
	p.logger.Debug("unknown escape sequence in CSI", "buffer", string(p.escBuf), "final", string(rune(final)))
}

// csiNumericParams reports whether the buffer is empty or ends in a digit,
// i.e. carries no intermediate bytes.
func csiNumericParams(buf string) bool {
	if buf == "" {
		return true
	}
	last := buf[len(buf)-1]
	return last >= '0' && last <= '9'
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// setModes handles SM/RM (CSI Pm h/l).
func (p *Parser) setModes(params string, set bool) {
	for _, part := range strings.Split(params, ";") {
		switch part {
		case "4": // IRM - insert mode
			p.screen.setInsertMode(set)
		default:
			p.logger.Debug("unknown ANSI mode", "mode", part, "set", set)
		}
	}
}

// setPrivateModes handles DECSET/DECRST (CSI ? Pm h/l).
func (p *Parser) setPrivateModes(params string, set bool) {
	for _, part := range strings.Split(params, ";") {
		switch part {
		case "3": // DECCOLM - 132/80 column mode
			if set {
				p.screen.setColumnMode(132)
			} else {
				p.screen.setColumnMode(80)
			}
		case "5": // DECSCNM - reverse video
			p.screen.setReverseVideo(set)
		case "6": // DECOM - origin mode
			p.screen.setOriginMode(set)
		case "7": // DECAWM - auto-wrap
			p.screen.setAutoWrap(set)
		case "25": // DECTCEM - cursor visibility
			p.screen.setShowCursor(set)
		default:
			// DECCKM, DECSCLM, blink, mouse tracking, bracketed paste and
			// friends are accepted and remembered, with no effect
			if n, err := strconv.Atoi(part); err == nil {
				p.screen.setPrivateFlag(n, set)
			} else {
				p.logger.Debug("unknown DEC private mode", "mode", part, "set", set)
			}
		}
	}
}

// executeSGR handles character attributes (CSI Pm m).
func (p *Parser) executeSGR(buf string) {
	s := p.screen
	parts := strings.Split(buf, ";")
	for i := 0; i < len(parts); i++ {
		param := atoiOr(parts[i], 0)
		switch {
		case param == 0 || param == 10:
			// reset all attributes to their defaults
			s.style = DefaultStyle()
		case param == 1: // bold
			s.style.Weight = WeightBold
		case param == 2: // faint - parsed, not stored
		case param == 3 || param == 23: // italic on/off - parsed, not stored
		case param == 4 || param == 21 || param == 24: // underline - parsed, not stored
		case param == 5 || param == 6: // slow/rapid blink
			s.style.Blink = true
		case param == 7 || param == 27:
			// inverse: flip foreground and background; applying it twice
			// within one parameter list restores the original
			s.style = s.style.Swap()
		case param == 9 || param == 29: // strikethrough - parsed, not stored
		case param == 22: // normal intensity
			s.style.Weight = WeightRegular
		case param == 25: // steady
			s.style.Blink = false
		case param >= 30 && param <= 37: // foreground ansi 0..7
			s.style.Fore = PaletteColor(param - 30)
		case param == 38 || param == 48:
			i = p.extendedColor(parts, i, param == 38)
		case param == 39: // default foreground
			s.style.Fore = DefaultForeground
		case param >= 40 && param <= 47: // background ansi 0..7
			s.style.Back = PaletteColor(param - 40)
		case param == 49: // default background
			s.style.Back = DefaultBackground
		case param >= 90 && param <= 97: // foreground ansi 8..15
			s.style.Fore = PaletteColor(8 + param - 90)
		case param >= 100 && param <= 107: // background ansi 8..15
			s.style.Back = PaletteColor(8 + param - 100)
		default:
			p.logger.Debug("unknown SGR parameter", "param", parts[i], "buffer", buf)
		}
	}
}

// extendedColor parses the 38/48 color forms (5;index and 2;r;g;b) starting
// after parts[i] and returns the index of the last parameter consumed. The
// colorspace designator is consumed even when the form is unrecognized or
// truncated.
func (p *Parser) extendedColor(parts []string, i int, isFore bool) int {
	s := p.screen
	if i+1 >= len(parts) {
		return i
	}
	i++
	switch atoiOr(parts[i], -1) {
	case 5: // 256-color mode
		if i+1 < len(parts) {
			i++
			c := Color256(atoiOr(parts[i], 0))
			if isFore {
				s.style.Fore = c
			} else {
				s.style.Back = c
			}
		}
	case 2: // direct RGB
		if i+3 < len(parts) {
			c := RGB{
				R: uint8(atoiOr(parts[i+1], 0)),
				G: uint8(atoiOr(parts[i+2], 0)),
				B: uint8(atoiOr(parts[i+3], 0)),
			}
			i += 3
			if isFore {
				s.style.Fore = c
			} else {
				s.style.Back = c
			}
		}
	}
	return i
}

func (p *Parser) handleOSC(b byte) {
	switch {
	case b == 0x07:
		// BEL terminates
		p.dispatchOSC(string(p.escBuf))
		p.state = stateGround
	case b == '\\' && len(p.escBuf) > 0 && p.escBuf[len(p.escBuf)-1] == 0x1B:
		// ST is ESC \
		p.dispatchOSC(string(p.escBuf[:len(p.escBuf)-1]))
		p.state = stateGround
	case (b >= 0x20 && b <= 0x7E) || b == 0x1B:
		p.escBuf = append(p.escBuf, b)
	default:
		p.logger.Debug("unknown byte in OSC", "buffer", string(p.escBuf), "byte", b)
		p.state = stateGround
	}
}

// dispatchOSC processes a terminated OSC payload.
func (p *Parser) dispatchOSC(payload string) {
	parts := strings.Split(payload, ";")
	switch {
	case len(parts) == 3 && parts[0] == "52" && parts[1] == "c" && parts[2] != "?":
		// OSC 52 - write clipboard, payload is base64
		if p.onCopy != nil {
			p.onCopy(parts[2])
		}
	case len(parts) == 3 && parts[0] == "52" && parts[1] == "c" && parts[2] == "?":
		// OSC 52 - read clipboard; the paste arrives via the driver later
		if p.onPasteRequest != nil {
			p.onPasteRequest()
		}
	case len(parts) == 2 && parts[0] == "10" && parts[1] == "?":
		// report foreground color: black
		p.send([]byte("\x1b]10;rgb:0/0/0\x1b\\"))
	case len(parts) == 2 && parts[0] == "11" && parts[1] == "?":
		// report background color: white
		p.send([]byte("\x1b]11;rgb:f/f/f\x1b\\"))
	default:
		// title changes and other OSC commands are ignored
	}
}

func (p *Parser) handleDCS(b byte) {
	switch {
	case b == '\\' && len(p.escBuf) > 0 && p.escBuf[len(p.escBuf)-1] == 0x1B:
		// ST terminates; the payload is discarded
		p.state = stateGround
	case (b >= 0x20 && b <= 0x7E) || b == 0x1B:
		p.escBuf = append(p.escBuf, b)
	default:
		p.logger.Debug("unknown byte in DCS", "buffer", string(p.escBuf), "byte", b)
		p.state = stateGround
	}
}
