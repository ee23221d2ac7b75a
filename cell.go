package ferrite

import "github.com/mattn/go-runewidth"

// WideTail marks a continuation column of a wide glyph. A cell holding
// WideTail at column c always has the wide character itself at its left.
const WideTail rune = -1

// Weight is the font weight of a cell.
type Weight uint8

const (
	WeightRegular Weight = iota
	WeightBold
)

// Style holds the rendition attributes of a cell. Underline, faint and
// strikethrough are parsed by the SGR handler but not stored.
type Style struct {
	Fore   RGB
	Back   RGB
	Weight Weight
	Blink  bool
}

// DefaultStyle returns the default rendition: regular weight, no blink,
// palette black on palette white.
func DefaultStyle() Style {
	return Style{
		Fore: DefaultForeground,
		Back: DefaultBackground,
	}
}

// Swap exchanges foreground and background. Applying it twice is a no-op.
func (s Style) Swap() Style {
	s.Fore, s.Back = s.Back, s.Fore
	return s
}

// Cell represents a single character cell in the terminal grid.
// A zero Rune renders as blank; WideTail marks wide-glyph continuation.
type Cell struct {
	Rune  rune
	Style Style
}

// EmptyCell returns an unset cell with default attributes.
func EmptyCell() Cell {
	return Cell{Style: DefaultStyle()}
}

// IsBlank reports whether the cell has no visible character.
func (c Cell) IsBlank() bool {
	return c.Rune == 0 || c.Rune == ' '
}

// charWidth returns the number of columns a rune occupies, using the
// Unicode east-asian-width tables. Zero-width and control runes report 0
// and are dropped by the writer.
func charWidth(r rune) int {
	if r < 0x20 {
		return 0
	}
	return runewidth.RuneWidth(r)
}
