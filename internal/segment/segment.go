// ABOUTME: Splits a unit's text into three ordered segments at natural boundaries
// ABOUTME: Targets 40/40/20 proportions and snaps each cut to a paragraph, line or sentence end
package segment

import (
	"strings"

	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/util"
)

// DefaultWindow is the search radius around each target cut, in characters
const DefaultWindow = 500

// Cut targets as fractions of the unit length
const (
	firstCut  = 0.4
	secondCut = 0.8
)

// Piece is one segment produced by the splitter
type Piece struct {
	Index     int
	Text      string
	WordCount int
	// Closing marks the final segment, which carries the ending constraints
	Closing bool
}

// Splitter cuts unit text into models.SegmentCount pieces
type Splitter struct {
	window int
}

// New creates a splitter searching window characters either side of each target
func New(window int) *Splitter {
	if window < 0 {
		window = 0
	}
	return &Splitter{window: window}
}

// Split always returns exactly three pieces.
// Leading and trailing whitespace of the unit and of every piece is trimmed.
func (s *Splitter) Split(content string) []Piece {
	runes := []rune(strings.TrimSpace(content))
	n := len(runes)

	// Keep both search windows inside their own fifth of the text so the cuts
	// never cross and every piece keeps some of its target span.
	radius := min(s.window, n/10)

	c1 := Locate(runes, int(float64(n)*firstCut), radius)
	c2 := Locate(runes, int(float64(n)*secondCut), radius)
	if c2 < c1 {
		c2 = c1
	}

	parts := [models.SegmentCount]string{
		string(runes[:c1]),
		string(runes[c1:c2]),
		string(runes[c2:]),
	}
	pieces := make([]Piece, models.SegmentCount)
	for i, p := range parts {
		text := strings.TrimSpace(p)
		pieces[i] = Piece{
			Index:     i,
			Text:      text,
			WordCount: util.CountChars(text),
			Closing:   i == models.SegmentCount-1,
		}
	}
	return pieces
}

// Locate snaps target to the best cut inside [target-radius, target+radius).
// Preference order: after the last paragraph break, after the last line break,
// after the last sentence-terminal mark, else target itself.
func Locate(runes []rune, target, radius int) int {
	n := len(runes)
	if target < 0 {
		target = 0
	}
	if target > n {
		target = n
	}
	lo := max(0, target-radius)
	hi := min(n, target+radius)
	if hi <= lo {
		return target
	}
	window := runes[lo:hi]

	if i := lastParagraphBreak(window); i >= 0 {
		return lo + i + 2
	}
	if i := lastIndexFunc(window, func(r rune) bool { return r == '\n' }); i >= 0 {
		return lo + i + 1
	}
	if i := lastIndexFunc(window, isTerminal); i >= 0 {
		return lo + i + 1
	}
	return target
}

func lastParagraphBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func lastIndexFunc(window []rune, f func(rune) bool) int {
	for i := len(window) - 1; i >= 0; i-- {
		if f(window[i]) {
			return i
		}
	}
	return -1
}

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}
