// Package terminal renders a memory game as text.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/randomtoy/pairs-go/internal/domain"
)

type face int

const (
	down face = iota
	up
	matched
)

type card struct {
	face   face
	symbol string
}

// View stores the latest render instructions. Nothing is written until Render
// is called, so timer ticks do not flood the terminal.
type View struct {
	mu       sync.Mutex
	rows     int
	cols     int
	cards    []card
	moves    int
	clock    string
	total    int64
	message  string
	disabled bool
	theme    string
}

func NewView() *View {
	return &View{clock: domain.FormatClock(0)}
}

func (v *View) ResetBoard(rows, cols int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows, v.cols = rows, cols
	v.cards = make([]card, rows*cols)
	v.disabled = false
}

func (v *View) ApplyTheme(theme domain.Theme) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.theme = theme.Key
}

func (v *View) RevealCard(index int, symbol string)      { v.set(index, up, symbol) }
func (v *View) HideCard(index int, _ string)             { v.set(index, down, "") }
func (v *View) MarkCardMatched(index int, symbol string) { v.set(index, matched, symbol) }

func (v *View) set(index int, f face, symbol string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index >= 0 && index < len(v.cards) {
		v.cards[index] = card{face: f, symbol: symbol}
	}
}

func (v *View) SetMovesDisplay(moves int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.moves = moves
}

func (v *View) SetTimeDisplay(clock string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = clock
}

func (v *View) SetTotalMovesDisplay(total int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.total = total
}

func (v *View) SetMessage(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message = text
}

func (v *View) DisableAllCards() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disabled = true
}

// Render writes the board. Face-down cards show their index, face-up cards
// their symbol in angle brackets and matched cards their symbol in parentheses.
func (v *View) Render(w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Moves: %d   Time: %s   Total moves: %d   Style: %s\n", v.moves, v.clock, v.total, v.theme)
	for r := 0; r < v.rows; r++ {
		for c := 0; c < v.cols; c++ {
			i := r*v.cols + c
			if c > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(cell(i, v.cards[i]))
		}
		b.WriteByte('\n')
	}
	if v.message != "" {
		b.WriteString(v.message)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Disabled reports whether the board stopped accepting selections.
func (v *View) Disabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disabled
}

func cell(i int, c card) string {
	switch c.face {
	case up:
		return fmt.Sprintf("<%2s>", c.symbol)
	case matched:
		return fmt.Sprintf("(%2s)", c.symbol)
	default:
		return fmt.Sprintf("[%2d]", i)
	}
}
