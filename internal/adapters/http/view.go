package http

import (
	"maps"
	"sync"

	"github.com/randomtoy/pairs-go/internal/domain"
)

const subscriberBuffer = 64

type cardFace struct {
	face   string
	symbol string
}

// BoardView keeps the rendered board of one session and fans every render
// instruction out to websocket subscribers. Subscribers that fall behind are
// dropped rather than blocking the engine.
type BoardView struct {
	id string

	mu       sync.Mutex
	rows     int
	cols     int
	cards    []cardFace
	moves    int
	clock    string
	total    int64
	message  string
	disabled bool
	theme    domain.Theme
	subs     map[*subscriber]struct{}
	closed   bool
}

type subscriber struct {
	events chan EventMessage
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

func NewBoardView(id string) *BoardView {
	return &BoardView{
		id:    id,
		clock: domain.FormatClock(0),
		subs:  make(map[*subscriber]struct{}),
	}
}

func (v *BoardView) ResetBoard(rows, cols int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows, v.cols = rows, cols
	v.cards = make([]cardFace, rows*cols)
	for i := range v.cards {
		v.cards[i].face = FaceDown
	}
	v.disabled = false
	v.broadcast(EventMessage{Type: EventReset, Rows: rows, Cols: cols})
}

func (v *BoardView) ApplyTheme(theme domain.Theme) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.theme = theme
	tr := toTheme(theme)
	v.broadcast(EventMessage{Type: EventTheme, Theme: &tr})
}

func (v *BoardView) RevealCard(index int, symbol string) {
	v.setFace(EventReveal, index, FaceUp, symbol)
}

func (v *BoardView) HideCard(index int, _ string) {
	v.setFace(EventHide, index, FaceDown, "")
}

func (v *BoardView) MarkCardMatched(index int, symbol string) {
	v.setFace(EventMatched, index, FaceMatched, symbol)
}

func (v *BoardView) setFace(event string, index int, face, symbol string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.cards) {
		return
	}
	v.cards[index] = cardFace{face: face, symbol: symbol}
	v.broadcast(EventMessage{Type: event, Index: &index, Symbol: symbol})
}

func (v *BoardView) SetMovesDisplay(moves int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.moves = moves
	n := int64(moves)
	v.broadcast(EventMessage{Type: EventMoves, Count: &n})
}

func (v *BoardView) SetTimeDisplay(clock string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = clock
	v.broadcast(EventMessage{Type: EventTime, Text: &clock})
}

func (v *BoardView) SetTotalMovesDisplay(total int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.total = total
	v.broadcast(EventMessage{Type: EventTotalMoves, Count: &total})
}

func (v *BoardView) SetMessage(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.message = text
	v.broadcast(EventMessage{Type: EventStatus, Text: &text})
}

func (v *BoardView) DisableAllCards() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disabled = true
	v.broadcast(EventMessage{Type: EventDisabled})
}

// Board returns the current rendered board.
func (v *BoardView) Board() BoardResponse {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boardLocked()
}

func (v *BoardView) boardLocked() BoardResponse {
	cards := make([]CardResponse, len(v.cards))
	for i, c := range v.cards {
		cards[i] = CardResponse{Index: i, Face: c.face, Symbol: c.symbol}
	}
	return BoardResponse{
		Session:    v.id,
		Style:      v.theme.Key,
		Rows:       v.rows,
		Cols:       v.cols,
		Cards:      cards,
		Moves:      v.moves,
		Time:       v.clock,
		TotalMoves: v.total,
		Message:    v.message,
		Disabled:   v.disabled,
		Theme:      maps.Clone(v.theme.Vars),
	}
}

// Subscribe returns a stream that starts with a full board snapshot followed
// by every later render instruction. The channel is closed on Unsubscribe,
// on Close, or when the subscriber falls behind.
func (v *BoardView) Subscribe() (<-chan EventMessage, func()) {
	s := &subscriber{events: make(chan EventMessage, subscriberBuffer)}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		s.close()
		return s.events, func() {}
	}
	board := v.boardLocked()
	s.events <- EventMessage{Type: EventBoard, Board: &board}
	v.subs[s] = struct{}{}

	return s.events, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, s)
		s.close()
	}
}

// Close ends every subscription. Later subscribers get a closed stream.
func (v *BoardView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for s := range v.subs {
		delete(v.subs, s)
		s.close()
	}
}

// broadcast must be called with v.mu held.
func (v *BoardView) broadcast(ev EventMessage) {
	for s := range v.subs {
		select {
		case s.events <- ev:
		default:
			delete(v.subs, s)
			s.close()
		}
	}
}

func toTheme(t domain.Theme) ThemeResponse {
	return ThemeResponse{Key: t.Key, Label: t.Label, Vars: maps.Clone(t.Vars)}
}
