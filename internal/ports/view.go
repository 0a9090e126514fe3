package ports

import "github.com/randomtoy/pairs-go/internal/domain"

// View receives render instructions from the game engine. The engine calls it
// while holding its own lock, so implementations must not call back into the
// engine.
type View interface {
	ResetBoard(rows, cols int)
	ApplyTheme(theme domain.Theme)
	RevealCard(index int, symbol string)
	HideCard(index int, symbol string)
	MarkCardMatched(index int, symbol string)
	SetMovesDisplay(moves int)
	SetTimeDisplay(clock string)
	SetTotalMovesDisplay(total int64)
	SetMessage(text string)
	DisableAllCards()
}
