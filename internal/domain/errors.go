package domain

import "errors"

var (
	ErrOddCardCount      = errors.New("card count must be even")
	ErrBoardTooSmall     = errors.New("board must hold at least 4 cards")
	ErrAlphabetExhausted = errors.New("board needs more pairs than the symbol alphabet holds")
	ErrInvalidState      = errors.New("invalid saved game state")
	ErrSelectionRejected = errors.New("selection rejected")
	ErrEngineClosed      = errors.New("game engine closed")
	ErrUnknownSession    = errors.New("session not found")
)
