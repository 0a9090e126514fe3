package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// EncodeState serializes g for the session slot.
func EncodeState(g GameState) ([]byte, error) {
	return json.Marshal(g)
}

// DecodeState parses and validates a saved game. Structural problems reject the
// whole record with ErrInvalidState; loose scalar fields are coerced instead:
// moves and seconds default to 0, booleans follow truthiness and unknown-typed
// enum keys fall back to the defaults.
func DecodeState(raw []byte) (GameState, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return GameState{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return GameState{}, fmt.Errorf("%w: not an object", ErrInvalidState)
	}

	deck, err := stringSlice(obj["deck"])
	if err != nil {
		return GameState{}, fmt.Errorf("%w: deck: %w", ErrInvalidState, err)
	}
	matched, err := boolSlice(obj["matched"])
	if err != nil {
		return GameState{}, fmt.Errorf("%w: matched: %w", ErrInvalidState, err)
	}
	if len(deck) != len(matched) {
		return GameState{}, fmt.Errorf("%w: %d cards but %d matched flags", ErrInvalidState, len(deck), len(matched))
	}

	rows, ok := wholeNumber(obj["rows"])
	if !ok {
		return GameState{}, fmt.Errorf("%w: rows is not a whole number", ErrInvalidState)
	}
	cols, ok := wholeNumber(obj["cols"])
	if !ok {
		return GameState{}, fmt.Errorf("%w: cols is not a whole number", ErrInvalidState)
	}

	g := GameState{
		DifficultyKey: stringOr(obj["difficultyKey"], DefaultDifficulty),
		StyleKey:      stringOr(obj["styleKey"], DefaultStyle),
		Rows:          rows,
		Cols:          cols,
		Deck:          deck,
		Matched:       matched,
		Moves:         counter(obj["moves"]),
		Seconds:       counter(obj["seconds"]),
		TimerStarted:  truthy(obj["timerStarted"]),
		GameOver:      truthy(obj["gameOver"]),
	}
	if g.AllMatched() {
		g.GameOver = true
	}
	if err := Validate(g); err != nil {
		return GameState{}, err
	}
	return g, nil
}

// Validate checks the invariants every live game holds.
func Validate(g GameState) error {
	if err := ValidateBoard(g.Rows, g.Cols); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if g.Rows*g.Cols != len(g.Deck) {
		return fmt.Errorf("%w: %dx%d board holds %d cards", ErrInvalidState, g.Rows, g.Cols, len(g.Deck))
	}
	if len(g.Matched) != len(g.Deck) {
		return fmt.Errorf("%w: %d cards but %d matched flags", ErrInvalidState, len(g.Deck), len(g.Matched))
	}
	if !IsPairDeck(g.Deck) {
		return fmt.Errorf("%w: deck is not made of pairs", ErrInvalidState)
	}
	if g.GameOver && !g.AllMatched() {
		return fmt.Errorf("%w: game over with unmatched cards", ErrInvalidState)
	}
	if g.Seconds > 0 && !g.TimerStarted {
		return fmt.Errorf("%w: elapsed time on a game that never started", ErrInvalidState)
	}
	if g.Moves < 0 || g.Seconds < 0 {
		return fmt.Errorf("%w: negative counters", ErrInvalidState)
	}
	return nil
}

func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("entry %d is not a symbol", i)
		}
		out[i] = s
	}
	return out, nil
}

func boolSlice(v any) ([]bool, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]bool, len(items))
	for i, it := range items {
		b, ok := it.(bool)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a boolean", i)
		}
		out[i] = b
	}
	return out, nil
}

func wholeNumber(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func counter(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
