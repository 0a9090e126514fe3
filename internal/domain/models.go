package domain

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

const (
	DefaultDifficulty = "easy"
	DefaultStyle      = "classic"
)

// Difficulty is a board shape offered to the player.
type Difficulty struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
}

// Cards returns the number of cards on the board.
func (d Difficulty) Cards() int { return d.Rows * d.Cols }

// Theme is a cosmetic color scheme. Vars maps color roles to CSS values and has
// no effect on gameplay.
type Theme struct {
	Key   string            `json:"key"`
	Label string            `json:"label"`
	Vars  map[string]string `json:"vars"`
}

// GameState is the persisted state of a single game.
type GameState struct {
	DifficultyKey string   `json:"difficultyKey"`
	StyleKey      string   `json:"styleKey"`
	Rows          int      `json:"rows"`
	Cols          int      `json:"cols"`
	Deck          []string `json:"deck"`
	Matched       []bool   `json:"matched"`
	Moves         int      `json:"moves"`
	Seconds       int      `json:"seconds"`
	TimerStarted  bool     `json:"timerStarted"`
	GameOver      bool     `json:"gameOver"`
}

// NewGameState deals a fresh shuffled board for the given difficulty.
func NewGameState(d Difficulty, styleKey string, rng RNG) (GameState, error) {
	deck, err := BuildDeck(d.Cards(), rng)
	if err != nil {
		return GameState{}, err
	}
	return GameState{
		DifficultyKey: d.Key,
		StyleKey:      styleKey,
		Rows:          d.Rows,
		Cols:          d.Cols,
		Deck:          deck,
		Matched:       make([]bool, len(deck)),
	}, nil
}

// AllMatched reports whether every card has been paired.
func (g GameState) AllMatched() bool {
	for _, m := range g.Matched {
		if !m {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand out of the engine.
func (g GameState) Clone() GameState {
	out := g
	out.Deck = append([]string(nil), g.Deck...)
	out.Matched = append([]bool(nil), g.Matched...)
	return out
}
