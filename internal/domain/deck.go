package domain

import "fmt"

// Alphabet holds the card symbols in the order they are dealt.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MaxCards is the largest board the alphabet can fill with distinct pairs.
const MaxCards = 2 * len(Alphabet)

// ValidateBoard checks that a rows x cols board can be dealt.
func ValidateBoard(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBoardTooSmall, rows, cols)
	}
	return validateCount(rows * cols)
}

func validateCount(n int) error {
	switch {
	case n%2 != 0:
		return fmt.Errorf("%w: got %d", ErrOddCardCount, n)
	case n < 4:
		return fmt.Errorf("%w: got %d", ErrBoardTooSmall, n)
	case n > MaxCards:
		return fmt.Errorf("%w: %d cards, at most %d", ErrAlphabetExhausted, n, MaxCards)
	}
	return nil
}

// BuildDeck returns n cards holding the first n/2 symbols of the alphabet twice
// each, shuffled with rng.
func BuildDeck(n int, rng RNG) ([]string, error) {
	if err := validateCount(n); err != nil {
		return nil, err
	}
	deck := make([]string, 0, n)
	for _, r := range Alphabet[:n/2] {
		s := string(r)
		deck = append(deck, s, s)
	}
	Shuffle(deck, rng)
	return deck, nil
}

// Shuffle permutes cards in place (Fisher-Yates).
func Shuffle(cards []string, rng RNG) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// IsPairDeck reports whether every symbol in deck appears exactly twice.
func IsPairDeck(deck []string) bool {
	if len(deck)%2 != 0 {
		return false
	}
	counts := make(map[string]int, len(deck)/2)
	for _, s := range deck {
		counts[s]++
	}
	for _, c := range counts {
		if c != 2 {
			return false
		}
	}
	return true
}
