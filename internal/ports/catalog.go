package ports

import "github.com/randomtoy/pairs-go/internal/domain"

// Catalog lists the board shapes and themes a player can choose from.
type Catalog interface {
	Difficulty(key string) (domain.Difficulty, bool)
	Theme(key string) (domain.Theme, bool)
	Difficulties() []domain.Difficulty
	Themes() []domain.Theme
}
