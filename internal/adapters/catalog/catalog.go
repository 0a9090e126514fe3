package catalog

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/randomtoy/pairs-go/internal/domain"
)

//go:embed data/catalog.json
var catalogFS embed.FS

const embeddedPath = "data/catalog.json"

type document struct {
	Difficulties []domain.Difficulty `json:"difficulties"`
	Themes       []domain.Theme      `json:"themes"`
}

// Catalog holds difficulty and theme options in their declared order.
type Catalog struct {
	difficulties []domain.Difficulty
	themes       []domain.Theme
	byDifficulty map[string]domain.Difficulty
	byTheme      map[string]domain.Theme
}

// NewEmbedded loads the catalog shipped with the binary.
func NewEmbedded() (*Catalog, error) {
	raw, err := catalogFS.ReadFile(embeddedPath)
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from JSON. Every board must be dealable and the
// default difficulty and theme must be present.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		byDifficulty: make(map[string]domain.Difficulty, len(doc.Difficulties)),
		byTheme:      make(map[string]domain.Theme, len(doc.Themes)),
	}
	for _, d := range doc.Difficulties {
		if d.Key == "" {
			return nil, fmt.Errorf("difficulty without key")
		}
		if _, dup := c.byDifficulty[d.Key]; dup {
			return nil, fmt.Errorf("duplicate difficulty %q", d.Key)
		}
		if err := domain.ValidateBoard(d.Rows, d.Cols); err != nil {
			return nil, fmt.Errorf("difficulty %q: %w", d.Key, err)
		}
		c.byDifficulty[d.Key] = d
		c.difficulties = append(c.difficulties, d)
	}
	for _, t := range doc.Themes {
		if t.Key == "" {
			return nil, fmt.Errorf("theme without key")
		}
		if _, dup := c.byTheme[t.Key]; dup {
			return nil, fmt.Errorf("duplicate theme %q", t.Key)
		}
		c.byTheme[t.Key] = t
		c.themes = append(c.themes, t)
	}

	if _, ok := c.byDifficulty[domain.DefaultDifficulty]; !ok {
		return nil, fmt.Errorf("catalog lacks default difficulty %q", domain.DefaultDifficulty)
	}
	if _, ok := c.byTheme[domain.DefaultStyle]; !ok {
		return nil, fmt.Errorf("catalog lacks default theme %q", domain.DefaultStyle)
	}
	return c, nil
}

func (c *Catalog) Difficulty(key string) (domain.Difficulty, bool) {
	d, ok := c.byDifficulty[key]
	return d, ok
}

func (c *Catalog) Theme(key string) (domain.Theme, bool) {
	t, ok := c.byTheme[key]
	return t, ok
}

func (c *Catalog) Difficulties() []domain.Difficulty {
	return append([]domain.Difficulty(nil), c.difficulties...)
}

func (c *Catalog) Themes() []domain.Theme {
	return append([]domain.Theme(nil), c.themes...)
}
