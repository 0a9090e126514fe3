package catalog_test

import (
	"errors"
	"testing"

	"github.com/randomtoy/pairs-go/internal/adapters/catalog"
	"github.com/randomtoy/pairs-go/internal/domain"
)

func TestNewEmbedded(t *testing.T) {
	c, err := catalog.NewEmbedded()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string][2]int{"easy": {4, 4}, "medium": {4, 6}, "hard": {6, 6}}
	for key, shape := range want {
		d, ok := c.Difficulty(key)
		if !ok {
			t.Fatalf("missing difficulty %s", key)
		}
		if d.Rows != shape[0] || d.Cols != shape[1] {
			t.Errorf("%s: expected %dx%d, got %dx%d", key, shape[0], shape[1], d.Rows, d.Cols)
		}
	}
	if got := c.Difficulties(); len(got) != 3 || got[0].Key != "easy" {
		t.Errorf("unexpected difficulty order: %+v", got)
	}

	classic, ok := c.Theme("classic")
	if !ok {
		t.Fatal("missing classic theme")
	}
	if classic.Vars["--card-back"] != "#1e88e5" {
		t.Errorf("unexpected classic card back: %q", classic.Vars["--card-back"])
	}
	if _, ok := c.Theme("ocean"); !ok {
		t.Error("missing ocean theme")
	}
	if _, ok := c.Theme("neon"); ok {
		t.Error("unexpected neon theme")
	}
}

func TestParse_RejectsUndealableBoard(t *testing.T) {
	raw := `{"difficulties":[{"key":"easy","rows":4,"cols":4},{"key":"huge","rows":9,"cols":9}],
		"themes":[{"key":"classic"}]}`
	_, err := catalog.Parse([]byte(raw))
	if !errors.Is(err, domain.ErrOddCardCount) {
		t.Errorf("expected ErrOddCardCount, got %v", err)
	}

	raw = `{"difficulties":[{"key":"easy","rows":4,"cols":4},{"key":"huge","rows":8,"cols":10}],
		"themes":[{"key":"classic"}]}`
	_, err = catalog.Parse([]byte(raw))
	if !errors.Is(err, domain.ErrAlphabetExhausted) {
		t.Errorf("expected ErrAlphabetExhausted, got %v", err)
	}
}

func TestParse_RequiresDefaults(t *testing.T) {
	cases := map[string]string{
		"no easy":      `{"difficulties":[{"key":"hard","rows":6,"cols":6}],"themes":[{"key":"classic"}]}`,
		"no classic":   `{"difficulties":[{"key":"easy","rows":4,"cols":4}],"themes":[{"key":"ocean"}]}`,
		"duplicate":    `{"difficulties":[{"key":"easy","rows":4,"cols":4},{"key":"easy","rows":2,"cols":2}],"themes":[{"key":"classic"}]}`,
		"invalid json": `{"difficulties":`,
	}
	for name, raw := range cases {
		if _, err := catalog.Parse([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
