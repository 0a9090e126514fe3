package http_test

import (
	"testing"

	httpadapter "github.com/randomtoy/pairs-go/internal/adapters/http"
	"github.com/randomtoy/pairs-go/internal/domain"
)

func TestBoardView_HidesFaceDownSymbols(t *testing.T) {
	v := httpadapter.NewBoardView("s1")
	v.ApplyTheme(domain.Theme{Key: "classic", Vars: map[string]string{"--bg": "#fff"}})
	v.ResetBoard(2, 2)
	v.HideCard(0, "A")
	v.RevealCard(1, "B")
	v.MarkCardMatched(2, "C")
	v.SetMovesDisplay(3)
	v.SetTimeDisplay("00:07")
	v.SetTotalMovesDisplay(12)
	v.SetMessage("Nice match.")

	b := v.Board()
	want := []httpadapter.CardResponse{
		{Index: 0, Face: httpadapter.FaceDown},
		{Index: 1, Face: httpadapter.FaceUp, Symbol: "B"},
		{Index: 2, Face: httpadapter.FaceMatched, Symbol: "C"},
		{Index: 3, Face: httpadapter.FaceDown},
	}
	for i, c := range b.Cards {
		if c != want[i] {
			t.Errorf("card %d: expected %+v, got %+v", i, want[i], c)
		}
	}
	if b.Session != "s1" || b.Moves != 3 || b.Time != "00:07" || b.TotalMoves != 12 || b.Message != "Nice match." {
		t.Errorf("unexpected board %+v", b)
	}
	if b.Theme["--bg"] != "#fff" || b.Disabled {
		t.Errorf("unexpected theme or disabled flag: %+v", b)
	}

	v.DisableAllCards()
	if !v.Board().Disabled {
		t.Error("expected disabled board")
	}
}

func TestBoardView_Subscribe(t *testing.T) {
	v := httpadapter.NewBoardView("s1")
	v.ResetBoard(2, 2)

	events, unsubscribe := v.Subscribe()
	first := <-events
	if first.Type != httpadapter.EventBoard || first.Board == nil || len(first.Board.Cards) != 4 {
		t.Fatalf("expected snapshot, got %+v", first)
	}

	v.RevealCard(3, "B")
	ev := <-events
	if ev.Type != httpadapter.EventReveal || *ev.Index != 3 || ev.Symbol != "B" {
		t.Errorf("unexpected event %+v", ev)
	}

	v.SetMessage("")
	ev = <-events
	if ev.Type != httpadapter.EventStatus || ev.Text == nil || *ev.Text != "" {
		t.Errorf("unexpected message event %+v", ev)
	}

	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("stream open after unsubscribe")
	}
	unsubscribe()
}

func TestBoardView_DropsSlowSubscriber(t *testing.T) {
	v := httpadapter.NewBoardView("s1")
	v.ResetBoard(2, 2)
	events, unsubscribe := v.Subscribe()
	defer unsubscribe()

	for i := 0; i < 200; i++ {
		v.SetMovesDisplay(i)
	}

	n := 0
	for range events {
		n++
	}
	if n == 0 || n > 200 {
		t.Errorf("unexpected number of buffered events %d", n)
	}
}

func TestBoardView_Close(t *testing.T) {
	v := httpadapter.NewBoardView("s1")
	events, _ := v.Subscribe()
	v.Close()

	<-events // snapshot
	if _, ok := <-events; ok {
		t.Error("stream open after close")
	}

	late, _ := v.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after close delivered events")
	}
}
