package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/randomtoy/pairs-go/internal/adapters/catalog"
	"github.com/randomtoy/pairs-go/internal/adapters/clock"
	httpadapter "github.com/randomtoy/pairs-go/internal/adapters/http"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/memory"
	"github.com/randomtoy/pairs-go/internal/app"
	"github.com/randomtoy/pairs-go/internal/ports"
)

// keepOrderRNG deals A A B B C C ...
type keepOrderRNG struct{}

func (keepOrderRNG) Intn(n int) int { return n - 1 }

type server struct {
	echo     *echo.Echo
	clock    *clock.Manual
	now      *wallClock
	sessions *httpadapter.Sessions
}

// wallClock is the session registry's notion of now.
type wallClock struct {
	mu sync.Mutex
	t  time.Time
}

func (w *wallClock) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

func (w *wallClock) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.t = w.t.Add(d)
}

func newServer(t *testing.T) *server {
	t.Helper()
	cat, err := catalog.NewEmbedded()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	durable := memory.NewDurableStore()
	t.Cleanup(durable.Close)

	s := &server{clock: clock.NewManual(), now: &wallClock{t: time.Unix(1_700_000_000, 0)}}
	s.sessions = app.NewSessions(app.SessionDeps[*httpadapter.BoardView]{
		Durable:   durable,
		Scheduler: s.clock,
		Catalog:   cat,
		RNG:       keepOrderRNG{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewStore:  func() ports.SessionStore { return memory.NewSessionStore() },
		NewView:   httpadapter.NewBoardView,
		Now:       s.now.Now,
	}, app.DefaultEngineConfig(), time.Hour)
	t.Cleanup(func() { s.sessions.CloseAll(context.Background()) })

	s.echo = echo.New()
	s.echo.Use(httpadapter.RequestIDMiddleware())
	httpadapter.NewHandler(s.sessions, nil).Register(s.echo)
	return s
}

func (s *server) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (s *server) open(t *testing.T) httpadapter.BoardResponse {
	t.Helper()
	var board httpadapter.BoardResponse
	if code := s.do(t, http.MethodPost, "/v1/sessions", "", &board); code != http.StatusCreated {
		t.Fatalf("create session: status %d", code)
	}
	return board
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("unexpected healthz: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestOptions(t *testing.T) {
	s := newServer(t)
	var opts httpadapter.OptionsResponse
	if code := s.do(t, http.MethodGet, "/v1/options", "", &opts); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(opts.Difficulties) != 3 || opts.Difficulties[0].Key != "easy" {
		t.Errorf("unexpected difficulties %+v", opts.Difficulties)
	}
	if len(opts.Themes) < 2 {
		t.Errorf("unexpected themes %+v", opts.Themes)
	}
}

func TestCreateSession(t *testing.T) {
	s := newServer(t)
	board := s.open(t)

	if board.Session == "" {
		t.Error("missing session id")
	}
	if board.Difficulty != "easy" || board.Style != "classic" {
		t.Errorf("unexpected options %s/%s", board.Difficulty, board.Style)
	}
	if len(board.Cards) != 16 || board.Rows != 4 || board.Cols != 4 {
		t.Fatalf("unexpected board %dx%d with %d cards", board.Rows, board.Cols, len(board.Cards))
	}
	for _, c := range board.Cards {
		if c.Face != httpadapter.FaceDown || c.Symbol != "" {
			t.Errorf("card %d leaks its face: %+v", c.Index, c)
		}
	}
	if board.Time != "00:00" || board.Moves != 0 {
		t.Errorf("unexpected counters %s/%d", board.Time, board.Moves)
	}
}

func TestSelectFlow(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session
	path := "/v1/sessions/" + id + "/select"

	var resp httpadapter.SelectResponse
	if code := s.do(t, http.MethodPost, path, `{"index":0}`, &resp); code != http.StatusOK {
		t.Fatalf("select: status %d", code)
	}
	if resp.Ignored || resp.Board.Cards[0].Face != httpadapter.FaceUp || resp.Board.Cards[0].Symbol != "A" {
		t.Fatalf("unexpected select response %+v", resp)
	}

	resp = httpadapter.SelectResponse{}
	s.do(t, http.MethodPost, path, `{"index":0}`, &resp)
	if !resp.Ignored || !strings.Contains(resp.Reason, "face up") {
		t.Errorf("expected ignored repeat selection, got %+v", resp)
	}

	resp = httpadapter.SelectResponse{}
	s.do(t, http.MethodPost, path, `{"index":1}`, &resp)
	if resp.Ignored || resp.Board.Moves != 1 {
		t.Fatalf("unexpected second selection %+v", resp)
	}

	s.clock.Advance(200 * time.Millisecond)

	var board httpadapter.BoardResponse
	s.do(t, http.MethodGet, "/v1/sessions/"+id, "", &board)
	for _, i := range []int{0, 1} {
		if c := board.Cards[i]; c.Face != httpadapter.FaceMatched || c.Symbol != "A" {
			t.Errorf("card %d not matched: %+v", i, c)
		}
	}
	if board.Message != "Nice match." {
		t.Errorf("unexpected message %q", board.Message)
	}

	var stats httpadapter.StatsResponse
	s.do(t, http.MethodGet, "/v1/stats", "", &stats)
	if stats.TotalMoves != 1 || stats.Sessions != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSelectBadRequests(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session
	path := "/v1/sessions/" + id + "/select"

	for _, body := range []string{`{"index":`, `{}`, `{"index":"x"}`} {
		if code := s.do(t, http.MethodPost, path, body, nil); code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, code)
		}
	}
	if code := s.do(t, http.MethodPost, "/v1/sessions/nope/select", `{"index":0}`, nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestNewGameAndStyle(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session

	var board httpadapter.BoardResponse
	code := s.do(t, http.MethodPost, "/v1/sessions/"+id+"/games", `{"difficulty":"medium","style":"ocean"}`, &board)
	if code != http.StatusOK {
		t.Fatalf("new game: status %d", code)
	}
	if len(board.Cards) != 24 || board.Difficulty != "medium" || board.Style != "ocean" {
		t.Errorf("unexpected board %s/%s with %d cards", board.Difficulty, board.Style, len(board.Cards))
	}

	board = httpadapter.BoardResponse{}
	s.do(t, http.MethodPut, "/v1/sessions/"+id+"/style", `{"style":"neon"}`, &board)
	if board.Style != "classic" {
		t.Errorf("expected fallback to classic, got %s", board.Style)
	}
	if board.Theme["--card-back"] == "" {
		t.Error("theme colors missing")
	}
}

func TestDeleteSession(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session

	if code := s.do(t, http.MethodDelete, "/v1/sessions/"+id, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	if code := s.do(t, http.MethodGet, "/v1/sessions/"+id, "", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", code)
	}
	if code := s.do(t, http.MethodDelete, "/v1/sessions/"+id, "", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", code)
	}
}

func TestStream(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session

	ts := httptest.NewServer(s.echo)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev httpadapter.EventMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if ev.Type != httpadapter.EventBoard || ev.Board == nil || len(ev.Board.Cards) != 16 {
		t.Fatalf("expected board snapshot first, got %+v", ev)
	}

	if err := conn.WriteJSON(httpadapter.ClientMessage{Type: httpadapter.CommandSelect, Index: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev = httpadapter.EventMessage{}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read reveal: %v", err)
	}
	if ev.Type != httpadapter.EventReveal || ev.Index == nil || *ev.Index != 2 || ev.Symbol != "B" {
		t.Errorf("unexpected event %+v", ev)
	}

	// closing the session ends the stream
	s.do(t, http.MethodDelete, "/v1/sessions/"+id, "", nil)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestStreamKeepsSessionAlive(t *testing.T) {
	s := newServer(t)
	id := s.open(t).Session

	ts := httptest.NewServer(s.echo)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev httpadapter.EventMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	s.now.add(50 * time.Minute)
	if err := conn.WriteJSON(httpadapter.ClientMessage{Type: httpadapter.CommandSelect, Index: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev = httpadapter.EventMessage{}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read reveal: %v", err)
	}
	if ev.Type != httpadapter.EventReveal {
		t.Fatalf("expected reveal, got %+v", ev)
	}

	// an hour and ten minutes after opening, twenty minutes after the last command
	s.now.add(20 * time.Minute)
	if n := s.sessions.Sweep(context.Background()); n != 0 {
		t.Fatalf("swept %d sessions still in play", n)
	}
	if code := s.do(t, http.MethodGet, "/v1/sessions/"+id, "", nil); code != http.StatusOK {
		t.Errorf("session gone after sweep: status %d", code)
	}

	s.now.add(2 * time.Hour)
	if n := s.sessions.Sweep(context.Background()); n != 1 {
		t.Errorf("expected idle session to expire, swept %d", n)
	}
}
