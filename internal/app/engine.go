package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/randomtoy/pairs-go/internal/domain"
	"github.com/randomtoy/pairs-go/internal/ports"
)

const (
	// SessionKey is the session-scope slot holding the current game.
	SessionKey = "mg_game"
	// TotalMovesKey is the durable counter of completed turns.
	TotalMovesKey = "mg_totalMoves"
)

const (
	stateIdle        = "idle"
	stateOneSelected = "one_selected"
	stateResolving   = "resolving"

	eventFlip    = "flip"
	eventResolve = "resolve"
)

const (
	msgMatch = "Nice match."
	msgWin   = "You matched them all!"
)

// EngineConfig holds the engine's timings.
type EngineConfig struct {
	MatchDelay    time.Duration
	MismatchDelay time.Duration
	TickInterval  time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MatchDelay:    200 * time.Millisecond,
		MismatchDelay: 650 * time.Millisecond,
		TickInterval:  time.Second,
	}
}

// Deps are the collaborators of one engine.
type Deps struct {
	Session   ports.SessionStore
	Durable   ports.DurableStore
	View      ports.View
	Scheduler ports.Scheduler
	Catalog   ports.Catalog
	RNG       domain.RNG
	Logger    *slog.Logger
}

// TurnState is the transient selection state. -1 means no card.
type TurnState struct {
	First  int
	Second int
	Locked bool
}

// Engine runs one memory game. All entry points serialize on the engine lock,
// so selections, resolutions, ticks and notifications apply one at a time.
type Engine struct {
	deps Deps
	cfg  EngineConfig

	mu     sync.Mutex
	state  domain.GameState
	turn   *fsm.FSM
	first  int
	second int

	// epoch invalidates timer and resolution callbacks issued for a game
	// that has since been replaced.
	epoch       uint64
	stopTimer   ports.Stop
	stopResolve ports.Stop
	// settled is open while a turn is resolving.
	settled     chan struct{}
	unsubscribe func()
	closed      bool
}

func NewEngine(deps Deps, cfg EngineConfig) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		deps:   deps,
		cfg:    cfg,
		turn:   newTurnMachine(),
		first:  -1,
		second: -1,
	}
}

func newTurnMachine() *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventFlip, Src: []string{stateIdle}, Dst: stateOneSelected},
			{Name: eventFlip, Src: []string{stateOneSelected}, Dst: stateResolving},
			{Name: eventResolve, Src: []string{stateResolving}, Dst: stateIdle},
		},
		fsm.Callbacks{},
	)
}

// Start restores the saved game from the session scope, or deals a fresh one
// when there is none or it fails validation, then renders it. A restored game
// whose timer was running resumes ticking.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineClosed
	}

	g, ok := e.restore(ctx)
	if !ok {
		fresh, err := e.deal(domain.DefaultDifficulty, domain.DefaultStyle)
		if err != nil {
			return err
		}
		g = fresh
	}
	e.install(ctx, g)
	if g.TimerStarted && !g.GameOver {
		e.runTimer()
	}

	if e.unsubscribe == nil {
		e.unsubscribe = e.deps.Durable.Subscribe(e.onDurableChange)
	}
	return nil
}

// NewGame replaces the current game. Unknown keys fall back to the defaults.
// Any pending resolution or running timer of the old game is discarded.
func (e *Engine) NewGame(ctx context.Context, difficultyKey, styleKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineClosed
	}

	g, err := e.deal(difficultyKey, styleKey)
	if err != nil {
		return err
	}
	e.install(ctx, g)
	e.deps.Logger.DebugContext(ctx, "new game", "difficulty", g.DifficultyKey, "style", g.StyleKey, "cards", len(g.Deck))
	return nil
}

// Select handles a click on card index. Selections that cannot apply leave the
// game untouched and return an error wrapping domain.ErrSelectionRejected.
func (e *Engine) Select(ctx context.Context, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkSelectable(index); err != nil {
		return err
	}

	e.startTimer(ctx)
	e.deps.View.RevealCard(index, e.state.Deck[index])

	if e.turn.Current() == stateIdle {
		e.first = index
		e.fire(ctx, eventFlip)
		return nil
	}

	e.second = index
	e.fire(ctx, eventFlip)
	e.settled = make(chan struct{})

	e.state.Moves++
	e.persist(ctx)
	e.deps.View.SetMovesDisplay(e.state.Moves)
	e.countTurn(ctx)

	delay := e.cfg.MismatchDelay
	if e.state.Deck[e.first] == e.state.Deck[e.second] {
		delay = e.cfg.MatchDelay
	}
	epoch := e.epoch
	e.stopResolve = e.deps.Scheduler.AfterFunc(delay, func() { e.resolve(epoch) })
	return nil
}

func (e *Engine) checkSelectable(index int) error {
	switch {
	case e.closed:
		return domain.ErrEngineClosed
	case index < 0 || index >= len(e.state.Deck):
		return fmt.Errorf("%w: card %d out of range", domain.ErrSelectionRejected, index)
	case e.turn.Current() == stateResolving:
		return fmt.Errorf("%w: input locked", domain.ErrSelectionRejected)
	case e.state.GameOver:
		return fmt.Errorf("%w: game over", domain.ErrSelectionRejected)
	case e.state.Matched[index]:
		return fmt.Errorf("%w: card %d already matched", domain.ErrSelectionRejected, index)
	case e.turn.Current() == stateOneSelected && index == e.first:
		return fmt.Errorf("%w: card %d already face up", domain.ErrSelectionRejected, index)
	}
	return nil
}

// resolve settles the two face-up cards once the resolution delay elapsed.
func (e *Engine) resolve(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.closed || e.turn.Current() != stateResolving {
		return
	}
	ctx := context.Background()
	a, b := e.first, e.second
	e.stopResolve = nil

	if e.state.Deck[a] == e.state.Deck[b] {
		e.state.Matched[a] = true
		e.state.Matched[b] = true
		e.deps.View.MarkCardMatched(a, e.state.Deck[a])
		e.deps.View.MarkCardMatched(b, e.state.Deck[b])
		e.persist(ctx)
		e.deps.View.SetMessage(msgMatch)
		e.checkWin(ctx)
	} else {
		e.deps.View.HideCard(a, e.state.Deck[a])
		e.deps.View.HideCard(b, e.state.Deck[b])
		e.deps.View.SetMessage("")
	}

	e.first, e.second = -1, -1
	e.fire(ctx, eventResolve)
	e.settle()
}

// closedChan is returned by Settled when no turn is resolving.
var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Settled returns a channel that is closed once the turn resolving at the
// time of the call has been settled, or replaced by a new game. When no turn
// is resolving the channel is already closed.
func (e *Engine) Settled() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled == nil {
		return closedChan
	}
	return e.settled
}

func (e *Engine) settle() {
	if e.settled != nil {
		close(e.settled)
		e.settled = nil
	}
}

// checkWin ends the game once every card is matched. It is a no-op on a game
// that is already over.
func (e *Engine) checkWin(ctx context.Context) {
	if e.state.GameOver || !e.state.AllMatched() {
		return
	}
	e.state.GameOver = true
	e.persist(ctx)
	e.haltTimer()
	e.deps.View.SetMessage(msgWin)
	e.deps.View.DisableAllCards()
	e.deps.Logger.DebugContext(ctx, "game won", "moves", e.state.Moves, "seconds", e.state.Seconds)
}

func (e *Engine) startTimer(ctx context.Context) {
	if e.state.TimerStarted || e.state.GameOver {
		return
	}
	e.state.TimerStarted = true
	e.persist(ctx)
	e.runTimer()
}

func (e *Engine) runTimer() {
	e.haltTimer()
	epoch := e.epoch
	e.stopTimer = e.deps.Scheduler.Every(e.cfg.TickInterval, func() { e.tick(epoch) })
}

func (e *Engine) haltTimer() {
	if e.stopTimer != nil {
		e.stopTimer()
		e.stopTimer = nil
	}
}

func (e *Engine) tick(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch || e.closed || e.state.GameOver || !e.state.TimerStarted {
		return
	}
	e.state.Seconds++
	e.deps.View.SetTimeDisplay(domain.FormatClock(e.state.Seconds))
	e.persist(context.Background())
}

// SetStyle switches the cosmetic theme. Unknown keys fall back to the default.
func (e *Engine) SetStyle(ctx context.Context, styleKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineClosed
	}
	theme := e.theme(styleKey)
	e.state.StyleKey = theme.Key
	e.persist(ctx)
	e.deps.View.ApplyTheme(theme)
	return nil
}

// Snapshot returns a copy of the current game.
func (e *Engine) Snapshot() domain.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Turn returns the current selection state.
func (e *Engine) Turn() TurnState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TurnState{
		First:  e.first,
		Second: e.second,
		Locked: e.turn.Current() == stateResolving,
	}
}

// TotalMoves reads the durable cross-session move counter.
func (e *Engine) TotalMoves(ctx context.Context) (int64, error) {
	return TotalMoves(ctx, e.deps.Durable)
}

// Close stops the timer, drops any pending resolution and the durable
// subscription. The session slot is left as is.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelPending()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.closed = true
}

func (e *Engine) restore(ctx context.Context) (domain.GameState, bool) {
	raw, ok, err := e.deps.Session.Get(ctx, SessionKey)
	if err != nil {
		e.deps.Logger.WarnContext(ctx, "read saved game", "error", err)
		return domain.GameState{}, false
	}
	if !ok || raw == "" {
		return domain.GameState{}, false
	}
	g, err := domain.DecodeState([]byte(raw))
	if err != nil {
		e.deps.Logger.InfoContext(ctx, "discarding saved game", "error", err)
		return domain.GameState{}, false
	}
	if _, ok := e.deps.Catalog.Difficulty(g.DifficultyKey); !ok {
		g.DifficultyKey = domain.DefaultDifficulty
	}
	g.StyleKey = e.theme(g.StyleKey).Key
	return g, true
}

func (e *Engine) deal(difficultyKey, styleKey string) (domain.GameState, error) {
	d, ok := e.deps.Catalog.Difficulty(difficultyKey)
	if !ok {
		d, ok = e.deps.Catalog.Difficulty(domain.DefaultDifficulty)
		if !ok {
			return domain.GameState{}, fmt.Errorf("catalog has no %q difficulty", domain.DefaultDifficulty)
		}
	}
	g, err := domain.NewGameState(d, e.theme(styleKey).Key, e.deps.RNG)
	if err != nil {
		return domain.GameState{}, fmt.Errorf("deal %s board: %w", d.Key, err)
	}
	return g, nil
}

func (e *Engine) theme(key string) domain.Theme {
	if t, ok := e.deps.Catalog.Theme(key); ok {
		return t
	}
	if t, ok := e.deps.Catalog.Theme(domain.DefaultStyle); ok {
		return t
	}
	return domain.Theme{Key: domain.DefaultStyle}
}

// install makes g the current game, saves it and redraws the whole board.
func (e *Engine) install(ctx context.Context, g domain.GameState) {
	e.cancelPending()
	e.state = g
	e.first, e.second = -1, -1
	e.turn.SetState(stateIdle)
	e.persist(ctx)
	e.render(ctx)
}

func (e *Engine) cancelPending() {
	e.epoch++
	e.haltTimer()
	if e.stopResolve != nil {
		e.stopResolve()
		e.stopResolve = nil
	}
	e.settle()
}

func (e *Engine) render(ctx context.Context) {
	v := e.deps.View
	v.ApplyTheme(e.theme(e.state.StyleKey))
	v.ResetBoard(e.state.Rows, e.state.Cols)
	for i, sym := range e.state.Deck {
		if e.state.Matched[i] {
			v.MarkCardMatched(i, sym)
		} else {
			v.HideCard(i, sym)
		}
	}
	v.SetMovesDisplay(e.state.Moves)
	v.SetTimeDisplay(domain.FormatClock(e.state.Seconds))
	if total, err := e.TotalMoves(ctx); err != nil {
		e.deps.Logger.WarnContext(ctx, "read total moves", "error", err)
	} else {
		v.SetTotalMovesDisplay(total)
	}
	if e.state.GameOver {
		v.SetMessage(msgWin)
		v.DisableAllCards()
	} else {
		v.SetMessage("")
	}
}

// persist writes the game to the session slot. Failures are logged and play
// goes on.
func (e *Engine) persist(ctx context.Context) {
	raw, err := domain.EncodeState(e.state)
	if err != nil {
		e.deps.Logger.ErrorContext(ctx, "encode game", "error", err)
		return
	}
	if err := e.deps.Session.Set(ctx, SessionKey, string(raw)); err != nil {
		e.deps.Logger.WarnContext(ctx, "save game", "error", err)
	}
}

func (e *Engine) countTurn(ctx context.Context) {
	total, err := e.deps.Durable.Incr(ctx, TotalMovesKey, 1)
	if err != nil {
		e.deps.Logger.WarnContext(ctx, "count turn", "error", err)
		return
	}
	e.deps.View.SetTotalMovesDisplay(total)
}

func (e *Engine) onDurableChange(key, value string) {
	if key != TotalMovesKey {
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.deps.View.SetTotalMovesDisplay(n)
}

func (e *Engine) fire(ctx context.Context, event string) {
	// The turn machine must not observe request cancellation.
	if err := e.turn.Event(context.WithoutCancel(ctx), event); err != nil {
		e.deps.Logger.ErrorContext(ctx, "turn transition", "event", event, "state", e.turn.Current(), "error", err)
	}
}

// TotalMoves reads the move counter from durable. A missing counter is zero.
func TotalMoves(ctx context.Context, durable ports.DurableStore) (int64, error) {
	raw, ok, err := durable.Get(ctx, TotalMovesKey)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", TotalMovesKey, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", TotalMovesKey, err)
	}
	return n, nil
}
