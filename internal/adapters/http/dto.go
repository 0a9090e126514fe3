package http

// Card faces as seen by clients. Symbols of face-down cards are never sent.
const (
	FaceDown    = "down"
	FaceUp      = "up"
	FaceMatched = "matched"
)

// BoardResponse is the JSON shape of a session's board.
type BoardResponse struct {
	Session    string            `json:"session"`
	Difficulty string            `json:"difficulty,omitempty"`
	Style      string            `json:"style"`
	Rows       int               `json:"rows"`
	Cols       int               `json:"cols"`
	Cards      []CardResponse    `json:"cards"`
	Moves      int               `json:"moves"`
	Time       string            `json:"time"`
	TotalMoves int64             `json:"total_moves"`
	Message    string            `json:"message"`
	Disabled   bool              `json:"disabled"`
	Theme      map[string]string `json:"theme,omitempty"`
}

type CardResponse struct {
	Index  int    `json:"index"`
	Face   string `json:"face"`
	Symbol string `json:"symbol,omitempty"`
}

type OptionsResponse struct {
	Difficulties []DifficultyResponse `json:"difficulties"`
	Themes       []ThemeResponse      `json:"themes"`
}

type DifficultyResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
}

type ThemeResponse struct {
	Key   string            `json:"key"`
	Label string            `json:"label"`
	Vars  map[string]string `json:"vars,omitempty"`
}

type StatsResponse struct {
	TotalMoves int64 `json:"total_moves"`
	Sessions   int   `json:"sessions"`
}

type NewGameRequest struct {
	Difficulty string `json:"difficulty"`
	Style      string `json:"style"`
}

type SelectRequest struct {
	Index *int `json:"index"`
}

// SelectResponse reports whether the selection applied. Ignored selections
// leave the board unchanged.
type SelectResponse struct {
	Board   BoardResponse `json:"board"`
	Ignored bool          `json:"ignored"`
	Reason  string        `json:"reason,omitempty"`
}

type StyleRequest struct {
	Style string `json:"style"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Event types pushed over the websocket stream.
const (
	EventBoard      = "board"
	EventReset      = "reset"
	EventTheme      = "theme"
	EventReveal     = "reveal"
	EventHide       = "hide"
	EventMatched    = "matched"
	EventMoves      = "moves"
	EventTime       = "time"
	EventTotalMoves = "total_moves"
	EventStatus     = "message"
	EventDisabled   = "disabled"
)

// EventMessage is one render instruction on the websocket stream.
type EventMessage struct {
	Type   string         `json:"type"`
	Index  *int           `json:"index,omitempty"`
	Symbol string         `json:"symbol,omitempty"`
	Rows   int            `json:"rows,omitempty"`
	Cols   int            `json:"cols,omitempty"`
	Count  *int64         `json:"count,omitempty"`
	Text   *string        `json:"text,omitempty"`
	Theme  *ThemeResponse `json:"theme,omitempty"`
	Board  *BoardResponse `json:"board,omitempty"`
}

// ClientMessage is a command sent by a websocket client.
type ClientMessage struct {
	Type       string `json:"type"`
	Index      int    `json:"index"`
	Difficulty string `json:"difficulty,omitempty"`
	Style      string `json:"style,omitempty"`
}
