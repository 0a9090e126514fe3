package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/pairs-go/internal/app"
	"github.com/randomtoy/pairs-go/internal/domain"
)

// Sessions is the registry the handler serves.
type Sessions = app.Sessions[*BoardView]

type Handler struct {
	sessions *Sessions
	logger   *slog.Logger
}

func NewHandler(sessions *Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sessions: sessions, logger: logger}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/v1/options", h.Options)
	e.GET("/v1/stats", h.Stats)

	g := e.Group("/v1/sessions")
	g.POST("", h.CreateSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.DeleteSession)
	g.POST("/:id/games", h.NewGame)
	g.POST("/:id/select", h.Select)
	g.PUT("/:id/style", h.SetStyle)
	g.GET("/:id/ws", h.Stream)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Options(c echo.Context) error {
	cat := h.sessions.Catalog()
	resp := OptionsResponse{}
	for _, d := range cat.Difficulties() {
		resp.Difficulties = append(resp.Difficulties, DifficultyResponse{Key: d.Key, Label: d.Label, Rows: d.Rows, Cols: d.Cols})
	}
	for _, t := range cat.Themes() {
		resp.Themes = append(resp.Themes, toTheme(t))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Stats(c echo.Context) error {
	total, err := h.sessions.TotalMoves(c.Request().Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, StatsResponse{TotalMoves: total, Sessions: h.sessions.Len()})
}

func (h *Handler) CreateSession(c echo.Context) error {
	sess, err := h.sessions.Open(c.Request().Context(), "")
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, boardOf(sess))
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, boardOf(sess))
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.sessions.Close(c.Request().Context(), c.Param("id")); err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) NewGame(c echo.Context) error {
	var req NewGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	if err := sess.Engine.NewGame(c.Request().Context(), req.Difficulty, req.Style); err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, boardOf(sess))
}

func (h *Handler) Select(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Index == nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "index is required"})
	}
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	resp := SelectResponse{}
	if err := sess.Engine.Select(c.Request().Context(), *req.Index); err != nil {
		if !errors.Is(err, domain.ErrSelectionRejected) {
			return h.mapError(c, err)
		}
		resp.Ignored = true
		resp.Reason = err.Error()
	}
	resp.Board = boardOf(sess)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SetStyle(c echo.Context) error {
	var req StyleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	if err := sess.Engine.SetStyle(c.Request().Context(), req.Style); err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, boardOf(sess))
}

func boardOf(sess *app.Session[*BoardView]) BoardResponse {
	b := sess.View.Board()
	g := sess.Engine.Snapshot()
	b.Difficulty = g.DifficultyKey
	b.Style = g.StyleKey
	return b
}

func (h *Handler) mapError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	switch {
	case errors.Is(err, domain.ErrUnknownSession), errors.Is(err, domain.ErrEngineClosed):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case errors.Is(err, domain.ErrOddCardCount), errors.Is(err, domain.ErrBoardTooSmall),
		errors.Is(err, domain.ErrAlphabetExhausted):
		h.logger.Error("board configuration", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
