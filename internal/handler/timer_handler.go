package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "pomodoro/timerd/internal/errors"
	"pomodoro/timerd/internal/model"
)

type StateReader interface {
	State() model.TimerState
}

type HistoryReader interface {
	ListHistory(ctx context.Context, limit int) ([]model.SessionHistoryEntry, error)
}

type StatsReader interface {
	Today(ctx context.Context) (model.DailyStats, error)
}

// TimerHandler serves read-only views of the timer, history and daily stats.
type TimerHandler struct {
	engine  StateReader
	history HistoryReader
	stats   StatsReader
}

func NewTimerHandler(engine StateReader, history HistoryReader, stats StatsReader) *TimerHandler {
	return &TimerHandler{engine: engine, history: history, stats: stats}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.State())
}

func (h *TimerHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	sessions, err := h.history.ListHistory(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list history")
		writeError(c, apperrors.Internal("failed to list history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *TimerHandler) GetToday(c *gin.Context) {
	stats, err := h.stats.Today(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load daily stats")
		writeError(c, apperrors.Internal("failed to load daily stats"))
		return
	}
	c.JSON(http.StatusOK, stats)
}
