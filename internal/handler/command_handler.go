package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/timerd/internal/channel"
	apperrors "pomodoro/timerd/internal/errors"
)

type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd channel.Command) (any, *apperrors.APIError)
}

// CommandHandler carries Event Channel commands over HTTP.
type CommandHandler struct {
	dispatcher CommandDispatcher
}

func NewCommandHandler(dispatcher CommandDispatcher) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher}
}

// Dispatch answers 200 with the command's response, or 204 when the command
// has none and its outcome arrives on the event stream.
func (h *CommandHandler) Dispatch(c *gin.Context) {
	var cmd channel.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		invalidJSON(c, err)
		return
	}

	resp, apiErr := h.dispatcher.Dispatch(c.Request.Context(), cmd)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}
