package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "pomodoro/timerd/internal/errors"
)

// writeError renders {"error": {...}}. A nil error is reported as internal.
func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		apiErr = apperrors.Internal("")
	}

	body := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.JSON(apiErr.Status, gin.H{"error": body})
}

func invalidJSON(c *gin.Context, err error) {
	apiErr := apperrors.BadRequest(apperrors.CodeInvalidJSON, "invalid request body")
	apiErr.Details = err.Error()
	writeError(c, apiErr)
}
