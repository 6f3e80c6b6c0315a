package httpapi

import (
	"errors"
	"net/http"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/logger"

	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// AbortWithError 记录错误并中止，由 errorHandler 统一输出
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func badRequest(field, message string) error {
	return &models.ValidationError{Field: field, Message: message}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		status, payload := mapError(c.Errors.Last().Err)
		if status >= http.StatusInternalServerError {
			logger.L().Errorf("HTTP %s %s failed: %v", c.Request.Method, c.FullPath(), c.Errors.Last().Err)
		}
		c.JSON(status, payload)
	}
}

func mapError(err error) (int, errorPayload) {
	var validation *models.ValidationError
	var busy *models.BusyError
	var submission *models.SubmissionError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorPayload{Error: validation.UserMessage(), Kind: string(validation.Kind())}
	case errors.As(err, &busy):
		return http.StatusConflict, errorPayload{Error: busy.UserMessage(), Kind: string(busy.Kind()), Retryable: true}
	case errors.As(err, &submission):
		status := http.StatusInternalServerError
		if submission.Retryable {
			status = http.StatusServiceUnavailable
		}
		return status, errorPayload{Error: submission.UserMessage(), Kind: string(submission.Kind()), Retryable: submission.Retryable}
	}
	return http.StatusInternalServerError, errorPayload{Error: "internal server error", Kind: "internal"}
}
