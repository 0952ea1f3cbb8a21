package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	exportdomain "github.com/smallbiznis/repairdesk/internal/export/domain"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/smallbiznis/repairdesk/pkg/db"
)

// errorResponse is the body of every failed API call. It never carries
// internal error text.
type errorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrNotFound           = errors.New("not_found")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrInternal           = errors.New("internal_error")
)

const (
	msgMissingRequired    = "Заполните имя и телефон"
	msgPersistenceFailed  = "Не удалось сохранить заявку"
	msgInvalidRequest     = "Некорректный запрос"
	msgForbidden          = "Доступ запрещён"
	msgRateLimited        = "Слишком много заявок. Попробуйте позже."
	msgNotFound           = "Страница не найдена"
	msgServiceUnavailable = "Сервис временно недоступен"
	msgInternal           = "Внутренняя ошибка сервера"
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorResponse{Message: msgInternal}
	case errors.Is(err, requestdomain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Message: msgMissingRequired}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return http.StatusBadRequest, errorResponse{Message: msgInvalidRequest}
	case errors.Is(err, requestdomain.ErrPersistenceFailed):
		return http.StatusInternalServerError, errorResponse{Message: msgPersistenceFailed}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, exportdomain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Message: msgForbidden}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Message: msgRateLimited}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: msgNotFound}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Message: msgServiceUnavailable}
	default:
		return http.StatusInternalServerError, errorResponse{Message: msgInternal}
	}
}

// classifyErrorForLog returns the error type and code attached to the
// access log line of a failed request.
func classifyErrorForLog(err error) (string, string) {
	var vErr *requestdomain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return "validation_error", string(vErr.Reason)
	case errors.Is(err, requestdomain.ErrInvalidInput):
		return "validation_error", requestdomain.ErrInvalidInput.Error()
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return "validation_error", err.Error()
	case errors.Is(err, requestdomain.ErrPersistenceFailed):
		return "persistence_error", db.Classify(err)
	case errors.Is(err, ErrForbidden), errors.Is(err, exportdomain.ErrForbidden):
		return "forbidden", "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found", "not_found"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable", "service_unavailable"
	default:
		return "internal_error", "internal_error"
	}
}
