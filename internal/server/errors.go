package server

import (
	"errors"
	"net/http"

	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/gin-gonic/gin"
)

var ErrNotFound = errors.New("not found")

// FieldError names a trigger parameter that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InvalidTrigger is returned for a process call whose query parameters are
// missing or malformed.
type InvalidTrigger struct {
	Fields []FieldError
}

func (e *InvalidTrigger) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	return "invalid trigger parameters"
}

func invalidField(field, code, message string) error {
	return &InvalidTrigger{Fields: []FieldError{{Field: field, Code: code, Message: message}}}
}

type errorBody struct {
	Type    string       `json:"type"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// ErrorHandlingMiddleware renders the last handler error as JSON unless the
// handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		status, body := mapError(c.Errors.Last().Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: body})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
		c.Abort()
	}
}

func mapError(err error) (int, errorBody) {
	var trigger *InvalidTrigger
	switch {
	case errors.As(err, &trigger):
		return http.StatusBadRequest, errorBody{Type: "validation_error", Message: "validation error", Errors: trigger.Fields}
	case errors.Is(err, coordinator.ErrInvalidMode),
		errors.Is(err, coordinator.ErrInvalidInput),
		errors.Is(err, requestdomain.ErrInvalidBillCycle):
		return http.StatusBadRequest, errorBody{Type: "validation_error", Message: err.Error()}
	case errors.Is(err, ErrNotFound), errors.Is(err, requestdomain.ErrRequestNotFound):
		return http.StatusNotFound, errorBody{Type: "not_found", Message: "not found"}
	default:
		return http.StatusInternalServerError, errorBody{Type: "internal_error", Message: "internal server error"}
	}
}
