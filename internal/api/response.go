package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supplytrack/internal/allocator"
	"supplytrack/internal/cooking"
	"supplytrack/internal/database"
	"supplytrack/internal/qrcode"
	"supplytrack/internal/transit"
)

// errValidation marks malformed request bodies and parameters.
var errValidation = errors.New("validation failed")

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// fail writes err with the status its kind maps to.
func (a *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

func statusFor(err error) int {
	var shortage *allocator.ShortageError
	switch {
	case errors.As(err, &shortage),
		errors.Is(err, transit.ErrInsufficientStock),
		errors.Is(err, cooking.ErrConcurrentUpdate),
		errors.Is(err, transit.ErrInvalidState),
		errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrStockChanged):
		return http.StatusConflict
	case errors.Is(err, errValidation),
		errors.Is(err, cooking.ErrInvalidRequest),
		errors.Is(err, cooking.ErrRecipeUnavailable),
		errors.Is(err, transit.ErrInvalidRequest),
		errors.Is(err, qrcode.ErrInvalidToken),
		errors.Is(err, database.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, cooking.ErrRecipeNotFound),
		errors.Is(err, cooking.ErrNodeNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// bind decodes the JSON body into dst, reporting failures as validation errors.
func bind(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}
