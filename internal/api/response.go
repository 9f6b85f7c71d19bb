package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SuccessResponse is the envelope for every successful call.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorResponse is the envelope for every failed call. Errors holds the
// per-field breakdown of validation failures.
type ErrorResponse struct {
	Success   bool              `json:"success"`
	Error     string            `json:"error"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// respondError renders err as an ErrorResponse. Errors without a kind are
// treated as internal and their detail is only logged.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("request", err)
	}

	message := appErr.Message
	if appErr.Kind == apperr.KindInternal {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		message = "internal server error"
	}

	c.AbortWithStatusJSON(apperr.HTTPStatus(appErr.Kind), ErrorResponse{
		Success:   false,
		Error:     message,
		Errors:    appErr.Fields,
		Timestamp: time.Now().UTC(),
	})
}

// bindingError converts a gin binding failure into a validation error.
func bindingError(err error) *apperr.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("malformed request body", map[string]string{"body": err.Error()})
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return apperr.Validation("invalid request body", fields)
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func notFoundRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Success:   false,
		Error:     "route not found",
		Timestamp: time.Now().UTC(),
	})
}
