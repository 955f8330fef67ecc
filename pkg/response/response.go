package response

import (
	"errors"
	"net/http"
	"time"

	"solana-custody-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey matches the key the request id middleware stores under.
const requestIDKey = "request_id"

// now is replaced in tests.
var now = time.Now

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope. Retryable marks failures
// caused by unavailable dependencies or throttling.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

var errInternal = apperror.New("SYS_000", "Internal server error", http.StatusInternalServerError)

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

// Error maps err to its AppError envelope; anything else is a 500 with a
// generic message. The original error is attached to the gin context so the
// request logger records it.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = errInternal
	}

	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		Retryable: retryable(appErr.HTTPStatus),
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// requestID prefers the middleware-assigned id, then the inbound header.
func requestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	if c.Request != nil {
		if id := c.GetHeader("X-Request-ID"); id != "" && len(id) <= 64 {
			return id
		}
	}
	return uuid.New().String()
}

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}
