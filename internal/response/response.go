// Package response defines the uniform JSON envelope every endpoint returns.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mikaelkraft/quicknote-pro/internal/apperrors"
)

// Response is the uniform API envelope. Code 0 means success; any other
// value is an application error code.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Success returns a 200 envelope with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithMessage returns a 200 envelope with a custom message.
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// Error returns an error envelope with an explicit HTTP status.
func Error(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	c.JSON(status, Response{
		Code:      int(code),
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// BadRequest returns a 400 envelope.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, apperrors.ErrInvalidParams, message)
}

// FromError maps an application error onto the envelope and the matching
// HTTP status. Unknown errors become an opaque 500.
func FromError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case code == apperrors.ErrNotFound, code == apperrors.ErrRemoteNotFound,
		code == apperrors.ErrFileNotFound:
		status = http.StatusNotFound
	case code == apperrors.ErrForbidden:
		status = http.StatusForbidden
	case apperrors.IsAuth(err):
		status = http.StatusUnauthorized
	case code == apperrors.ErrSyncInProgress, code == apperrors.ErrProviderState,
		code == apperrors.ErrStoreConflict:
		status = http.StatusConflict
	case code == apperrors.ErrFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case apperrors.IsQuota(err):
		status = http.StatusInsufficientStorage
	case apperrors.IsValidation(err), code == apperrors.ErrInvalidParams:
		status = http.StatusBadRequest
	case apperrors.IsNetwork(err):
		status = http.StatusBadGateway
	}
	Error(c, status, code, err.Error())
}

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
