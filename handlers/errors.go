package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blsnider/invoice-parser/service"
)

// respondError writes the error envelope with the taxonomy code and the
// HTTP status it maps to.
func respondError(c *gin.Context, err error) {
	code := service.ErrorCode(err)

	body := gin.H{
		"error":   true,
		"message": service.ErrorMessage(err),
		"code":    code,
	}

	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Err != nil {
		body["details"] = gin.H{"cause": svcErr.Err.Error()}
	}

	c.JSON(statusFor(code), body)
}

func statusFor(code string) int {
	switch code {
	case service.CodeValidationError,
		service.CodeInvalidFileType,
		service.CodeFileSizeExceeded,
		service.CodeBatchSizeExceeded:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case service.CodeExtractionTimeout:
		return http.StatusGatewayTimeout
	case service.CodeExtractionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
