package response

import (
	"net/http"

	"storefront/pkg/apperr"
	"storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// ErrorBody 错误响应结构
type ErrorBody struct {
	Code    int         `json:"code"`              // 业务码
	Error   string      `json:"error"`             // 对外提示
	Reason  string      `json:"reason,omitempty"`  // 机器可读错误码
	Details interface{} `json:"details,omitempty"` // 例如库存不足的完整明细
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, ErrorBody{
		Code:  errCode,
		Error: msg,
	})
}

// FromError 将应用错误转换为 HTTP 响应；内部错误只记录日志，不向客户端泄露细节
func FromError(c *gin.Context, err error) {
	e := apperr.As(err)
	if e == nil || e.Kind == apperr.KindInternal {
		logger.Log.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		Error(c, http.StatusInternalServerError, ErrServerInternal, "internal server error")
		return
	}

	c.JSON(apperr.HTTPStatus(e.Kind), ErrorBody{
		Code:    businessCode(e),
		Error:   e.Message,
		Reason:  e.Code,
		Details: e.Details,
	})
}

func businessCode(e *apperr.Error) int {
	switch e.Code {
	case apperr.CodeInsufficientStock:
		return ErrInsufficientStock
	case apperr.CodeProductUnavailable:
		return ErrProductUnavailable
	case apperr.CodeOrderAmountOutOfBounds:
		return ErrOrderAmountOutOfRange
	case apperr.CodeInvalidTransition:
		return ErrInvalidTransition
	case apperr.CodeInsufficientBalance:
		return ErrInsufficientBalance
	case apperr.CodeDuplicateReference:
		return ErrDuplicateReference
	}

	switch e.Kind {
	case apperr.KindUnauthorized:
		return ErrTokenInvalid
	case apperr.KindForbidden:
		return ErrNoPermission
	case apperr.KindNotFound:
		return ErrNotFound
	case apperr.KindRateLimited:
		return ErrTooManyRequests
	case apperr.KindExternalService:
		return ErrPaymentNotVerified
	default:
		return ErrInvalidParam
	}
}
