package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类，决定 HTTP 状态码与对外暴露的信息
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBusinessRule
	KindDuplicateReference
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindDuplicateReference:
		return "duplicate_reference"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// 业务错误码
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeProductUnavailable     = "PRODUCT_UNAVAILABLE"
	CodeOrderAmountOutOfBounds = "ORDER_AMOUNT_OUT_OF_BOUNDS"
	CodeInsufficientBalance    = "INSUFFICIENT_WALLET_BALANCE"
	CodeTotalMismatch          = "TOTAL_MISMATCH"
	CodeDiscountNotAvailable   = "DISCOUNT_NOT_AVAILABLE"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeDuplicateReference     = "DUPLICATE_REFERENCE"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeRateLimited            = "RATE_LIMITED"
	CodeExternalService        = "EXTERNAL_SERVICE_ERROR"
	CodeInternal               = "INTERNAL_ERROR"
)

// Error 应用错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind + Code 比较，使 errors.Is(err, ErrDuplicateReference) 对包装后的错误同样成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithDetails 返回携带详情的副本
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap 返回包装底层错误的副本
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrDuplicateReference = &Error{
		Kind:    KindDuplicateReference,
		Code:    CodeDuplicateReference,
		Message: "this payment reference cannot be processed, please contact support",
	}
	ErrForbidden    = &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "you do not have access to this resource"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "authentication required"}
	ErrNotFound     = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "resource not found"}
	ErrRateLimited  = &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal     = &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal server error"}
)

func Validation(code, msg string) *Error {
	if code == "" {
		code = CodeValidation
	}
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func BusinessRule(code, msg string) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

func External(msg string, err error) *Error {
	return &Error{Kind: KindExternalService, Code: CodeExternalService, Message: msg, Err: err}
}

func Internal(err error) *Error {
	return ErrInternal.Wrap(err)
}

// As 提取 *Error；非应用错误返回 nil
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf 返回错误分类，未知错误视为 Internal
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus 错误分类到 HTTP 状态码的映射
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindBusinessRule, KindDuplicateReference:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindExternalService:
		// 银行接口异常对外表现为“待人工审核”，不作为 5xx 暴露
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
