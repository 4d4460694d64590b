package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden             ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest            ErrorCode = "BAD_REQUEST"
	ErrCodeConflict              ErrorCode = "CONFLICT"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeAuthenticity          ErrorCode = "AUTHENTICITY_ERROR"
	ErrCodeInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodePaymentRequired       ErrorCode = "PAYMENT_REQUIRED"
	ErrCodeGateway               ErrorCode = "GATEWAY_ERROR"
	ErrCodeGatewayTimeout        ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeInternalInconsistency ErrorCode = "INTERNAL_INCONSISTENCY"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeAuthenticity, ErrCodeInsufficientBalance:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodePaymentRequired:
		return http.StatusPaymentRequired
	case ErrCodeGateway:
		return http.StatusBadGateway
	case ErrCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Validation - некорректный или выходящий за допустимые границы ввод.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// Authenticity - подпись вебхука не прошла проверку.
func Authenticity(cause error) *AppError {
	return Wrap(cause, ErrCodeAuthenticity, "подпись вебхука недействительна")
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// Conflict - недопустимый переход состояния или дубликат.
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func Inconsistency(message string) *AppError {
	return New(ErrCodeInternalInconsistency, message)
}

// Gateway оборачивает ошибку платёжного шлюза. Истёкший дедлайн даёт GATEWAY_TIMEOUT.
func Gateway(cause error) *AppError {
	if errors.Is(cause, context.DeadlineExceeded) {
		return Wrap(cause, ErrCodeGatewayTimeout, "платёжный шлюз не ответил вовремя")
	}
	return Wrap(cause, ErrCodeGateway, "ошибка платёжного шлюза")
}

// Internal оборачивает непредвиденную ошибку. AppError пробрасывается как есть.
func Internal(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

var (
	ErrOrderNotFound        = New(ErrCodeNotFound, "заказ не найден")
	ErrAgreementNotFound    = New(ErrCodeNotFound, "соглашение не найдено")
	ErrPaymentNotFound      = New(ErrCodeNotFound, "платёж не найден")
	ErrEscrowNotFound       = New(ErrCodeNotFound, "эскроу не найден")
	ErrWithdrawalNotFound   = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrSubmissionNotFound   = New(ErrCodeNotFound, "работа не найдена")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInsufficientBalance  = New(ErrCodeInsufficientBalance, "недостаточно средств на балансе")
	ErrPaymentRequired      = New(ErrCodePaymentRequired, "сначала необходимо оплатить заказ")
	ErrWithdrawalInProgress = New(ErrCodeConflict, "у вас уже есть активная заявка на вывод")
)
