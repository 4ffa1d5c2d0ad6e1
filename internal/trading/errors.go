package trading

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	ErrInsufficientLiquidity ErrorCode = "INSUFFICIENT_LIQUIDITY"
	ErrExcessiveSlippage     ErrorCode = "EXCESSIVE_SLIPPAGE"
	ErrPriceImpactTooHigh    ErrorCode = "PRICE_IMPACT_TOO_HIGH"
	ErrTransactionFailed     ErrorCode = "TRANSACTION_FAILED"
	ErrRouteNotFound         ErrorCode = "ROUTE_NOT_FOUND"
	ErrTokenNotTradeable     ErrorCode = "TOKEN_NOT_TRADEABLE"
	ErrDeadlineExceeded      ErrorCode = "DEADLINE_EXCEEDED"
	ErrGasPriceTooHigh       ErrorCode = "GAS_PRICE_TOO_HIGH"
	ErrMEVAttackDetected     ErrorCode = "MEV_ATTACK_DETECTED"
	ErrUnknown               ErrorCode = "UNKNOWN_ERROR"
)

// Error is the typed trade error. Precondition violations are returned as a
// plain error before any chain write; execution failures travel inside
// TradeResult.Error instead.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// CodeOf extracts the trade error code, or UNKNOWN_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrUnknown
}
