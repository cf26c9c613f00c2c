// Package apperr maps raw errors onto a fixed taxonomy of error codes with
// user-facing messages, severities, and retryability. The taxonomy is static
// reference data; classification never allocates new Info values.
package apperr

import (
	"errors"
	"strings"
)

type Code string

const (
	CodeNetworkOffline Code = "NETWORK_OFFLINE"
	CodeNetworkTimeout Code = "NETWORK_TIMEOUT"
	CodeNetworkFailure Code = "NETWORK_FAILURE"

	CodeInvalidEmail Code = "INVALID_EMAIL"
	CodeInvalidName  Code = "INVALID_NAME"
	CodeInvalidTable Code = "INVALID_TABLE"

	CodePaymentFailed   Code = "PAYMENT_FAILED"
	CodePaymentDeclined Code = "PAYMENT_DECLINED"
	CodePaymentTimeout  Code = "PAYMENT_TIMEOUT"

	CodeOrderNotFound    Code = "ORDER_NOT_FOUND"
	CodeOrderTimedOut    Code = "ORDER_TIMED_OUT"
	CodeRestaurantClosed Code = "RESTAURANT_CLOSED"

	CodeCartEmpty     Code = "CART_EMPTY"
	CodeCartCorrupted Code = "CART_CORRUPTED"

	CodeServerInternal     Code = "SERVER_INTERNAL"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"

	CodeUnknown Code = "UNKNOWN"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Info is the immutable classification record for one error code.
type Info struct {
	Code           Code
	Message        string
	UserMessage    string
	Severity       Severity
	Retryable      bool
	RecoveryAction string
}

var table = map[Code]Info{
	CodeNetworkOffline: {CodeNetworkOffline, "client is offline", "You appear to be offline.", SeverityMedium, true, "Check internet connection"},
	CodeNetworkTimeout: {CodeNetworkTimeout, "network request timed out", "The connection timed out.", SeverityMedium, true, "Try again in a moment"},
	CodeNetworkFailure: {CodeNetworkFailure, "network request failed", "We couldn't reach the restaurant.", SeverityMedium, true, "Check internet connection"},

	CodeInvalidEmail: {CodeInvalidEmail, "email address is invalid", "Please enter a valid email address.", SeverityLow, false, "Correct the email field"},
	CodeInvalidName:  {CodeInvalidName, "customer name is invalid", "Please enter a valid name.", SeverityLow, false, "Correct the name field"},
	CodeInvalidTable: {CodeInvalidTable, "table identifier is invalid", "This table code isn't valid. Re-scan the QR code.", SeverityMedium, false, "Re-scan the QR code"},

	CodePaymentFailed:   {CodePaymentFailed, "payment failed", "Your payment didn't go through.", SeverityHigh, true, "Try a different payment method"},
	CodePaymentDeclined: {CodePaymentDeclined, "payment was declined", "Your card was declined.", SeverityHigh, false, "Try a different payment method"},
	CodePaymentTimeout:  {CodePaymentTimeout, "payment processing timed out", "Payment is taking too long.", SeverityHigh, true, "Try again in a moment"},

	CodeOrderNotFound:    {CodeOrderNotFound, "order not found", "We can't find this order anymore.", SeverityHigh, false, "Contact staff"},
	CodeOrderTimedOut:    {CodeOrderTimedOut, "order timed out", "This order expired before it was confirmed.", SeverityMedium, false, "Place the order again"},
	CodeRestaurantClosed: {CodeRestaurantClosed, "restaurant is closed", "The restaurant is currently closed.", SeverityMedium, false, "Try again during opening hours"},

	CodeCartEmpty:     {CodeCartEmpty, "cart is empty", "Your cart is empty.", SeverityLow, false, "Add items before ordering"},
	CodeCartCorrupted: {CodeCartCorrupted, "stored cart failed validation", "Your saved cart couldn't be restored and was cleared.", SeverityMedium, false, "Re-add your items"},

	CodeServerInternal:     {CodeServerInternal, "internal server error", "Something went wrong on our side.", SeverityHigh, true, "Try again in a moment"},
	CodeServiceUnavailable: {CodeServiceUnavailable, "service unavailable", "The service is temporarily unavailable.", SeverityHigh, true, "Try again in a moment"},

	CodeUnknown: {CodeUnknown, "unknown error", "Something unexpected happened.", SeverityMedium, true, "Try again"},
}

// Error carries an explicit taxonomy code on a wrapped cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error carrying the given code.
func New(code Code) error { return &Error{Code: code} }

// Wrap attaches a code to an existing error, preserving the chain.
func Wrap(code Code, err error) error { return &Error{Code: code, Err: err} }

// GetInfo resolves any error to a taxonomy entry. It is total: a nil error,
// an uncoded error, or an unrecognized code all resolve to the unknown entry
// (or a heuristic match on the message).
func GetInfo(err error) Info {
	if err == nil {
		return table[CodeUnknown]
	}
	var ce *Error
	if errors.As(err, &ce) {
		if info, ok := table[ce.Code]; ok {
			return info
		}
	}
	return table[matchMessage(err.Error())]
}

// matchMessage picks a fallback code from well-known substrings.
func matchMessage(msg string) Code {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "offline"):
		return CodeNetworkOffline
	case strings.Contains(m, "order") && (strings.Contains(m, "timed out") || strings.Contains(m, "timeout")):
		return CodeOrderTimedOut
	case strings.Contains(m, "timeout"), strings.Contains(m, "timed out"):
		return CodeNetworkTimeout
	case strings.Contains(m, "declined"):
		return CodePaymentDeclined
	case strings.Contains(m, "payment"):
		return CodePaymentFailed
	case strings.Contains(m, "order not found"), strings.Contains(m, "no such order"):
		return CodeOrderNotFound
	case strings.Contains(m, "closed"):
		return CodeRestaurantClosed
	case strings.Contains(m, "unavailable"):
		return CodeServiceUnavailable
	case strings.Contains(m, "network"), strings.Contains(m, "connection"):
		return CodeNetworkFailure
	default:
		return CodeUnknown
	}
}

func IsRetryable(err error) bool { return GetInfo(err).Retryable }

func GetSeverity(err error) Severity { return GetInfo(err).Severity }

// ShouldShowToUser reports whether the error belongs on a user-facing
// surface. Low-severity errors are shown inline, never as notifications.
func ShouldShowToUser(err error) bool { return GetInfo(err).Severity != SeverityLow }
