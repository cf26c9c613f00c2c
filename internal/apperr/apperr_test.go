package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo_CodedErrors(t *testing.T) {
	info := GetInfo(New(CodePaymentDeclined))
	assert.Equal(t, CodePaymentDeclined, info.Code)
	assert.False(t, info.Retryable)
	assert.Equal(t, SeverityHigh, info.Severity)

	// codes survive wrapping
	wrapped := fmt.Errorf("submit: %w", Wrap(CodeNetworkTimeout, errors.New("dial tcp")))
	assert.Equal(t, CodeNetworkTimeout, GetInfo(wrapped).Code)
}

func TestGetInfo_MessageHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		code Code
	}{
		{"request timed out after 5s", CodeNetworkTimeout},
		{"order timed out", CodeOrderTimedOut},
		{"order timeout exceeded", CodeOrderTimedOut},
		{"client is offline", CodeNetworkOffline},
		{"connection refused", CodeNetworkFailure},
		{"payment gateway rejected", CodePaymentFailed},
		{"card declined", CodePaymentDeclined},
		{"order not found", CodeOrderNotFound},
		{"restaurant closed until 9am", CodeRestaurantClosed},
		{"service unavailable", CodeServiceUnavailable},
		{"something weird", CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, GetInfo(errors.New(c.msg)).Code, c.msg)
	}
}

func TestGetInfo_Total(t *testing.T) {
	// nil and degenerate inputs still resolve to a valid entry
	assert.Equal(t, CodeUnknown, GetInfo(nil).Code)
	assert.NotEmpty(t, GetInfo(nil).UserMessage)
	assert.Equal(t, CodeUnknown, GetInfo(errors.New("")).Code)
	assert.Equal(t, CodeUnknown, GetInfo(&Error{Code: Code("BOGUS")}).Code)
}

func TestDerivedLookups(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeServerInternal)))
	assert.False(t, IsRetryable(New(CodeInvalidEmail)))
	assert.Equal(t, SeverityLow, GetSeverity(New(CodeCartEmpty)))

	// low severity errors stay off global surfaces
	assert.False(t, ShouldShowToUser(New(CodeInvalidName)))
	assert.True(t, ShouldShowToUser(New(CodeCartCorrupted)))
}

func TestEveryCodeHasUserMessage(t *testing.T) {
	for code, info := range table {
		assert.Equal(t, code, info.Code)
		assert.NotEmpty(t, info.UserMessage, code)
		assert.NotEmpty(t, info.RecoveryAction, code)
	}
}
