package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeCircuitOpen, "circuit breaker is open")
	suite.Equal(ErrCodeCircuitOpen, err.Code)
	suite.Equal("[702] circuit breaker is open", err.Error())
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeInvalidTicker, "unknown ticker %s", "SBER")
	suite.Equal("[204] unknown ticker SBER", err.Error())
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeRequestFailed, "quote request failed", cause)

	suite.Equal("[700] quote request failed: connection refused", err.Error())
	suite.True(errors.Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"structured error", New(ErrCodeDailyLimitHit, "limit"), ErrCodeDailyLimitHit},
		{"wrapped structured error", fmt.Errorf("outer: %w", New(ErrCodeCircuitOpen, "open")), ErrCodeCircuitOpen},
		{"plain error", fmt.Errorf("plain"), ErrCodeUnknown},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, GetCode(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := Wrap(ErrCodeEngineStartFailed, "start failed", New(ErrCodeDependencyUnhealthy, "market data down"))
	suite.True(HasCode(err, ErrCodeEngineStartFailed))
	suite.False(HasCode(err, ErrCodeCircuitOpen))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataError(30, 12, "need 30 candles, have 12")
	suite.Equal("need 30 candles, have 12", err.Error())
	suite.True(IsInsufficientDataError(err))
	suite.True(IsInsufficientDataError(fmt.Errorf("wrapped: %w", err)))
	suite.False(IsInsufficientDataError(fmt.Errorf("plain")))
}
