package errors

// ErrorCode identifies the category and kind of an error.
type ErrorCode int

const (
	// General errors (1-99).
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199).
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidRequest       ErrorCode = 102
	ErrCodeInsufficientData     ErrorCode = 103

	// Data/Resource errors (200-299).
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeNoDataFound   ErrorCode = 201
	ErrCodeDecodeFailed  ErrorCode = 202
	ErrCodeWriteFailed   ErrorCode = 203
	ErrCodeInvalidTicker ErrorCode = 204

	// Trading errors (500-599).
	ErrCodeExecutionFailed  ErrorCode = 500
	ErrCodePositionNotFound ErrorCode = 501
	ErrCodeDailyLimitHit    ErrorCode = 502

	// Backtest errors (600-699).
	ErrCodeBacktestInitFailed ErrorCode = 600
	ErrCodeBacktestRunFailed  ErrorCode = 601

	// Market data errors (700-799).
	ErrCodeRequestFailed      ErrorCode = 700
	ErrCodeRequestTimeout     ErrorCode = 701
	ErrCodeCircuitOpen        ErrorCode = 702
	ErrCodeClientNotStarted   ErrorCode = 703
	ErrCodeUnexpectedResponse ErrorCode = 704

	// Engine lifecycle errors (800-899).
	ErrCodeEngineNotRunning    ErrorCode = 800
	ErrCodeEngineStartFailed   ErrorCode = 801
	ErrCodeDependencyUnhealthy ErrorCode = 802
	ErrCodeCallbackFailed      ErrorCode = 803
)
