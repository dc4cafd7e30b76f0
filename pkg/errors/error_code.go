package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidType          ErrorCode = 107
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidThreshold     ErrorCode = 112

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound     ErrorCode = 200
	ErrCodeQueryFailed      ErrorCode = 202
	ErrCodeInsufficientData ErrorCode = 204
	ErrCodeDataIntegrity    ErrorCode = 206
	ErrCodeDataSourceNone   ErrorCode = 207

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeUnsupportedStrategy  ErrorCode = 403
	ErrCodeSignalAlignment      ErrorCode = 405

	// Trading errors (500-599)
	ErrCodeInvalidState        ErrorCode = 503
	ErrCodeInsufficientCapital ErrorCode = 504
	ErrCodeUnfilledSignal      ErrorCode = 505
	ErrCodeUnfillablePrice     ErrorCode = 506

	// Backtest errors (600-699)
	ErrCodeEngineReused      ErrorCode = 609
	ErrCodeRunCancelled      ErrorCode = 610
	ErrCodeMetricUndefined   ErrorCode = 611
	ErrCodeResultWriteFailed ErrorCode = 612
	ErrCodeVersionMismatch   ErrorCode = 613

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)

// warningCodes are conditions that are recorded as diagnostics and never abort a run.
var warningCodes = map[ErrorCode]struct{}{
	ErrCodeInsufficientCapital: {},
	ErrCodeMetricUndefined:     {},
	ErrCodeUnfilledSignal:      {},
	ErrCodeUnfillablePrice:     {},
}

// IsWarning reports whether the code describes a non-fatal condition.
func (c ErrorCode) IsWarning() bool {
	_, ok := warningCodes[c]

	return ok
}

var codeNames = map[ErrorCode]string{
	ErrCodeInsufficientData:     "insufficient_data",
	ErrCodeDataIntegrity:        "data_integrity",
	ErrCodeSignalAlignment:      "signal_alignment",
	ErrCodeInvalidState:         "invalid_state",
	ErrCodeEngineReused:         "engine_reused",
	ErrCodeInsufficientCapital:  "insufficient_capital",
	ErrCodeMetricUndefined:      "metric_undefined",
	ErrCodeUnfilledSignal:       "unfilled_signal",
	ErrCodeUnfillablePrice:      "unfillable_price",
	ErrCodeInvalidConfiguration: "invalid_configuration",
	ErrCodeStrategyRuntimeError: "strategy_runtime_error",
	ErrCodeRunCancelled:         "run_cancelled",
	ErrCodeCallbackFailed:       "callback_failed",
	ErrCodeVersionMismatch:      "version_mismatch",
}

// String returns a short name for the code, used in logs and diagnostics.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "unknown"
}

// ParseErrorCode is the inverse of String. Unknown names map to ErrCodeUnknown.
func ParseErrorCode(name string) ErrorCode {
	for code, n := range codeNames {
		if n == name {
			return code
		}
	}

	return ErrCodeUnknown
}
