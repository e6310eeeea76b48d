package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidGraph         ErrorCode = 102
	ErrCodeUnknownNodeType      ErrorCode = 103
	ErrCodeOrphanNode           ErrorCode = 104
	ErrCodeDanglingEdge         ErrorCode = 105
	ErrCodeMissingStartNode     ErrorCode = 106
	ErrCodeInvalidType          ErrorCode = 107
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeInvalidTimeframe     ErrorCode = 111
	ErrCodeInvalidOperator      ErrorCode = 112
	ErrCodeInvalidOffset        ErrorCode = 113

	// Data errors (200-299)
	ErrCodeSeriesNotFound        ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeHistoricalDataFailed  ErrorCode = 203
	ErrCodeNoDataFound           ErrorCode = 204
	ErrCodeCacheMiss             ErrorCode = 205
	ErrCodeOutOfOrderData        ErrorCode = 206
	ErrCodeStrategyNotFound      ErrorCode = 207
	ErrCodeStrategyFetchFailed   ErrorCode = 208

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Condition errors (400-499)
	ErrCodeConditionResolution ErrorCode = 400
	ErrCodeOperandTypeMismatch ErrorCode = 401
	ErrCodeUnknownOperandKind  ErrorCode = 402

	// Session errors (500-599)
	ErrCodeSessionNotFound      ErrorCode = 500
	ErrCodeSessionAlreadyExists ErrorCode = 501
	ErrCodeSessionNotRunning    ErrorCode = 502
	ErrCodeSessionLimitReached  ErrorCode = 503
	ErrCodeBudgetExceeded       ErrorCode = 504
	ErrCodeEngineInitFailed     ErrorCode = 505
	ErrCodeEngineRunFailed      ErrorCode = 506

	// Output errors (600-699)
	ErrCodeOutputWriteFailed ErrorCode = 600
	ErrCodeOutputDirFailed   ErrorCode = 601
	ErrCodeEncodeFailed      ErrorCode = 602

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidTimespan       ErrorCode = 703
	ErrCodeInvalidProvider       ErrorCode = 704
)
