package httperror

// Error codes surfaced to clients in the response envelope. The set mirrors
// the platform's fault taxonomy; clients use them for translations and retry
// decisions.
const (
	CodeValidation             = "VALIDATION"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeLimitExceeded          = "LIMIT_EXCEEDED"
	CodeNotFound               = "NOT_FOUND"
	CodeDuplicate              = "DUPLICATE"
	CodeIdempotencyReplay      = "IDEMPOTENCY_REPLAY"
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeConcurrency            = "CONCURRENCY"
	CodeDependency             = "DEPENDENCY"
	CodeInternal               = "INTERNAL"
)
