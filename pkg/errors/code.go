package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth errors
// 12000-12999: Problem errors
// 13000-13999: Submission & Evaluation errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Queue errors (10300-10399)
	QueueError         ErrorCode = 10300
	QueuePublishFailed ErrorCode = 10301

	// Storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// Validation errors (10500-10599)
	ValidationFailed ErrorCode = 10500

	// ========== User & Auth Errors (11000-11999) ==========

	InvalidCredentials ErrorCode = 11000
	UserNotFound       ErrorCode = 11001
	TokenExpired       ErrorCode = 11002
	TokenInvalid       ErrorCode = 11003

	// ========== Problem Errors (12000-12999) ==========

	ProblemNotFound ErrorCode = 12000

	// ========== Submission & Evaluation Errors (13000-13999) ==========

	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004
	InvalidStatusChange    ErrorCode = 13005

	EvaluationDispatchFailed ErrorCode = 13100
	ResultWriteFailed        ErrorCode = 13101
	SandboxUnavailable       ErrorCode = 13102
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	CacheError: "Cache operation failed",

	QueueError:         "Message queue operation failed",
	QueuePublishFailed: "Failed to publish message",

	StorageError: "Object storage operation failed",

	ValidationFailed: "Validation failed",

	InvalidCredentials: "Invalid username or password",
	UserNotFound:       "User not found",
	TokenExpired:       "Token has expired",
	TokenInvalid:       "Invalid token",

	ProblemNotFound: "Problem not found",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	SubmitTooFrequently:    "Submitting too frequently, please wait",
	InvalidStatusChange:    "Invalid submission status transition",

	EvaluationDispatchFailed: "Failed to dispatch submission for evaluation",
	ResultWriteFailed:        "Failed to persist evaluation result",
	SandboxUnavailable:       "Sandbox backend unavailable",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == InvalidCredentials:
		return 401
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == UserNotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == ValidationFailed, c == InvalidParams, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
