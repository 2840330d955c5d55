package apperrors

// =============================================================================
// Error Codes
// =============================================================================

type ErrorCode string

const (
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError    ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeVolumioTimeout     ErrorCode = "VOLUMIO_TIMEOUT"
	ErrorCodeVolumioUnreachable ErrorCode = "VOLUMIO_UNREACHABLE"
	ErrorCodeVolumioBadResponse ErrorCode = "VOLUMIO_BAD_RESPONSE"
	ErrorCodeDecodeError        ErrorCode = "DECODE_ERROR"
	ErrorCodePlaylistNotFound   ErrorCode = "PLAYLIST_NOT_FOUND"
	ErrorCodeUnsupportedCommand ErrorCode = "UNSUPPORTED_COMMAND"
	ErrorCodeUnknownCommand     ErrorCode = "UNKNOWN_COMMAND"
)

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (err *AppError) Error() string {
	return err.Message
}

func (err *AppError) ErrorBody() ErrorBody {
	body := ErrorBody{
		Code:    err.Code,
		Message: err.Message,
	}
	if err.Details != nil {
		body.Details = err.Details
	}
	return body
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, 400, details)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

func NewUnknownCommandError(command string) *AppError {
	return NewAppError(ErrorCodeUnknownCommand, "unknown command: "+command, 404, map[string]any{
		"command": command,
	})
}

func NewVolumioError(code ErrorCode, message string) *AppError {
	return NewAppError(code, message, 502, nil)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, 500, nil)
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("Internal server error")
}
