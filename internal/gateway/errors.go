package gateway

// ErrorKind classifies every failed call. Callers switch on it instead of
// inspecting transport errors.
type ErrorKind string

const (
	ErrNetwork       ErrorKind = "NETWORK_ERROR"
	ErrTimeout       ErrorKind = "TIMEOUT"
	ErrInvalidJSON   ErrorKind = "INVALID_JSON"
	ErrUnauthorized  ErrorKind = "UNAUTHORIZED"
	ErrForbidden     ErrorKind = "FORBIDDEN"
	ErrAuthNotReady  ErrorKind = "AUTH_NOT_READY"
	ErrBackend       ErrorKind = "BACKEND_ERROR"
	ErrValidation    ErrorKind = "VALIDATION_ERROR"
	ErrAIUnavailable ErrorKind = "AI_UNAVAILABLE"
)

var safeMessages = map[ErrorKind]string{
	ErrNetwork:       "Unable to reach the server. Check your connection and try again.",
	ErrTimeout:       "The server took too long to respond. Please try again.",
	ErrInvalidJSON:   "The server sent an unexpected response.",
	ErrUnauthorized:  "Your session has expired. Please sign in again.",
	ErrForbidden:     "You do not have permission to do that.",
	ErrAuthNotReady:  "Still restoring your session. Please wait a moment.",
	ErrBackend:       "Something went wrong on our side. Please try again later.",
	ErrValidation:    "Some of the details provided are not valid.",
	ErrAIUnavailable: "Automatic analysis is unavailable right now.",
}

// SafeMessage is the default user-facing text for kind.
func SafeMessage(kind ErrorKind) string {
	if msg, ok := safeMessages[kind]; ok {
		return msg
	}
	return safeMessages[ErrBackend]
}

// knownKind keeps backend codes the client understands and folds the rest
// into BACKEND_ERROR.
func knownKind(code string) ErrorKind {
	kind := ErrorKind(code)
	if _, ok := safeMessages[kind]; ok {
		return kind
	}
	return ErrBackend
}

// Retryable reports whether retrying the same call later may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrNetwork, ErrTimeout, ErrAuthNotReady:
		return true
	default:
		return false
	}
}
