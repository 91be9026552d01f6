package chat

// Code is a machine-readable error code for coordinator failures.
type Code string

const (
	// CodeInvalidInput marks an empty or unsanitizable username or room name.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeUsernameTaken marks a join targeting a room that already has the name.
	CodeUsernameTaken Code = "USERNAME_TAKEN"
	// CodeNotJoined marks an operation from a connection without a session.
	CodeNotJoined Code = "NOT_JOINED"
	// CodeEmptyMessage marks a message that is empty after sanitization.
	CodeEmptyMessage Code = "EMPTY_MESSAGE"
	// CodeAlreadyBound marks a double bind for one connection. It indicates a
	// collaborator bug upstream, not a user mistake.
	CodeAlreadyBound Code = "ALREADY_BOUND"
	// CodeInternal marks an unexpected fault caught at the boundary.
	CodeInternal Code = "INTERNAL"
)

// Error is the coordinator error type with a structured code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors for errors.Is checks against coordinator results. The
// messages are the human-readable forms sent back on the ack channel.
var (
	ErrInvalidInput  = &Error{Code: CodeInvalidInput, Message: "Username and room are required"}
	ErrUsernameTaken = &Error{Code: CodeUsernameTaken, Message: "Username already taken in this room"}
	ErrNotJoined     = &Error{Code: CodeNotJoined, Message: "Must join a room first"}
	ErrEmptyMessage  = &Error{Code: CodeEmptyMessage, Message: "Message cannot be empty"}
	ErrAlreadyBound  = &Error{Code: CodeAlreadyBound, Message: "Connection already has a session"}
)
