package chat

import "dicehall/internal/protocol"

// Error is a typed chat rejection sent back as CHAT_ERROR.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrRateLimited     = &Error{protocol.CodeRateLimited, "slow down"}
	ErrMessageTooLong  = &Error{protocol.CodeMessageTooLong, "message exceeds the length limit"}
	ErrInvalidMessage  = &Error{protocol.CodeInvalidMessage, "message is empty or malformed"}
	ErrMessageNotFound = &Error{protocol.CodeMessageNotFound, "no such message"}
)
