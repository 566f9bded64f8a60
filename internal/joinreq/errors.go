package joinreq

import "dicehall/internal/protocol"

// Error is a typed join-request rejection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrRequestExpired          = &Error{protocol.CodeRequestExpired, "the request has expired"}
	ErrInvalidStatusTransition = &Error{protocol.CodeInvalidStatusTransition, "the request is already settled"}
	ErrNotRequester            = &Error{protocol.CodeNotRequester, "only the requester can cancel"}
	ErrRequestNotFound         = &Error{protocol.CodeRequestNotFound, "no such request"}
	ErrDuplicateRequest        = &Error{protocol.CodeDuplicateRequest, "a pending request already exists"}
	ErrMaxRequestsExceeded     = &Error{protocol.CodeMaxRequestsExceeded, "too many pending requests for this room"}
)
