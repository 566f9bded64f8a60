package protocol

// Error codes, grouped by origin. Each set is closed.
const (
	// Auth.
	CodeMissingToken    = "MISSING_TOKEN"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeExpiredToken    = "EXPIRED_TOKEN"
	CodeJWKSUnavailable = "JWKS_UNAVAILABLE"

	// Transport.
	CodeBinaryUnsupported = "BINARY_UNSUPPORTED"
	CodeInvalidMessage    = "INVALID_MESSAGE"
	CodeUnknownCommand    = "UNKNOWN_COMMAND"

	// Game.
	CodeNotYourTurn           = "NOT_YOUR_TURN"
	CodeInvalidPhase          = "INVALID_PHASE"
	CodeNoRollsRemaining      = "NO_ROLLS_REMAINING"
	CodeCategoryAlreadyScored = "CATEGORY_ALREADY_SCORED"
	CodeUnknownCategory       = "UNKNOWN_CATEGORY"
	CodeNotHost               = "NOT_HOST"
	CodeNotEnoughPlayers      = "NOT_ENOUGH_PLAYERS"
	CodeGameInProgress        = "GAME_IN_PROGRESS"
	CodeGameNotStarted        = "GAME_NOT_STARTED"

	// Chat.
	CodeRateLimited     = "RATE_LIMITED"
	CodeMessageTooLong  = "MESSAGE_TOO_LONG"
	CodeMessageNotFound = "MESSAGE_NOT_FOUND"

	// Join requests.
	CodeRequestExpired          = "REQUEST_EXPIRED"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeNotRequester            = "NOT_REQUESTER"
	CodeRequestNotFound         = "REQUEST_NOT_FOUND"
	CodeDuplicateRequest        = "DUPLICATE_REQUEST"
	CodeMaxRequestsExceeded     = "MAX_REQUESTS_EXCEEDED"

	// Rooms.
	CodeRoomFull     = "ROOM_FULL"
	CodeRoomNotFound = "ROOM_NOT_FOUND"

	// Lobby.
	CodeUserNotFound   = "USER_NOT_FOUND"
	CodeInviteNotFound = "INVITE_NOT_FOUND"
	CodeNotInviteOwner = "NOT_INVITE_OWNER"
)
