package game

import "dicehall/internal/protocol"

// RuleError is a typed command rejection. Code is drawn from the closed
// protocol vocabulary and is what clients switch on; Message is for humans.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string { return e.Message }

var (
	ErrNotYourTurn           = &RuleError{protocol.CodeNotYourTurn, "it is not your turn"}
	ErrInvalidPhase          = &RuleError{protocol.CodeInvalidPhase, "command not allowed in the current phase"}
	ErrNoRollsRemaining      = &RuleError{protocol.CodeNoRollsRemaining, "no rolls remaining this turn"}
	ErrCategoryAlreadyScored = &RuleError{protocol.CodeCategoryAlreadyScored, "that category is already scored"}
	ErrUnknownCategory       = &RuleError{protocol.CodeUnknownCategory, "unknown category"}
	ErrNotHost               = &RuleError{protocol.CodeNotHost, "only the host can do that"}
	ErrNotEnoughPlayers      = &RuleError{protocol.CodeNotEnoughPlayers, "at least two seated players are needed"}
	ErrGameInProgress        = &RuleError{protocol.CodeGameInProgress, "the game is already in progress"}
	ErrGameNotStarted        = &RuleError{protocol.CodeGameNotStarted, "the game has not started"}
	ErrRoomFull              = &RuleError{protocol.CodeRoomFull, "the room is full"}
	ErrUnknownProfile        = &RuleError{protocol.CodeInvalidMessage, "unknown AI profile"}
)
