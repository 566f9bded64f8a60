package protocol

// Client commands. The set is closed: anything else is INVALID_MESSAGE.
const (
	CmdStartGame     = "START_GAME"
	CmdQuickPlay     = "QUICK_PLAY_START"
	CmdDiceRoll      = "DICE_ROLL"
	CmdDiceKeep      = "DICE_KEEP"
	CmdCategoryScore = "CATEGORY_SCORE"
	CmdRematch       = "REMATCH"
	CmdAddAIPlayer   = "ADD_AI_PLAYER"
	CmdPing          = "PING"

	CmdChat        = "CHAT"
	CmdQuickChat   = "QUICK_CHAT"
	CmdReaction    = "REACTION"
	CmdTypingStart = "TYPING_START"
	CmdTypingStop  = "TYPING_STOP"

	// Lobby-only commands.
	CmdLobbyChat         = "LOBBY_CHAT"
	CmdGetRooms          = "GET_ROOMS"
	CmdGetOnlineUsers    = "GET_ONLINE_USERS"
	CmdRequestJoin       = "REQUEST_JOIN"
	CmdCancelJoinRequest = "CANCEL_JOIN_REQUEST"
	CmdSendInvite        = "SEND_INVITE"
	CmdCancelInvite      = "CANCEL_INVITE"
)

var commands = map[string]bool{
	CmdStartGame:     true,
	CmdQuickPlay:     true,
	CmdDiceRoll:      true,
	CmdDiceKeep:      true,
	CmdCategoryScore: true,
	CmdRematch:       true,
	CmdAddAIPlayer:   true,
	CmdPing:          true,

	CmdChat:        true,
	CmdQuickChat:   true,
	CmdReaction:    true,
	CmdTypingStart: true,
	CmdTypingStop:  true,

	CmdLobbyChat:         true,
	CmdGetRooms:          true,
	CmdGetOnlineUsers:    true,
	CmdRequestJoin:       true,
	CmdCancelJoinRequest: true,
	CmdSendInvite:        true,
	CmdCancelInvite:      true,
}

// KnownCommand reports whether the type names a command in the closed set.
func KnownCommand(t string) bool { return commands[t] }

// Command payloads.

type QuickPlayPayload struct {
	AIProfiles []string `json:"aiProfiles"`
}

type DiceRollPayload struct {
	KeptMask *[5]bool `json:"keptMask,omitempty"`
}

type DiceKeepPayload struct {
	Indices []int `json:"indices"`
}

type CategoryScorePayload struct {
	Category string `json:"category"`
}

type AddAIPlayerPayload struct {
	ProfileID string `json:"profileId"`
}

type ChatPayload struct {
	Content string `json:"content"`
}

type QuickChatPayload struct {
	Key string `json:"key"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Token     string `json:"token"`
	Remove    bool   `json:"remove,omitempty"`
}

type RequestJoinPayload struct {
	RoomCode string `json:"roomCode"`
}

type CancelJoinRequestPayload struct {
	RequestID string `json:"requestId"`
	RoomCode  string `json:"roomCode"`
}

type SendInvitePayload struct {
	TargetUserID string `json:"targetUserId"`
	RoomCode     string `json:"roomCode"`
}

type CancelInvitePayload struct {
	InviteID string `json:"inviteId"`
}

// KeepMaskFromIndices translates a DICE_KEEP index list into the five-boolean
// mask the game model uses. Out-of-range indices are invalid.
func KeepMaskFromIndices(indices []int) ([5]bool, bool) {
	var mask [5]bool
	for _, i := range indices {
		if i < 0 || i > 4 {
			return mask, false
		}
		mask[i] = true
	}
	return mask, true
}
