package protocol

// Server events. The set is closed and is the canonical protocol: clients
// consume these types directly.
const (
	EvtConnected          = "CONNECTED"
	EvtPlayerJoined       = "PLAYER_JOINED"
	EvtPlayerLeft         = "PLAYER_LEFT"
	EvtPlayerDisconnected = "PLAYER_DISCONNECTED"
	EvtPlayerReconnected  = "PLAYER_RECONNECTED"
	EvtPlayerRemoved      = "PLAYER_REMOVED"
	EvtSpectatorJoined    = "SPECTATOR_JOINED"
	EvtAIPlayerJoined     = "AI_PLAYER_JOINED"

	EvtGameStarting     = "GAME_STARTING"
	EvtGameStarted      = "GAME_STARTED"
	EvtQuickPlayStarted = "QUICK_PLAY_STARTED"
	EvtTurnStarted      = "TURN_STARTED"
	EvtTurnChanged      = "TURN_CHANGED"
	EvtDiceRolled       = "DICE_ROLLED"
	EvtDiceKept         = "DICE_KEPT"
	EvtCategoryScored   = "CATEGORY_SCORED"
	EvtTurnSkipped      = "TURN_SKIPPED"
	EvtPlayerAFK        = "PLAYER_AFK"
	EvtGameOver         = "GAME_OVER"
	EvtRematchStarted   = "REMATCH_STARTED"

	EvtError = "ERROR"
	EvtPong  = "PONG"

	EvtAIThinking = "AI_THINKING"
	EvtAIRolling  = "AI_ROLLING"
	EvtAIKeeping  = "AI_KEEPING"
	EvtAIScoring  = "AI_SCORING"

	EvtChatMessage    = "CHAT_MESSAGE"
	EvtChatHistory    = "CHAT_HISTORY"
	EvtReactionUpdate = "REACTION_UPDATE"
	EvtTypingUpdate   = "TYPING_UPDATE"
	EvtChatError      = "CHAT_ERROR"

	// Lobby events.
	EvtPresenceInit        = "PRESENCE_INIT"
	EvtPresenceJoin        = "PRESENCE_JOIN"
	EvtPresenceLeave       = "PRESENCE_LEAVE"
	EvtLobbyRoomsList      = "LOBBY_ROOMS_LIST"
	EvtLobbyRoomUpdate     = "LOBBY_ROOM_UPDATE"
	EvtLobbyChatMessage    = "LOBBY_CHAT_MESSAGE"
	EvtLobbyChatHistory    = "LOBBY_CHAT_HISTORY"
	EvtLobbyOnlineUsers    = "LOBBY_ONLINE_USERS"
	EvtInviteReceived      = "INVITE_RECEIVED"
	EvtInviteCancelled     = "INVITE_CANCELLED"
	EvtJoinRequestSent     = "JOIN_REQUEST_SENT"
	EvtJoinRequestCancel   = "JOIN_REQUEST_CANCELLED"
	EvtJoinRequestError    = "JOIN_REQUEST_ERROR"
	EvtJoinRequestReceived = "JOIN_REQUEST_RECEIVED"
	EvtLobbyHighlight      = "LOBBY_HIGHLIGHT"
	EvtLobbyError          = "LOBBY_ERROR"
)

// ErrorPayload is the body of ERROR, CHAT_ERROR and LOBBY_ERROR events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
