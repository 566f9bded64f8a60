package room

import (
	"errors"
	"time"

	"dicehall/internal/game"
	"dicehall/internal/joinreq"
	"dicehall/internal/protocol"
	"dicehall/internal/scoring"
)

// Join requests are brokered by the lobby but owned by the room: the lobby
// calls these entry points, which hop onto the room's writer via Do.

// JoinRequestSentPayload answers a successful REQUEST_JOIN.
type JoinRequestSentPayload struct {
	RequestID string `json:"requestId"`
	RoomCode  string `json:"roomCode"`
	ExpiresAt string `json:"expiresAt"`
}

// SubmitJoinRequest files a join request from a lobby user and notifies both
// sides. Events go out through user tags, so the requester hears back on
// their lobby connection.
func (a *Actor) SubmitJoinRequest(requesterID, requesterName, requesterAvatar string) {
	a.Do(func() {
		a.sweepJoinRequests()

		if a.room.Game.Phase != scoring.PhaseWaiting {
			a.sendToUser(requesterID, protocol.NewEnvelope(protocol.EvtJoinRequestError,
				protocol.ErrorPayload{Code: game.ErrGameInProgress.Code, Message: game.ErrGameInProgress.Message}))
			return
		}
		if a.room.FreeSeats() < 1 {
			a.sendToUser(requesterID, protocol.NewEnvelope(protocol.EvtJoinRequestError,
				protocol.ErrorPayload{Code: game.ErrRoomFull.Code, Message: game.ErrRoomFull.Message}))
			return
		}

		req, err := a.joinReqs.Create(requesterID, requesterName, requesterAvatar)
		if err != nil {
			a.sendJoinRequestError(requesterID, err)
			return
		}
		a.persistJoinRequests()

		a.sendToUser(requesterID, protocol.NewEnvelope(protocol.EvtJoinRequestSent, JoinRequestSentPayload{
			RequestID: req.ID,
			RoomCode:  a.code,
			ExpiresAt: req.ExpiresAt.UTC().Format(time.RFC3339),
		}))
		a.sendToUser(a.room.HostID, protocol.NewEnvelope(protocol.EvtJoinRequestReceived, JoinRequestReceivedPayload{
			RequestID:     req.ID,
			RequesterID:   req.RequesterID,
			RequesterName: req.RequesterName,
			ExpiresAt:     req.ExpiresAt.UTC().Format(time.RFC3339),
		}))
	})
}

// CancelJoinRequest withdraws a pending request on the requester's behalf.
func (a *Actor) CancelJoinRequest(requestID, callerID string) {
	a.Do(func() {
		a.sweepJoinRequests()

		req, err := a.joinReqs.Cancel(requestID, callerID)
		if err != nil {
			a.sendJoinRequestError(callerID, err)
			return
		}
		a.persistJoinRequests()

		a.sendToUser(callerID, protocol.NewEnvelope(protocol.EvtJoinRequestCancel, JoinRequestSentPayload{
			RequestID: req.ID,
			RoomCode:  a.code,
		}))
		a.sendToUser(a.room.HostID, protocol.NewEnvelope(protocol.EvtJoinRequestCancel, JoinRequestSentPayload{
			RequestID: req.ID,
			RoomCode:  a.code,
		}))
	})
}

func (a *Actor) sendJoinRequestError(userID string, err error) {
	var jre *joinreq.Error
	if errors.As(err, &jre) {
		a.sendToUser(userID, protocol.NewEnvelope(protocol.EvtJoinRequestError,
			protocol.ErrorPayload{Code: jre.Code, Message: jre.Message}))
		return
	}
	a.sendToUser(userID, protocol.NewEnvelope(protocol.EvtJoinRequestError,
		protocol.ErrorPayload{Code: protocol.CodeInvalidMessage, Message: err.Error()}))
}

// sweepJoinRequests expires stale requests and tells their requesters.
func (a *Actor) sweepJoinRequests() {
	expired := a.joinReqs.Sweep()
	if len(expired) == 0 {
		return
	}
	a.persistJoinRequests()
	for _, req := range expired {
		a.sendToUser(req.RequesterID, protocol.NewEnvelope(protocol.EvtJoinRequestError,
			protocol.ErrorPayload{Code: joinreq.ErrRequestExpired.Code, Message: joinreq.ErrRequestExpired.Message}))
	}
}
