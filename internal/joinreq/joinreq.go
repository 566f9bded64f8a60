// Package joinreq implements the per-room join-request state machine:
// pending requests with a TTL and terminal approve/decline/expire/cancel
// transitions.
package joinreq

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a join request. Every status other than
// pending is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// TTL is how long a pending request stays actionable.
const TTL = 2 * time.Minute

// MaxPendingPerRoom caps simultaneously pending requests for one room.
const MaxPendingPerRoom = 10

// Request is one join request against a room.
type Request struct {
	ID              string    `json:"id"`
	RoomCode        string    `json:"roomCode"`
	RequesterID     string    `json:"requesterId"`
	RequesterName   string    `json:"requesterName"`
	RequesterAvatar string    `json:"requesterAvatar,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	Status          Status    `json:"status"`
}

// Terminal reports whether the request can no longer transition.
func (r *Request) Terminal() bool { return r.Status != StatusPending }

// Manager owns one room's join requests. It is driven by the room's single
// writer and does no locking.
type Manager struct {
	roomCode string
	requests map[string]*Request

	now func() time.Time
}

// NewManager creates an empty manager for a room.
func NewManager(roomCode string) *Manager {
	return &Manager{
		roomCode: roomCode,
		requests: make(map[string]*Request),
		now:      time.Now,
	}
}

// Create registers a new pending request. At most one pending request per
// requester and MaxPendingPerRoom per room.
func (m *Manager) Create(requesterID, requesterName, requesterAvatar string) (*Request, error) {
	pending := 0
	for _, r := range m.requests {
		if r.Status != StatusPending {
			continue
		}
		if r.RequesterID == requesterID {
			return nil, ErrDuplicateRequest
		}
		pending++
	}
	if pending >= MaxPendingPerRoom {
		return nil, ErrMaxRequestsExceeded
	}

	now := m.now()
	req := &Request{
		ID:              uuid.NewString(),
		RoomCode:        m.roomCode,
		RequesterID:     requesterID,
		RequesterName:   requesterName,
		RequesterAvatar: requesterAvatar,
		CreatedAt:       now,
		ExpiresAt:       now.Add(TTL),
		Status:          StatusPending,
	}
	m.requests[req.ID] = req
	return req, nil
}

// Get returns a request by id.
func (m *Manager) Get(requestID string) (*Request, error) {
	req, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Pending returns the pending requests, oldest first.
func (m *Manager) Pending() []*Request {
	out := make([]*Request, 0, len(m.requests))
	for _, r := range m.requests {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	sortByCreation(out)
	return out
}

// Approve transitions a pending request to approved.
func (m *Manager) Approve(requestID string) (*Request, error) {
	return m.transition(requestID, StatusApproved, "")
}

// Decline transitions a pending request to declined.
func (m *Manager) Decline(requestID string) (*Request, error) {
	return m.transition(requestID, StatusDeclined, "")
}

// Cancel transitions a pending request to cancelled. Only the requester may
// cancel.
func (m *Manager) Cancel(requestID, callerID string) (*Request, error) {
	return m.transition(requestID, StatusCancelled, callerID)
}

func (m *Manager) transition(requestID string, to Status, mustBeRequester string) (*Request, error) {
	req, ok := m.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if mustBeRequester != "" && req.RequesterID != mustBeRequester {
		return nil, ErrNotRequester
	}
	if req.Terminal() {
		return nil, ErrInvalidStatusTransition
	}
	if !m.now().Before(req.ExpiresAt) {
		req.Status = StatusExpired
		return nil, ErrRequestExpired
	}
	req.Status = to
	return req, nil
}

// Sweep expires stale pending requests and returns the ones it transitioned,
// so callers can emit events for them.
func (m *Manager) Sweep() []*Request {
	now := m.now()
	var expired []*Request
	for _, r := range m.requests {
		if r.Status == StatusPending && !now.Before(r.ExpiresAt) {
			r.Status = StatusExpired
			expired = append(expired, r)
		}
	}
	sortByCreation(expired)
	return expired
}

// Marshal serializes all requests for write-through persistence.
func (m *Manager) Marshal() ([]byte, error) {
	return json.Marshal(m.requests)
}

// Unmarshal restores requests after a resume.
func (m *Manager) Unmarshal(data []byte) error {
	if len(data) == 0 {
		m.requests = make(map[string]*Request)
		return nil
	}
	return json.Unmarshal(data, &m.requests)
}

func sortByCreation(reqs []*Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
