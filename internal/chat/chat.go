// Package chat implements the per-room message engine: bounded history,
// reactions, typing indicators and per-user rate limits.
package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a chat message.
type Kind string

const (
	KindText   Kind = "text"
	KindQuick  Kind = "quick"
	KindSystem Kind = "system"
)

// SystemAuthorID is the author id used for server-generated messages.
const SystemAuthorID = "system"

// Message is one chat entry. Reactions maps a reaction token to the set of
// user ids that added it.
type Message struct {
	ID          string              `json:"id"`
	AuthorID    string              `json:"authorId"`
	DisplayName string              `json:"displayName"`
	Kind        Kind                `json:"kind"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
}

// RateState is the persisted per-user rate-limit bookkeeping.
type RateState struct {
	LastMessageAt       time.Time `json:"lastMessageAt"`
	LastTypingAt        time.Time `json:"lastTypingAt"`
	ReactionCount       int       `json:"reactionCount"`
	ReactionWindowStart time.Time `json:"reactionWindowStart"`
}

// Limits are the chat policy knobs.
type Limits struct {
	MaxMessages        int
	MaxMessageLength   int
	MessageInterval    time.Duration
	TypingInterval     time.Duration
	TypingTimeout      time.Duration
	ReactionsPerWindow int
	ReactionWindow     time.Duration
}

// DefaultLimits returns the production chat policy.
func DefaultLimits() Limits {
	return Limits{
		MaxMessages:        100,
		MaxMessageLength:   500,
		MessageInterval:    time.Second,
		TypingInterval:     2 * time.Second,
		TypingTimeout:      5 * time.Second,
		ReactionsPerWindow: 10,
		ReactionWindow:     10 * time.Second,
	}
}

// reactionTokens is the closed set of accepted reaction tokens.
var reactionTokens = map[string]bool{
	"thumbs_up":  true,
	"laugh":      true,
	"fire":       true,
	"dice":       true,
	"cry":        true,
	"mind_blown": true,
}

// quickPresets maps QUICK_CHAT keys to their server-formatted content.
var quickPresets = map[string]string{
	"gl":     "Good luck!",
	"gg":     "Good game!",
	"nice":   "Nice roll!",
	"ouch":   "Ouch!",
	"wow":    "Wow!",
	"hurry":  "Hurry up!",
	"thanks": "Thanks!",
	"oops":   "Oops...",
}

// QuickKeys returns the accepted QUICK_CHAT keys.
func QuickKeys() []string {
	keys := make([]string, 0, len(quickPresets))
	for k := range quickPresets {
		keys = append(keys, k)
	}
	return keys
}

// Engine holds one room's chat state. It is owned by the room's single
// writer and does no locking of its own.
type Engine struct {
	limits   Limits
	messages []*Message
	rates    map[string]*RateState
	typing   map[string]time.Time // ephemeral, never persisted

	now func() time.Time
}

// NewEngine creates a chat engine with the given policy.
func NewEngine(limits Limits) *Engine {
	return &Engine{
		limits: limits,
		rates:  make(map[string]*RateState),
		typing: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Messages returns the history, oldest first.
func (e *Engine) Messages() []*Message {
	out := make([]*Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// HandleText accepts a plain text message from a user.
func (e *Engine) HandleText(userID, displayName, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidMessage
	}
	if len(content) > e.limits.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	now := e.now()
	rs := e.rateState(userID)
	if !rs.LastMessageAt.IsZero() && now.Sub(rs.LastMessageAt) < e.limits.MessageInterval {
		return nil, ErrRateLimited
	}
	rs.LastMessageAt = now

	return e.append(&Message{
		ID:          uuid.NewString(),
		AuthorID:    userID,
		DisplayName: displayName,
		Kind:        KindText,
		Content:     content,
		Timestamp:   now,
	}), nil
}

// HandleQuick accepts a preset quick-chat message. The content is formatted
// server-side from the closed key set.
func (e *Engine) HandleQuick(userID, displayName, key string) (*Message, error) {
	content, ok := quickPresets[key]
	if !ok {
		return nil, ErrInvalidMessage
	}

	now := e.now()
	rs := e.rateState(userID)
	if !rs.LastMessageAt.IsZero() && now.Sub(rs.LastMessageAt) < e.limits.MessageInterval {
		return nil, ErrRateLimited
	}
	rs.LastMessageAt = now

	return e.append(&Message{
		ID:          uuid.NewString(),
		AuthorID:    userID,
		DisplayName: displayName,
		Kind:        KindQuick,
		Content:     content,
		Timestamp:   now,
	}), nil
}

// CreateSystem appends a server-generated message. System messages bypass
// rate limits.
func (e *Engine) CreateSystem(content string) *Message {
	return e.append(&Message{
		ID:        uuid.NewString(),
		AuthorID:  SystemAuthorID,
		Kind:      KindSystem,
		Content:   content,
		Timestamp: e.now(),
	})
}

// HandleReaction adds or removes a reaction token on a message. Reactions are
// limited per sliding window.
func (e *Engine) HandleReaction(userID, messageID, token string, remove bool) (*Message, error) {
	if !reactionTokens[token] {
		return nil, ErrInvalidMessage
	}

	msg := e.find(messageID)
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	now := e.now()
	rs := e.rateState(userID)
	if now.Sub(rs.ReactionWindowStart) >= e.limits.ReactionWindow {
		rs.ReactionWindowStart = now
		rs.ReactionCount = 0
	}
	if rs.ReactionCount >= e.limits.ReactionsPerWindow {
		return nil, ErrRateLimited
	}
	rs.ReactionCount++

	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	users := msg.Reactions[token]
	idx := -1
	for i, u := range users {
		if u == userID {
			idx = i
			break
		}
	}
	if remove {
		if idx >= 0 {
			msg.Reactions[token] = append(users[:idx], users[idx+1:]...)
			if len(msg.Reactions[token]) == 0 {
				delete(msg.Reactions, token)
			}
		}
	} else if idx < 0 {
		msg.Reactions[token] = append(users, userID)
	}
	return msg, nil
}

// TypingStart records a typing indicator. It returns false when the update is
// inside the per-user typing interval and should not be broadcast.
func (e *Engine) TypingStart(userID string) bool {
	now := e.now()
	rs := e.rateState(userID)
	if !rs.LastTypingAt.IsZero() && now.Sub(rs.LastTypingAt) < e.limits.TypingInterval {
		return false
	}
	rs.LastTypingAt = now
	e.typing[userID] = now
	return true
}

// TypingStop clears a user's typing indicator.
func (e *Engine) TypingStop(userID string) {
	delete(e.typing, userID)
}

// ActiveTypers returns users whose typing indicator has not timed out.
func (e *Engine) ActiveTypers() []string {
	now := e.now()
	out := make([]string, 0, len(e.typing))
	for id, at := range e.typing {
		if now.Sub(at) <= e.limits.TypingTimeout {
			out = append(out, id)
		} else {
			delete(e.typing, id)
		}
	}
	return out
}

func (e *Engine) append(msg *Message) *Message {
	e.messages = append(e.messages, msg)
	if over := len(e.messages) - e.limits.MaxMessages; over > 0 {
		e.messages = append([]*Message(nil), e.messages[over:]...)
	}
	return msg
}

func (e *Engine) find(messageID string) *Message {
	for _, m := range e.messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

func (e *Engine) rateState(userID string) *RateState {
	rs, ok := e.rates[userID]
	if !ok {
		rs = &RateState{}
		e.rates[userID] = rs
	}
	return rs
}

// MarshalMessages serializes the history for write-through persistence.
func (e *Engine) MarshalMessages() ([]byte, error) {
	return json.Marshal(e.messages)
}

// UnmarshalMessages restores the history after a resume.
func (e *Engine) UnmarshalMessages(data []byte) error {
	if len(data) == 0 {
		e.messages = nil
		return nil
	}
	return json.Unmarshal(data, &e.messages)
}

// MarshalRateStates serializes per-user rate-limit state.
func (e *Engine) MarshalRateStates() ([]byte, error) {
	return json.Marshal(e.rates)
}

// UnmarshalRateStates restores per-user rate-limit state after a resume.
func (e *Engine) UnmarshalRateStates(data []byte) error {
	if len(data) == 0 {
		e.rates = make(map[string]*RateState)
		return nil
	}
	return json.Unmarshal(data, &e.rates)
}
