package state

import (
	"maps"
	"time"
)

// State represents a conversation state.
type State string

const (
	// StateIdle means no live session; the user is either new or between flows.
	StateIdle State = "idle"
	// StateAwaitingCaptcha waits for the digits shown in the captcha image.
	StateAwaitingCaptcha State = "awaiting_captcha"
	// StateMenuReady means the captcha was passed and the main menu is shown.
	StateMenuReady State = "menu_ready"

	StatePaymentAmount  State = "payment_amount"
	StatePaymentMethod  State = "payment_method"
	StatePaymentComment State = "payment_comment"

	StateOrderConfirmation State = "order_confirmation"
	StateOrderAddress      State = "order_address"
	StateOrderDocument     State = "order_document"

	StateAdminBroadcastMessage State = "admin_broadcast_message"
	StateAdminBroadcastConfirm State = "admin_broadcast_confirm"
	StateAdminDirectMessage    State = "admin_direct_message"
)

// Known lists every state in a stable order, mainly for metrics.
var Known = []State{
	StateIdle,
	StateAwaitingCaptcha,
	StateMenuReady,
	StatePaymentAmount,
	StatePaymentMethod,
	StatePaymentComment,
	StateOrderConfirmation,
	StateOrderAddress,
	StateOrderDocument,
	StateAdminBroadcastMessage,
	StateAdminBroadcastConfirm,
	StateAdminDirectMessage,
}

// IsAdmin reports whether s belongs to the operator panel.
func (s State) IsAdmin() bool {
	switch s {
	case StateAdminBroadcastMessage, StateAdminBroadcastConfirm, StateAdminDirectMessage:
		return true
	default:
		return false
	}
}

// Session is the ephemeral per-user conversation record.
type Session struct {
	UserID    int64             `json:"user_id"`
	State     State             `json:"state"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewSession returns an idle session for userID.
func NewSession(userID int64) *Session {
	return &Session{
		UserID: userID,
		State:  StateIdle,
		Data:   make(map[string]string),
	}
}

func (s *Session) Get(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	return s.Data[key]
}

func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.Data, key)
}

// Enter moves the session to next, keeping accumulated data.
func (s *Session) Enter(next State) {
	s.State = next
}

// Reset drops all data and moves to next.
func (s *Session) Reset(next State) {
	s.State = next
	s.Data = make(map[string]string)
}

// Clear ends the session; it is deleted from storage once the step completes.
func (s *Session) Clear() {
	s.Reset(StateIdle)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Data = maps.Clone(s.Data)
	if out.Data == nil {
		out.Data = make(map[string]string)
	}
	return &out
}
