package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentNotFound is returned when no payment has the requested id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrAlreadyDecided is returned when a payment has left the pending status.
	ErrAlreadyDecided = errors.New("payment already decided")
	// ErrUserNotFound is returned when no user has the requested id.
	ErrUserNotFound = errors.New("user not found")
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRejected  PaymentStatus = "rejected"
)

// IsTerminal reports whether no further decision can be made.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentRejected
}

// IsOutcome reports whether s is a valid moderation decision.
func (s PaymentStatus) IsOutcome() bool {
	return s.IsTerminal()
}

type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodQiwi PaymentMethod = "qiwi"
	MethodBTC  PaymentMethod = "btc"
)

// PaymentMethods lists the methods in the order they are offered to users.
var PaymentMethods = []PaymentMethod{MethodCard, MethodQiwi, MethodBTC}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodQiwi, MethodBTC:
		return true
	default:
		return false
	}
}

// Label is the human name of the method shown in receipts and admin notices.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodCard:
		return "Банковская карта"
	case MethodQiwi:
		return "QIWI"
	case MethodBTC:
		return "Bitcoin"
	default:
		return string(m)
	}
}

// Payment is a user-declared top-up awaiting or past moderation.
type Payment struct {
	ID            int64
	UserID        int64
	Username      string
	Amount        decimal.Decimal
	Method        PaymentMethod
	Status        PaymentStatus
	Comment       string
	SubmittedAt   time.Time
	DecidedAt     *time.Time
	AdminNotified bool
}

// PendingPayment is a pending payment joined with its owner's display fields.
type PendingPayment struct {
	Payment
	FirstName string
}

// PaymentStats are the moderation counters shown in the admin panel.
type PaymentStats struct {
	Total          int
	Today          int
	Pending        int
	CompletedToday decimal.Decimal
	CompletedTotal decimal.Decimal
}
