package domain

// NotificationKind selects which admin preference gates a notification.
type NotificationKind string

const (
	NotifyPayment NotificationKind = "payment"
	NotifyOrder   NotificationKind = "order"
	NotifyNewUser NotificationKind = "new_user"
)

// AdminSettings are an operator's notification preferences.
type AdminSettings struct {
	AdminID        int64 `db:"admin_id"`
	NotifyPayments bool  `db:"notify_payments"`
	NotifyNewUsers bool  `db:"notify_new_users"`
}

// DefaultAdminSettings enables every notification.
func DefaultAdminSettings(adminID int64) AdminSettings {
	return AdminSettings{
		AdminID:        adminID,
		NotifyPayments: true,
		NotifyNewUsers: true,
	}
}

// Allows reports whether a notification of kind should reach this admin.
// Order proofs follow the payments flag.
func (s AdminSettings) Allows(kind NotificationKind) bool {
	switch kind {
	case NotifyPayment, NotifyOrder:
		return s.NotifyPayments
	case NotifyNewUser:
		return s.NotifyNewUsers
	default:
		return false
	}
}
