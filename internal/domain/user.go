// Package domain holds the storefront's persistent entities and money rules.
package domain

import "time"

// User is a person who passed the captcha at least once.
type User struct {
	ID           int64     `db:"user_id"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	RegisteredAt time.Time `db:"registered_at"`
}

// DisplayName prefers the first name and falls back to the handle.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "-"
	}
}

// Handle renders the username with the leading @, or a dash when there is none.
func Handle(username string) string {
	if username == "" {
		return "-"
	}
	return "@" + username
}

// UserStats are registration counters shown in the admin panel.
type UserStats struct {
	Total int
	Today int
	Week  int
}
