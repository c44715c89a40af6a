package models

import "time"

// User mirrors the profile record owned by the identity service. Rows are
// kept in sync via the internal sync endpoint so recipients can be resolved
// locally.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	FullName       string    `db:"full_name" json:"full_name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
