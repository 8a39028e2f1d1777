package model

import "time"

// User is the submitting identity. Only what the pipeline needs is modeled
// here; account management lives outside this system.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
