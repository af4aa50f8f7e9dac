package models

import "time"

type User struct {
	ID           int       `json:"id" example:"1"`                   // User ID
	AccountID    string    `json:"accountId" example:"1234567890"`   // Mining account ID
	Email        string    `json:"email" example:"user@example.com"` // User email
	FirstName    string    `json:"firstName" example:"John"`
	LastName     string    `json:"lastName" example:"Doe"`
	ReferralCode string    `json:"referralCode" example:"DGL-8F2K1"`
	ReferredBy   *string   `json:"referredBy,omitempty"` // Account ID of the referrer
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
