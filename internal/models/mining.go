package models

import (
	"time"
)

// Tier is the account activation status set by the purchase tracker. It
// affects the base reward only, never claim eligibility.
type Tier string

const (
	TierInactive Tier = "inactive"
	TierActive   Tier = "active"
)

// ClaimOrigin distinguishes a user's own daily claim from a credit
// propagated by a referred user's claim.
type ClaimOrigin string

const (
	OriginSelf ClaimOrigin = "self"
	OriginTeam ClaimOrigin = "team"
)

// MiningAccount is the per-user mining state row. Version guards the
// optimistic claim commit.
type MiningAccount struct {
	AccountID   string     `json:"account_id" db:"account_id"`
	LastClaimAt *time.Time `json:"last_claim_at" db:"last_claim_at"`
	Balance     int64      `json:"balance" db:"balance"` // in points
	Streak      int        `json:"streak" db:"streak"`
	Tier        Tier       `json:"tier" db:"tier"`
	Version     int        `json:"version" db:"version"` // for optimistic locking
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// MiningState is the read-side projection returned to the dashboard:
// account fields plus the lazily evaluated claim window.
type MiningState struct {
	AccountID   string     `json:"accountId"`
	LastClaimAt *time.Time `json:"lastClaimAt,omitempty"`
	Balance     int64      `json:"balance"`
	Streak      int        `json:"streak"`
	Tier        Tier       `json:"tier"`
	Claimable   bool       `json:"claimable"`
	RemainingMs int64      `json:"remainingMs"`
}

// ClaimRecord is an append-only credit entry. Immutable once written.
type ClaimRecord struct {
	ID           string      `json:"id" db:"id"`
	AccountID    string      `json:"accountId" db:"account_id"`
	Amount       int64       `json:"amount" db:"amount"`
	Origin       ClaimOrigin `json:"origin" db:"origin"`
	SourceUserID string      `json:"sourceUserId,omitempty" db:"source_user_id"`
	SourceName   string      `json:"sourceName,omitempty" db:"source_name"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// ClaimHistory buckets records for the dashboard history panel.
type ClaimHistory struct {
	Recent     []ClaimRecord `json:"recent"`
	Older      []ClaimRecord `json:"older"`
	MoreRecent bool          `json:"moreRecent"`
	MoreOlder  bool          `json:"moreOlder"`
}

// TeamCreditRequest is posted by the referral collaborator when a referred
// user's claim commits.
type TeamCreditRequest struct {
	AccountID    string `json:"accountId" validate:"required,max=20"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	SourceUserID string `json:"sourceUserId" validate:"required,max=20"`
	SourceName   string `json:"sourceName" validate:"max=100"`
}

// TierUpdateRequest is posted by the purchase tracker on activation events.
type TierUpdateRequest struct {
	AccountID string `json:"accountId" validate:"required,max=20"`
	Tier      Tier   `json:"tier" validate:"required,oneof=inactive active"`
}
