package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccountNotFound means the account id does not belong to any user.
	// Fatal for the call, never retried.
	ErrAccountNotFound = errors.New("account not found")

	// ErrStoreConflict is an optimistic-concurrency collision on the mining
	// account row. The claim flow is retried from a fresh read, never the
	// balance update alone.
	ErrStoreConflict = errors.New("optimistic lock failed for mining account")
)

// CooldownError is returned when a self-claim arrives before the cooldown
// window has elapsed. Recoverable; the dashboard displays the remainder.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %s remaining", e.Remaining)
}
