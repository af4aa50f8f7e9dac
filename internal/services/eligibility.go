package services

import "time"

// Claimability decides whether a self-claim may be committed now and how
// long the cooldown has left. An account that has never claimed is always
// claimable. Pure and total.
func Claimability(lastClaimAt *time.Time, now time.Time, cooldown time.Duration) (bool, time.Duration) {
	if lastClaimAt == nil {
		return true, 0
	}

	remaining := lastClaimAt.Add(cooldown).Sub(now)
	if remaining <= 0 {
		return true, 0
	}

	return false, remaining
}
