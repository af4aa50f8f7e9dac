package services

import (
	"time"

	"github.com/digilinex/backend/internal/config"
	"github.com/digilinex/backend/internal/models"
)

// ComputeReward returns the amount to credit for an eligible self-claim and
// the streak value the account moves to. The base amount follows the account
// tier; a claim inside the grace window continues the streak, a late claim
// restarts it at 1 (the claim itself counts as day one). Every
// BonusInterval-th consecutive claim earns the streak bonus on top.
//
// The caller applies the result; nothing is mutated here.
func ComputeReward(prevStreak int, prevLastClaimAt *time.Time, now time.Time, tier models.Tier, cfg *config.MiningConfig) (int64, int) {
	amount := cfg.BaseRewardInactive
	if tier == models.TierActive {
		amount = cfg.BaseRewardActive
	}

	newStreak := 1
	if prevLastClaimAt != nil && now.Sub(*prevLastClaimAt) <= cfg.GraceWindow {
		newStreak = prevStreak + 1
	}

	if cfg.BonusInterval > 0 && newStreak > 0 && newStreak%cfg.BonusInterval == 0 {
		amount += cfg.StreakBonus
	}

	return amount, newStreak
}
