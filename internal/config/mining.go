package config

import (
	"os"
	"strconv"
	"time"
)

type MiningConfig struct {
	Cooldown           time.Duration
	GraceWindow        time.Duration
	BaseRewardInactive int64
	BaseRewardActive   int64
	StreakBonus        int64
	BonusInterval      int
	MaxCommitAttempts  int
	RetryBackoff       time.Duration
	RecentWindow       time.Duration
	TeamShareBps       int64
	NotificationQueue  string
	InviteTTL          time.Duration
}

func LoadMiningConfig() *MiningConfig {
	return &MiningConfig{
		Cooldown:           getEnvAsDuration("MINING_COOLDOWN", 24*time.Hour),
		GraceWindow:        getEnvAsDuration("MINING_GRACE_WINDOW", 48*time.Hour),
		BaseRewardInactive: getEnvAsInt64("MINING_BASE_REWARD_INACTIVE", 500),
		BaseRewardActive:   getEnvAsInt64("MINING_BASE_REWARD_ACTIVE", 1000),
		StreakBonus:        getEnvAsInt64("MINING_STREAK_BONUS", 750),
		BonusInterval:      getEnvAsInt("MINING_BONUS_INTERVAL", 7),
		MaxCommitAttempts:  getEnvAsInt("MINING_MAX_COMMIT_ATTEMPTS", 3),
		RetryBackoff:       getEnvAsDuration("MINING_RETRY_BACKOFF", 50*time.Millisecond),
		RecentWindow:       getEnvAsDuration("MINING_RECENT_WINDOW", 7*24*time.Hour),
		TeamShareBps:       getEnvAsInt64("MINING_TEAM_SHARE_BPS", 1000),
		NotificationQueue:  getEnv("MINING_NOTIFICATION_QUEUE", "mining_notifications"),
		InviteTTL:          getEnvAsDuration("REFERRAL_INVITE_TTL", 24*time.Hour),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
