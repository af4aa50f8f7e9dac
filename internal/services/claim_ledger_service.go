package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/digilinex/backend/internal/audit"
	"github.com/digilinex/backend/internal/clock"
	"github.com/digilinex/backend/internal/config"
	"github.com/digilinex/backend/internal/models"
)

// ClaimLedgerService owns all writes to per-account mining state. Self-claims
// commit the claim record, the balance increment, the cooldown reset and the
// streak update in a single transaction guarded by a row lock and a version
// check, so two racing claims for one account can never both succeed.
type ClaimLedgerService struct {
	db       *sql.DB
	clock    clock.Clock
	cfg      *config.MiningConfig
	primary  NotificationSink
	fallback NotificationSink
	audit    *audit.Logger
}

func NewClaimLedgerService(db *sql.DB, clk clock.Clock, sink NotificationSink) *ClaimLedgerService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if sink == nil {
		sink = LogNotificationSink{}
	}
	return &ClaimLedgerService{
		db:       db,
		clock:    clk,
		cfg:      config.LoadMiningConfig(),
		primary:  sink,
		fallback: LogNotificationSink{},
		audit:    audit.NewLogger(),
	}
}

// Config exposes the mining constants for read-side callers (history window,
// cooldown display).
func (s *ClaimLedgerService) Config() *config.MiningConfig {
	return s.cfg
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetState returns the read-only projection of an account's mining state.
// The mining row is created with defaults on first read for a known user.
func (s *ClaimLedgerService) GetState(ctx context.Context, accountID string) (*models.MiningState, error) {
	acct, err := s.fetchAccount(ctx, s.db, accountID, false)
	if err == sql.ErrNoRows {
		if err := s.ensureAccount(ctx, s.db, accountID); err != nil {
			return nil, err
		}
		acct, err = s.fetchAccount(ctx, s.db, accountID, false)
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	claimable, remaining := Claimability(acct.LastClaimAt, now, s.cfg.Cooldown)

	return &models.MiningState{
		AccountID:   accountID,
		LastClaimAt: acct.LastClaimAt,
		Balance:     acct.Balance,
		Streak:      acct.Streak,
		Tier:        acct.Tier,
		Claimable:   claimable,
		RemainingMs: remaining.Milliseconds(),
	}, nil
}

// Claim commits a self-claim for the account. Store conflicts are retried
// from a fresh read with backoff; the claim is never partially applied.
func (s *ClaimLedgerService) Claim(ctx context.Context, accountID string) (*models.ClaimRecord, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxCommitAttempts; attempt++ {
		if attempt > 0 {
			log.Printf("[MINING] Retrying claim for account %s, attempt %d", accountID, attempt+1)
			time.Sleep(s.cfg.RetryBackoff * time.Duration(attempt))
		}

		record, streak, err := s.claimOnce(ctx, accountID)
		if err == ErrStoreConflict {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		s.audit.LogClaim(record.ID, accountID, record.Amount, streak)
		go s.notify(Notification{
			AccountID: accountID,
			Kind:      NotificationClaim,
			Message:   fmt.Sprintf("Daily claim successful: +%d points (streak %d)", record.Amount, streak),
			Route:     "/mining",
			CreatedAt: record.CreatedAt,
		})
		return record, nil
	}

	s.audit.LogError(accountID, lastErr)
	return nil, lastErr
}

func (s *ClaimLedgerService) claimOnce(ctx context.Context, accountID string) (*models.ClaimRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	acct, err := s.fetchAccount(ctx, tx, accountID, true)
	if err == sql.ErrNoRows {
		// First claim for a user who has never been read either.
		if err := s.ensureAccount(ctx, tx, accountID); err != nil {
			return nil, 0, err
		}
		acct, err = s.fetchAccount(ctx, tx, accountID, true)
	}
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	claimable, remaining := Claimability(acct.LastClaimAt, now, s.cfg.Cooldown)
	if !claimable {
		return nil, 0, &CooldownError{Remaining: remaining}
	}

	amount, newStreak := ComputeReward(acct.Streak, acct.LastClaimAt, now, acct.Tier, s.cfg)

	record := &models.ClaimRecord{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    amount,
		Origin:    models.OriginSelf,
		CreatedAt: now,
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claim_records (id, account_id, amount, origin, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		record.ID, accountID, amount, string(models.OriginSelf), now); err != nil {
		return nil, 0, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE mining_accounts
		SET balance = balance + $1, last_claim_at = $2, streak = $3, version = version + 1, updated_at = $2
		WHERE account_id = $4 AND version = $5`,
		amount, now, newStreak, accountID, acct.Version)
	if err != nil {
		return nil, 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, 0, err
	}
	if rowsAffected == 0 {
		return nil, 0, ErrStoreConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}

	return record, newStreak, nil
}

// RecordTeamCredit appends a team-origin record and accumulates the balance.
// It never touches the cooldown or the streak of the receiving account and
// has no eligibility gate of its own.
func (s *ClaimLedgerService) RecordTeamCredit(ctx context.Context, accountID string, amount int64, sourceUserID, sourceName string) (*models.ClaimRecord, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("team credit amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.ensureAccount(ctx, tx, accountID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &models.ClaimRecord{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Amount:       amount,
		Origin:       models.OriginTeam,
		SourceUserID: sourceUserID,
		SourceName:   sourceName,
		CreatedAt:    now,
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claim_records (id, account_id, amount, origin, source_user_id, source_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, accountID, amount, string(models.OriginTeam), sourceUserID, sourceName, now); err != nil {
		return nil, err
	}

	// Commutative accumulate: no version bump, so a concurrent self-claim
	// holding the row lock is never spuriously conflicted.
	if _, err := tx.ExecContext(ctx, `
		UPDATE mining_accounts
		SET balance = balance + $1, updated_at = $2
		WHERE account_id = $3`,
		amount, now, accountID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogTeamCredit(record.ID, accountID, sourceUserID, amount)
	go s.notify(Notification{
		AccountID: accountID,
		Kind:      NotificationClaim,
		Message:   fmt.Sprintf("Team credit received: +%d points from %s", amount, sourceName),
		Route:     "/mining",
		CreatedAt: now,
	})

	return record, nil
}

func (s *ClaimLedgerService) fetchAccount(ctx context.Context, q execQuerier, accountID string, forUpdate bool) (*models.MiningAccount, error) {
	query := `
		SELECT last_claim_at, balance, streak, tier, version
		FROM mining_accounts
		WHERE account_id = $1`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	acct := &models.MiningAccount{AccountID: accountID}
	err := q.QueryRowContext(ctx, query, accountID).
		Scan(&acct.LastClaimAt, &acct.Balance, &acct.Streak, &acct.Tier, &acct.Version)
	if err != nil {
		return nil, err
	}

	return acct, nil
}

// ensureAccount creates the default mining row (no last claim, zero balance,
// zero streak, inactive tier) for a known user. Unknown account ids fail
// with ErrAccountNotFound.
func (s *ClaimLedgerService) ensureAccount(ctx context.Context, q execQuerier, accountID string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE account_id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO mining_accounts (account_id, balance, streak, tier, version, updated_at)
		VALUES ($1, 0, 0, $2, 1, $3)
		ON CONFLICT (account_id) DO NOTHING`,
		accountID, string(models.TierInactive), s.clock.Now())
	return err
}

func (s *ClaimLedgerService) notify(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.primary.Notify(ctx, n); err != nil {
		log.Printf("[MINING] Notification dispatch failed for account %s, using fallback: %v", n.AccountID, err)
		if err := s.fallback.Notify(ctx, n); err != nil {
			log.Printf("[MINING] Fallback notification failed for account %s: %v", n.AccountID, err)
		}
	}
}
