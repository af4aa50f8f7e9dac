package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/digilinex/backend/internal/models"
)

// AccountService is the write path for fields owned by external
// collaborators. The purchase tracker flips the tier here; the claim ledger
// only ever reads it.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

// SetTier updates the account tier. Balance, streak and the cooldown are
// never touched on this path.
func (s *AccountService) SetTier(ctx context.Context, accountID string, tier models.Tier) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mining_accounts
		SET tier = $1, updated_at = $2
		WHERE account_id = $3`,
		string(tier), time.Now(), accountID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		log.Printf("[ACCOUNT] Tier for account %s set to %s", accountID, tier)
		return nil
	}

	// No mining row yet: create it with the requested tier, provided the
	// user exists.
	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE account_id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mining_accounts (account_id, balance, streak, tier, version, updated_at)
		VALUES ($1, 0, 0, $2, 1, $3)
		ON CONFLICT (account_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = EXCLUDED.updated_at`,
		accountID, string(tier), time.Now())
	if err != nil {
		return err
	}

	log.Printf("[ACCOUNT] Mining account created for %s with tier %s", accountID, tier)
	return nil
}
