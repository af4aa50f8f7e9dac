package services

import (
	"context"
	"database/sql"

	"github.com/digilinex/backend/internal/clock"
	"github.com/digilinex/backend/internal/config"
	"github.com/digilinex/backend/internal/models"
)

// HistoryService is the read-side projection over the append-only claim
// records. It never writes.
type HistoryService struct {
	db    *sql.DB
	clock clock.Clock
	cfg   *config.MiningConfig
}

func NewHistoryService(db *sql.DB, clk clock.Clock) *HistoryService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &HistoryService{
		db:    db,
		clock: clk,
		cfg:   config.LoadMiningConfig(),
	}
}

// List merges self- and team-origin records for the account into two
// buckets: recent (inside the recent window, default 7 days) and older.
// Each bucket is capped at pageSize with a has-more indicator.
func (s *HistoryService) List(ctx context.Context, accountID string, pageSize int) (*models.ClaimHistory, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	cutoff := s.clock.Now().Add(-s.cfg.RecentWindow)

	recent, moreRecent, err := s.fetchBucket(ctx, accountID, `
		SELECT id, account_id, amount, origin, COALESCE(source_user_id, ''), COALESCE(source_name, ''), created_at
		FROM claim_records
		WHERE account_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id ASC
		LIMIT $3`, cutoff, pageSize)
	if err != nil {
		return nil, err
	}

	older, moreOlder, err := s.fetchBucket(ctx, accountID, `
		SELECT id, account_id, amount, origin, COALESCE(source_user_id, ''), COALESCE(source_name, ''), created_at
		FROM claim_records
		WHERE account_id = $1 AND created_at < $2
		ORDER BY created_at DESC, id ASC
		LIMIT $3`, cutoff, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.ClaimHistory{
		Recent:     recent,
		Older:      older,
		MoreRecent: moreRecent,
		MoreOlder:  moreOlder,
	}, nil
}

func (s *HistoryService) fetchBucket(ctx context.Context, accountID, query string, cutoff any, pageSize int) ([]models.ClaimRecord, bool, error) {
	// Fetch one extra row to detect whether more remain in the bucket.
	rows, err := s.db.QueryContext(ctx, query, accountID, cutoff, pageSize+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	records := []models.ClaimRecord{}
	for rows.Next() {
		var rec models.ClaimRecord
		var origin string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.Amount, &origin, &rec.SourceUserID, &rec.SourceName, &rec.CreatedAt); err != nil {
			return nil, false, err
		}
		rec.Origin = models.ClaimOrigin(origin)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := false
	if len(records) > pageSize {
		hasMore = true
		records = records[:pageSize]
	}

	return records, hasMore, nil
}
