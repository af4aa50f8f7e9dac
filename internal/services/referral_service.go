package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/digilinex/backend/internal/config"
	"github.com/digilinex/backend/internal/models"
)

// ReferralService is the adapter around the referral collaborators: invite
// QR generation for the dashboard, and propagation of a referred user's
// committed claim into a team credit on the referrer's ledger.
type ReferralService struct {
	db     *sql.DB
	redis  *redis.Client
	ledger *ClaimLedgerService
	cfg    *config.MiningConfig
}

func NewReferralService(db *sql.DB, redisClient *redis.Client, ledger *ClaimLedgerService) *ReferralService {
	return &ReferralService{
		db:     db,
		redis:  redisClient,
		ledger: ledger,
		cfg:    config.LoadMiningConfig(),
	}
}

// GenerateInviteQR builds a referral invite payload for the account, caches
// it in Redis for the invite TTL and renders it as a QR PNG.
func (s *ReferralService) GenerateInviteQR(ctx context.Context, accountID string) (string, string, error) {
	user, err := s.lookupUser(ctx, accountID)
	if err != nil {
		return "", "", err
	}

	inviteData := map[string]any{
		"accountId":    accountID,
		"referralCode": user.ReferralCode,
		"timestamp":    time.Now().Unix(),
		"nonce":        s.generateNonce(),
	}

	jsonData, err := json.Marshal(inviteData)
	if err != nil {
		return "", "", err
	}

	invite := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("invite:%s", invite)
	if err := s.redis.Set(ctx, key, jsonData, s.cfg.InviteTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(invite, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return invite, qrImage, nil
}

// ResolveInvite looks up a scanned invite payload. Invites stay valid until
// the TTL expires; resolving does not consume them.
func (s *ReferralService) ResolveInvite(ctx context.Context, invite string) (map[string]any, error) {
	key := fmt.Sprintf("invite:%s", invite)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired invite")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// PropagateClaim credits the claimer's referrer with their share of a
// committed claim. Accounts without a referrer are a no-op.
func (s *ReferralService) PropagateClaim(ctx context.Context, claimerID string, claimAmount int64) error {
	user, err := s.lookupUser(ctx, claimerID)
	if err != nil {
		return err
	}

	if user.ReferredBy == nil || *user.ReferredBy == "" {
		return nil
	}

	share := claimAmount * s.cfg.TeamShareBps / 10000
	if share <= 0 {
		return nil
	}

	sourceName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if _, err := s.ledger.RecordTeamCredit(ctx, *user.ReferredBy, share, claimerID, sourceName); err != nil {
		log.Printf("[REFERRAL] Failed to propagate claim from %s to %s: %v", claimerID, *user.ReferredBy, err)
		return err
	}

	return nil
}

// GetReferralCode returns the shareable referral code for the account.
func (s *ReferralService) GetReferralCode(ctx context.Context, accountID string) (string, error) {
	user, err := s.lookupUser(ctx, accountID)
	if err != nil {
		return "", err
	}
	return user.ReferralCode, nil
}

func (s *ReferralService) lookupUser(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	var referredBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, first_name, last_name, referral_code, referred_by
		FROM users WHERE account_id = $1`, accountID).
		Scan(&user.AccountID, &user.FirstName, &user.LastName, &user.ReferralCode, &referredBy)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if referredBy.Valid {
		user.ReferredBy = &referredBy.String
	}

	return &user, nil
}

func (s *ReferralService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
