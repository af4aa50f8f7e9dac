package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digilinex/backend/internal/clock"
	"github.com/digilinex/backend/internal/models"
)

const (
	fetchAccountQuery          = `SELECT last_claim_at, balance, streak, tier, version FROM mining_accounts WHERE account_id = \$1`
	fetchAccountForUpdateQuery = fetchAccountQuery + ` FOR UPDATE`
	userExistsQuery            = `SELECT EXISTS\(SELECT 1 FROM users WHERE account_id = \$1\)`
	insertAccountQuery         = `INSERT INTO mining_accounts`
	insertClaimQuery           = `INSERT INTO claim_records`
	claimUpdateQuery           = `UPDATE mining_accounts SET balance = balance \+ \$1, last_claim_at = \$2, streak = \$3, version = version \+ 1, updated_at = \$2 WHERE account_id = \$4 AND version = \$5`
	creditUpdateQuery          = `UPDATE mining_accounts SET balance = balance \+ \$1, updated_at = \$2 WHERE account_id = \$3`
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newLedgerForTest(t *testing.T) (*ClaimLedgerService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewClaimLedgerService(db, clock.FixedClock{Instant: testNow}, nil)
	svc.cfg.RetryBackoff = time.Millisecond
	return svc, mock
}

func accountColumns() []string {
	return []string{"last_claim_at", "balance", "streak", "tier", "version"}
}

func TestClaimLedgerService_Claim_FirstClaim(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 1))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0001", int64(500), "self", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimUpdateQuery).
		WithArgs(int64(500), testNow, 1, "DLX0001", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := svc.Claim(context.Background(), "DLX0001")
	require.NoError(t, err)
	assert.Equal(t, int64(500), record.Amount)
	assert.Equal(t, models.OriginSelf, record.Origin)
	assert.Equal(t, testNow, record.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_ContinuesStreakAndPaysBonus(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	lastClaim := testNow.Add(-25 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(lastClaim, 3000, 6, "inactive", 7))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0001", int64(1250), "self", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimUpdateQuery).
		WithArgs(int64(1250), testNow, 7, "DLX0001", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := svc.Claim(context.Background(), "DLX0001")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), record.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_CooldownActive(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	lastClaim := testNow.Add(-1 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(lastClaim, 500, 1, "inactive", 2))
	mock.ExpectRollback()

	record, err := svc.Claim(context.Background(), "DLX0001")
	require.Error(t, err)
	assert.Nil(t, record)

	var cooldownErr *CooldownError
	require.True(t, errors.As(err, &cooldownErr))
	assert.Equal(t, 23*time.Hour, cooldownErr.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_CreatesAccountForKnownUser(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0002").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(userExistsQuery).
		WithArgs("DLX0002").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(insertAccountQuery).
		WithArgs("DLX0002", "inactive", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0002").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 1))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0002", int64(500), "self", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimUpdateQuery).
		WithArgs(int64(500), testNow, 1, "DLX0002", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := svc.Claim(context.Background(), "DLX0002")
	require.NoError(t, err)
	assert.Equal(t, int64(500), record.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_UnknownAccount(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(userExistsQuery).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	record, err := svc.Claim(context.Background(), "NOPE")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_RetriesOnVersionConflict(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	// First attempt loses the version race.
	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 1))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0001", int64(500), "self", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimUpdateQuery).
		WithArgs(int64(500), testNow, 1, "DLX0001", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// Second attempt re-reads and commits against the new version.
	mock.ExpectBegin()
	mock.ExpectQuery(fetchAccountForUpdateQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 2))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0001", int64(500), "self", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(claimUpdateQuery).
		WithArgs(int64(500), testNow, 1, "DLX0001", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := svc.Claim(context.Background(), "DLX0001")
	require.NoError(t, err)
	assert.Equal(t, int64(500), record.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_Claim_ConflictExhaustsRetries(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	for i := 0; i < svc.cfg.MaxCommitAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(fetchAccountForUpdateQuery).
			WithArgs("DLX0001").
			WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 1))
		mock.ExpectExec(insertClaimQuery).
			WithArgs(sqlmock.AnyArg(), "DLX0001", int64(500), "self", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(claimUpdateQuery).
			WithArgs(int64(500), testNow, 1, "DLX0001", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	record, err := svc.Claim(context.Background(), "DLX0001")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrStoreConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_RecordTeamCredit(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(userExistsQuery).
		WithArgs("DLX0002").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(insertAccountQuery).
		WithArgs("DLX0002", "inactive", testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertClaimQuery).
		WithArgs(sqlmock.AnyArg(), "DLX0002", int64(100), "team", "DLX0001", "Ada Lovelace", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(creditUpdateQuery).
		WithArgs(int64(100), testNow, "DLX0002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := svc.RecordTeamCredit(context.Background(), "DLX0002", 100, "DLX0001", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, models.OriginTeam, record.Origin)
	assert.Equal(t, "DLX0001", record.SourceUserID)
	assert.Equal(t, "Ada Lovelace", record.SourceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_RecordTeamCredit_RejectsNonPositiveAmount(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	_, err := svc.RecordTeamCredit(context.Background(), "DLX0002", 0, "DLX0001", "Ada Lovelace")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_GetState(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	lastClaim := testNow.Add(-1 * time.Hour)

	mock.ExpectQuery(fetchAccountQuery).
		WithArgs("DLX0001").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(lastClaim, 900, 3, "active", 4))

	state, err := svc.GetState(context.Background(), "DLX0001")
	require.NoError(t, err)
	assert.Equal(t, int64(900), state.Balance)
	assert.Equal(t, 3, state.Streak)
	assert.Equal(t, models.TierActive, state.Tier)
	assert.False(t, state.Claimable)
	assert.Equal(t, (23 * time.Hour).Milliseconds(), state.RemainingMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_GetState_CreatesRowOnFirstRead(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectQuery(fetchAccountQuery).
		WithArgs("DLX0003").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(userExistsQuery).
		WithArgs("DLX0003").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(insertAccountQuery).
		WithArgs("DLX0003", "inactive", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(fetchAccountQuery).
		WithArgs("DLX0003").
		WillReturnRows(sqlmock.NewRows(accountColumns()).AddRow(nil, 0, 0, "inactive", 1))

	state, err := svc.GetState(context.Background(), "DLX0003")
	require.NoError(t, err)
	assert.True(t, state.Claimable)
	assert.Equal(t, int64(0), state.RemainingMs)
	assert.Equal(t, int64(0), state.Balance)
	assert.Equal(t, 0, state.Streak)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLedgerService_GetState_UnknownAccount(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	mock.ExpectQuery(fetchAccountQuery).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(userExistsQuery).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	state, err := svc.GetState(context.Background(), "NOPE")
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
