package bank

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/shared"
	"github.com/jewelryerp/backend/internal/infrastructure/persistence/models"
	"github.com/jewelryerp/backend/tests/testutil"
)

var (
	ctx    = context.Background()
	tenant = testutil.TestTenantID()
)

func newTestLedger(t *testing.T, opening string) (*AccountLedger, *AccountResponse, *testutil.LedgerEnv) {
	t.Helper()
	env := testutil.NewLedgerEnv(t)
	ledger := NewAccountLedger(env.Scope, zap.NewNop(), WithClock(shared.FixedClock{T: testutil.Day(1)}))
	account, err := ledger.OpenAccount(ctx, tenant, OpenAccountRequest{
		Name: "HDFC Current", Kind: string(bank.KindBank), AccountNumber: "5010", OpeningBalance: testutil.D(opening),
	})
	require.NoError(t, err)
	return ledger, account, env
}

func at(day int) *time.Time {
	d := testutil.Day(day)
	return &d
}

func TestAccountLedger_DebitSnapshotsBalance(t *testing.T) {
	ledger, account, env := newTestLedger(t, "10000")

	entry, err := ledger.RecordDebit(ctx, tenant, PostingRequest{
		AccountID: account.ID, Amount: testutil.D("4000"), Source: string(bank.SourcePaymentMade), TransactionDate: at(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "6000", entry.BalanceAfterTransaction.String())
	assert.Equal(t, "10000", entry.BalanceBefore.String())

	got, err := ledger.GetAccount(ctx, tenant, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "6000", got.CurrentBalance.String())
	assert.Equal(t, int64(1), got.EntryCount)
	assert.Equal(t, []string{bank.EventTypeBankEntryRecorded}, env.OutboxEventTypes(t))
}

func TestAccountLedger_OverdraftAllowedButCoveredDebitRefuses(t *testing.T) {
	ledger, account, _ := newTestLedger(t, "100")

	entry, err := ledger.RecordDebit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("150")})
	require.NoError(t, err)
	assert.Equal(t, "-50", entry.BalanceAfterTransaction.String())
	assert.Equal(t, string(bank.SourceManual), entry.Source)

	err = ledger.scope.Execute(ctx, func(repos scope.Repositories) error {
		_, _, err := ledger.DebitCoveredTx(ctx, repos, tenant, account.ID, testutil.D("1"),
			bank.Posting{Source: bank.SourcePaymentMade}, testutil.Day(3))
		return err
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientBalance)

	got, err := ledger.GetAccount(ctx, tenant, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "-50", got.CurrentBalance.String())
	assert.Equal(t, int64(1), got.EntryCount)
}

func TestAccountLedger_BalanceAtDate(t *testing.T) {
	ledger, account, _ := newTestLedger(t, "10000")

	_, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("2500"), TransactionDate: at(2)})
	require.NoError(t, err)
	_, err = ledger.RecordDebit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("4000"), TransactionDate: at(5)})
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"before any entry", testutil.Day(1), "10000"},
		{"after the credit", testutil.Day(3), "12500"},
		{"on the debit", testutil.Day(5), "8500"},
		{"later", testutil.Day(20), "8500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, err := ledger.BalanceAtDate(ctx, tenant, account.ID, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, balance.String())
		})
	}

	_, err = ledger.BalanceAtDate(ctx, tenant, uuid.New(), testutil.Day(3))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAccountLedger_BackdatedEntryKeepsSnapshotsMonotonic(t *testing.T) {
	ledger, account, _ := newTestLedger(t, "0")

	_, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("100"), TransactionDate: at(5)})
	require.NoError(t, err)
	late, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("50"), TransactionDate: at(2)})
	require.NoError(t, err)
	assert.True(t, late.TransactionDate.Equal(testutil.Day(5)))

	balance, err := ledger.BalanceAtDate(ctx, tenant, account.ID, testutil.Day(5))
	require.NoError(t, err)
	assert.Equal(t, "150", balance.String())
}

func TestAccountLedger_ReconcileOnce(t *testing.T) {
	ledger, account, _ := newTestLedger(t, "0")
	entry, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("75.50")})
	require.NoError(t, err)

	reconciled, err := ledger.Reconcile(ctx, tenant, entry.ID, ReconcileEntryRequest{ReconciledBy: "asha"})
	require.NoError(t, err)
	assert.True(t, reconciled.Reconciled)
	assert.Equal(t, "asha", reconciled.ReconciledBy)
	assert.True(t, reconciled.Amount.Equal(entry.Amount))

	_, err = ledger.Reconcile(ctx, tenant, entry.ID, ReconcileEntryRequest{ReconciledBy: "ravi"})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	entries, _, err := ledger.ListEntries(ctx, tenant, account.ID, shared.DefaultPage())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "asha", entries[0].ReconciledBy)
}

func TestAccountLedger_Verify(t *testing.T) {
	ledger, account, env := newTestLedger(t, "1000")
	for _, amount := range []string{"250", "125.25"} {
		_, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D(amount)})
		require.NoError(t, err)
	}
	_, err := ledger.RecordDebit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("300")})
	require.NoError(t, err)

	result, err := ledger.Verify(ctx, tenant, account.ID)
	require.NoError(t, err)
	assert.True(t, result.Consistent, result.Problem)
	assert.Equal(t, "1075.25", result.Expected.String())

	require.NoError(t, env.DB.Model(&models.BankAccountModel{}).
		Where("id = ?", account.ID).
		Update("current_balance", testutil.D("999")).Error)

	result, err = ledger.Verify(ctx, tenant, account.ID)
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.NotEmpty(t, result.Problem)
}

func TestAccountLedger_Validation(t *testing.T) {
	ledger, account, _ := newTestLedger(t, "0")

	_, err := ledger.OpenAccount(ctx, tenant, OpenAccountRequest{Name: "Drawer", Kind: "WALLET"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("0")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: uuid.New(), Amount: testutil.D("1")})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	accounts, err := ledger.ListAccounts(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestAccountLedger_SubCentAmountWritesNothing(t *testing.T) {
	ledger, account, env := newTestLedger(t, "100")

	_, err := ledger.RecordCredit(ctx, tenant, PostingRequest{AccountID: account.ID, Amount: testutil.D("0.004")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	got, err := ledger.GetAccount(ctx, tenant, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", got.CurrentBalance.String())
	assert.Zero(t, got.EntryCount)
	assert.Empty(t, env.OutboxEventTypes(t))
}
