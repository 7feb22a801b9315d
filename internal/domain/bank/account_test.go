package bank

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

func newTestAccount(t *testing.T, opening int64) *BankAccount {
	t.Helper()
	a, err := NewBankAccount(uuid.New(), "Main Counter", KindCash, "", decimal.NewFromInt(opening))
	require.NoError(t, err)
	return a
}

func manual() Posting {
	return Posting{Source: SourceManual, Reference: Reference{Type: "MANUAL", ID: uuid.New()}}
}

func TestBankAccount_Debit(t *testing.T) {
	a := newTestAccount(t, 10000)

	entry, err := a.Debit(decimal.NewFromInt(4000), manual(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, "6000", entry.BalanceAfterTransaction.String())
	assert.Equal(t, "10000", entry.BalanceBefore.String())
	assert.Equal(t, "6000", a.CurrentBalance.String())
	assert.Equal(t, DirectionDebit, entry.Direction)
	assert.Equal(t, int64(1), entry.Sequence)
	assert.Equal(t, "-4000", entry.SignedAmount().String())
}

func TestBankAccount_OverdraftAllowed(t *testing.T) {
	a := newTestAccount(t, 100)

	assert.False(t, a.CanCover(decimal.NewFromInt(150)))
	entry, err := a.Debit(decimal.NewFromInt(150), manual(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, "-50", entry.BalanceAfterTransaction.String())
}

func TestBankAccount_BalanceIdentity(t *testing.T) {
	a := newTestAccount(t, 1000)
	credits, debits := decimal.Zero, decimal.Zero

	for i, amt := range []int64{250, 75, 900, 10} {
		v := decimal.NewFromInt(amt)
		if i%2 == 0 {
			_, err := a.Credit(v, manual(), time.Now())
			require.NoError(t, err)
			credits = credits.Add(v)
		} else {
			_, err := a.Debit(v, manual(), time.Now())
			require.NoError(t, err)
			debits = debits.Add(v)
		}
	}

	require.NoError(t, a.Verify(credits, debits))
	assert.Equal(t, "2065", a.CurrentBalance.String())
	assert.Error(t, a.Verify(credits, decimal.Zero))
}

func TestBankAccount_TimestampsAreMonotonic(t *testing.T) {
	a := newTestAccount(t, 0)
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := a.Credit(decimal.NewFromInt(5), manual(), t1)
	require.NoError(t, err)
	e2, err := a.Credit(decimal.NewFromInt(5), manual(), t1.Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, t1, e2.TransactionDate)
}

func TestBankAccount_Validation(t *testing.T) {
	a := newTestAccount(t, 0)

	_, err := a.Credit(decimal.Zero, manual(), time.Now())
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = a.Credit(decimal.NewFromInt(1), Posting{Source: "GIFT"}, time.Now())
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewBankAccount(uuid.New(), " ", KindBank, "", decimal.Zero)
	assert.ErrorIs(t, err, shared.ErrValidation)

	assert.Equal(t, int64(0), a.EntryCount)
}

func TestBankLedgerEntry_MarkReconciled(t *testing.T) {
	a := newTestAccount(t, 0)
	entry, err := a.Credit(decimal.NewFromInt(10), manual(), time.Now())
	require.NoError(t, err)
	now := time.Now()

	require.NoError(t, entry.MarkReconciled("auditor", now))
	assert.True(t, entry.Reconciled)
	assert.Equal(t, "auditor", entry.ReconciledBy)
	assert.Equal(t, "10", entry.Amount.String())

	assert.ErrorIs(t, entry.MarkReconciled("auditor", now), shared.ErrInvalidState)
}

func TestBankAccount_AmountBelowOneCentIsRejected(t *testing.T) {
	a := newTestAccount(t, 100)

	for _, raw := range []string{"0.004", "-0.004", "0"} {
		_, err := a.Credit(decimal.RequireFromString(raw), manual(), time.Now())
		assert.ErrorIs(t, err, shared.ErrValidation, raw)
	}
	assert.Equal(t, "100", a.CurrentBalance.String())
	assert.Zero(t, a.EntryCount)

	entry, err := a.Credit(decimal.RequireFromString("0.005"), manual(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0.01", entry.Amount.String())
}

func TestBankAccount_EntryStampedWithRecordedAt(t *testing.T) {
	a := newTestAccount(t, 100)
	txDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recorded := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)

	p := manual()
	p.RecordedAt = recorded
	entry, err := a.Credit(decimal.NewFromInt(5), p, txDate)
	require.NoError(t, err)
	assert.Equal(t, txDate, entry.TransactionDate)
	assert.Equal(t, recorded, entry.CreatedAt)

	entry, err = a.Credit(decimal.NewFromInt(5), manual(), txDate)
	require.NoError(t, err)
	assert.Equal(t, txDate, entry.CreatedAt, "falls back to the transaction date")
}
