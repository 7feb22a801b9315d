package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

func newStoredObligation(t *testing.T, repo *GormObligationRepository, party uuid.UUID, number string, date int, total string) *finance.Obligation {
	t.Helper()
	o, err := finance.NewObligation(testTenant, finance.KindInvoice, number, party, "Asha Jewels", day(date), dec(total))
	require.NoError(t, err)
	require.NoError(t, repo.Create(testCtx, o))
	return o
}

func TestGormObligationRepository_OutstandingOrder(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormObligationRepository(db)
	party := uuid.New()

	newer := newStoredObligation(t, repo, party, "INV-2", 9, "700")
	older := newStoredObligation(t, repo, party, "INV-1", 3, "500")
	newStoredObligation(t, repo, uuid.New(), "INV-9", 1, "100")

	settled := newStoredObligation(t, repo, party, "INV-0", 1, "50")
	require.NoError(t, settled.ApplyPayment(uuid.New(), dec("50"), day(2)))
	require.NoError(t, repo.SaveWithLock(testCtx, settled))

	outstanding, err := repo.FindOutstandingForUpdate(testCtx, testTenant, finance.KindInvoice, party)
	require.NoError(t, err)
	require.Len(t, outstanding, 2)
	assert.Equal(t, older.ID, outstanding[0].ID)
	assert.Equal(t, newer.ID, outstanding[1].ID)

	pending, err := repo.PendingTotal(testCtx, testTenant, finance.KindInvoice, party)
	require.NoError(t, err)
	assert.Equal(t, "1200", pending.String())

	paid, err := repo.FindPaidForUpdate(testCtx, testTenant, finance.KindInvoice, party)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, settled.ID, paid[0].ID)
	assert.Equal(t, finance.StatusPaid, paid[0].Status)
	require.Len(t, paid[0].Allocations, 1)
	assert.Equal(t, "50", paid[0].Allocations[0].Amount.String())
}

func TestGormObligationRepository_ListAndConflict(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormObligationRepository(db)
	party := uuid.New()

	a := newStoredObligation(t, repo, party, "INV-1", 1, "300")
	newStoredObligation(t, repo, party, "INV-2", 2, "400")

	items, total, err := repo.List(testCtx, testTenant, finance.ObligationFilter{
		PartyID:  &party,
		OrderBy:  "grand_total",
		OrderDir: "desc",
	}, shared.DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "INV-2", items[0].Number)

	stale, err := repo.FindByID(testCtx, testTenant, a.ID)
	require.NoError(t, err)

	require.NoError(t, a.ApplyPayment(uuid.New(), dec("100"), day(3)))
	require.NoError(t, repo.SaveWithLock(testCtx, a))

	require.NoError(t, stale.ApplyPayment(uuid.New(), dec("100"), day(3)))
	assert.ErrorIs(t, repo.SaveWithLock(testCtx, stale), shared.ErrConcurrencyConflict)

	_, err = repo.FindByID(testCtx, testTenant, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormReceiptRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormReceiptRepository(db)
	party := uuid.New()

	receipt, err := finance.NewPaymentReceipt(testTenant, finance.ReceiptInput{
		ObligationKind: finance.KindInvoice,
		PartyID:        party,
		BankAccountID:  uuid.New(),
		Mode:           finance.ModeUPI,
		Reference:      "UTR-42",
		Amount:         dec("600"),
	}, dec("1200"), []finance.ReceiptAllocation{
		{ObligationID: uuid.New(), ObligationNumber: "INV-1", Amount: dec("500"), PendingBefore: dec("500"), PendingAfter: dec("0")},
		{ObligationID: uuid.New(), ObligationNumber: "INV-2", Amount: dec("100"), PendingBefore: dec("700"), PendingAfter: dec("600")},
	}, day(10))
	require.NoError(t, err)
	receipt.LinkBankEntry(uuid.New())
	require.NoError(t, repo.Create(testCtx, receipt))

	stored, err := repo.FindByID(testCtx, testTenant, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "600", stored.RemainingPendingAmount.String())
	require.Len(t, stored.Allocations, 2)
	assert.Equal(t, "INV-2", stored.Allocations[1].ObligationNumber)
	assert.Equal(t, receipt.BankLedgerEntryID, stored.BankLedgerEntryID)

	exists, err := repo.ExistsByReference(testCtx, testTenant, party, "UTR-42")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, stored.Void("entered twice", uuid.New(), day(11)))
	require.NoError(t, repo.SaveWithLock(testCtx, stored))

	exists, err = repo.ExistsByReference(testCtx, testTenant, party, "UTR-42")
	require.NoError(t, err)
	assert.False(t, exists, "voided receipts free their reference")

	list, total, err := repo.ListByParty(testCtx, testTenant, party, shared.DefaultPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, finance.ReceiptVoided, list[0].Status)
}
