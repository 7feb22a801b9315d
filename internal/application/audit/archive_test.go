package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/infrastructure/storage"
)

func TestArchiver_WritesOneObjectPerTenantAndDay(t *testing.T) {
	store := storage.NewMemoryObjectStorage()
	archiver := NewArchiver(store, "ledger-audits", nil)
	tenantID := uuid.MustParse("9b2f4a57-0c1e-4d0f-9f55-0c6b3b1e2a10")

	report := &Report{
		TenantID:      tenantID,
		CheckedAt:     time.Date(2026, time.March, 4, 2, 0, 5, 0, time.UTC),
		MetalAccounts: 3,
		ObligationFindings: []ObligationFinding{
			{ObligationID: uuid.New(), Kind: "INVOICE", Number: "SB-7", Problem: "paid plus pending differs from total"},
		},
	}
	key, err := archiver.Archive(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "ledger-audits/9b2f4a57-0c1e-4d0f-9f55-0c6b3b1e2a10/2026-03-04.json", key)

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tenantID, decoded.TenantID)
	assert.Equal(t, 1, decoded.Findings())

	// a second run the same day replaces the object
	report.ObligationFindings = nil
	_, err = archiver.Archive(context.Background(), report)
	require.NoError(t, err)
	assert.Len(t, store.Keys("ledger-audits/"), 1)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) error {
	return errors.New("bucket unreachable")
}

func TestArchiver_PropagatesStoreError(t *testing.T) {
	archiver := NewArchiver(failingStore{}, "x", nil)
	_, err := archiver.Archive(context.Background(), &Report{TenantID: uuid.New(), CheckedAt: time.Now()})
	assert.EqualError(t, err, "bucket unreachable")
}
