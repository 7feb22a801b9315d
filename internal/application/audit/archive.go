package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"
)

// ObjectStore is where archived reports are written
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Archiver writes audit reports to object storage, one object per tenant
// and day. A later run on the same day replaces the earlier object.
type Archiver struct {
	store  ObjectStore
	prefix string
	logger *zap.Logger
}

// NewArchiver creates an Archiver writing under prefix
func NewArchiver(store ObjectStore, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, prefix: prefix, logger: logger}
}

// Key is the object key of a report
func (a *Archiver) Key(r *Report) string {
	return path.Join(a.prefix, r.TenantID.String(), r.CheckedAt.UTC().Format("2006-01-02")+".json")
}

// Archive stores the report and returns its key
func (a *Archiver) Archive(ctx context.Context, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode audit report: %w", err)
	}
	key := a.Key(r)
	if err := a.store.Put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	a.logger.Info("audit report archived",
		zap.String("tenant_id", r.TenantID.String()),
		zap.String("key", key),
		zap.Int("findings", r.Findings()))
	return key, nil
}
