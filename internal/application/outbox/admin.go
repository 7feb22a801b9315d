// Package outbox exposes the operator side of the event outbox: inspecting
// undeliverable entries and putting them back in the queue.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// EntryResponse is one outbox entry without its payload
type EntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StatsResponse counts entries per status
type StatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// Nudger wakes the outbox processor so requeued entries go out without
// waiting for the next poll
type Nudger interface {
	Nudge()
}

// Admin manages dead letters of the outbox
type Admin struct {
	repo   shared.OutboxRepository
	nudger Nudger
	logger *zap.Logger
}

// NewAdmin creates an Admin. nudger may be nil.
func NewAdmin(repo shared.OutboxRepository, nudger Nudger, logger *zap.Logger) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{repo: repo, nudger: nudger, logger: logger}
}

// ListDead returns dead letters, most recently failed first
func (a *Admin) ListDead(ctx context.Context, page shared.Page) (shared.Paginated[EntryResponse], error) {
	page = page.Normalize()
	entries, total, err := a.repo.FindDead(ctx, page.Page, page.PageSize)
	if err != nil {
		a.logger.Error("failed to find dead letter entries", zap.Error(err))
		return shared.Paginated[EntryResponse]{}, err
	}
	items := make([]EntryResponse, len(entries))
	for i, entry := range entries {
		items[i] = toEntryResponse(entry)
	}
	return shared.NewPaginated(items, total, page), nil
}

// GetEntry returns a single entry
func (a *Admin) GetEntry(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := a.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEntryResponse(entry)
	return &resp, nil
}

// RetryDead puts one dead letter back into the pending queue
func (a *Admin) RetryDead(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := a.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, err
	}
	if err := a.repo.Update(ctx, entry); err != nil {
		a.logger.Error("failed to requeue outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, err
	}
	a.logger.Info("dead letter requeued",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	a.nudge()

	resp := toEntryResponse(entry)
	return &resp, nil
}

// RetryAllDead requeues every dead letter and returns how many were reset
func (a *Admin) RetryAllDead(ctx context.Context) (int64, error) {
	const batch = 100
	var count int64
	for {
		// requeued entries leave the dead set, so the first page always holds the rest
		entries, _, err := a.repo.FindDead(ctx, 1, batch)
		if err != nil {
			a.logger.Error("failed to find dead letter entries", zap.Error(err))
			return count, err
		}
		reset := 0
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := a.repo.Update(ctx, entry); err != nil {
				a.logger.Error("failed to requeue outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			reset++
		}
		count += int64(reset)
		if len(entries) < batch || reset == 0 {
			break
		}
	}

	a.logger.Info("dead letters requeued", zap.Int64("count", count))
	if count > 0 {
		a.nudge()
	}
	return count, nil
}

// Stats counts entries per status
func (a *Admin) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := a.repo.CountByStatus(ctx)
	if err != nil {
		a.logger.Error("failed to count outbox entries", zap.Error(err))
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &StatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
		Total:      total,
	}, nil
}

// PurgeSent deletes delivered entries processed before the cutoff
func (a *Admin) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	n, err := a.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, err
	}
	a.logger.Info("purged delivered outbox entries", zap.Int64("count", n), zap.Time("before", before))
	return n, nil
}

func (a *Admin) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := a.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && entry == nil) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "outbox entry not found")
	}
	if err != nil {
		a.logger.Error("failed to find outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, err
	}
	return entry, nil
}

func (a *Admin) nudge() {
	if a.nudger != nil {
		a.nudger.Nudge()
	}
}

func toEntryResponse(entry *shared.OutboxEntry) EntryResponse {
	return EntryResponse{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
