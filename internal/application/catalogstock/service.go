// Package catalogstock keeps the on-hand quantity of finished catalog items
// in step with posted sale bills.
package catalogstock

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/scope"
	"github.com/jewelryerp/backend/internal/domain/catalogstock"
	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// SetLevelRequest records a counted quantity for a catalog item
type SetLevelRequest struct {
	CatalogItemID uuid.UUID       `json:"catalog_item_id" binding:"required"`
	Name          string          `json:"name" binding:"max=200"`
	Quantity      decimal.Decimal `json:"quantity" binding:"decimal_gte0"`
}

// LevelResponse is the stock of one catalog item
type LevelResponse struct {
	CatalogItemID uuid.UUID       `json:"catalog_item_id"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toLevelResponse(l *catalogstock.Level) LevelResponse {
	return LevelResponse{CatalogItemID: l.CatalogItemID, Name: l.Name, Quantity: l.Quantity, UpdatedAt: l.UpdatedAt}
}

// Service reads and adjusts catalog stock levels
type Service struct {
	scope  scope.TransactionScope
	retry  scope.RetryPolicy
	logger *zap.Logger
}

// NewService creates a Service
func NewService(ts scope.TransactionScope, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{scope: ts, retry: scope.DefaultRetryPolicy(), logger: logger}
}

// SetLevel overwrites the quantity of an item, creating its level on first use
func (s *Service) SetLevel(ctx context.Context, tenantID uuid.UUID, req SetLevelRequest) (*LevelResponse, error) {
	level, err := catalogstock.NewLevel(tenantID, req.CatalogItemID, req.Name, req.Quantity)
	if err != nil {
		return nil, err
	}
	var resp LevelResponse
	err = s.scope.Execute(ctx, func(repos scope.Repositories) error {
		if err := repos.CatalogStock().Upsert(ctx, level); err != nil {
			return err
		}
		stored, err := repos.CatalogStock().FindByItem(ctx, tenantID, req.CatalogItemID)
		if err != nil {
			return err
		}
		resp = toLevelResponse(stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLevel returns the stock of one item
func (s *Service) GetLevel(ctx context.Context, tenantID, catalogItemID uuid.UUID) (*LevelResponse, error) {
	var resp LevelResponse
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		l, err := repos.CatalogStock().FindByItem(ctx, tenantID, catalogItemID)
		if err != nil {
			return err
		}
		resp = toLevelResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListLevels returns all levels of a tenant by name
func (s *Service) ListLevels(ctx context.Context, tenantID uuid.UUID) ([]LevelResponse, error) {
	var out []LevelResponse
	err := s.scope.Execute(ctx, func(repos scope.Repositories) error {
		levels, err := repos.CatalogStock().List(ctx, tenantID)
		if err != nil {
			return err
		}
		out = make([]LevelResponse, len(levels))
		for i := range levels {
			out[i] = toLevelResponse(&levels[i])
		}
		return nil
	})
	return out, err
}

// apply reduces or restores every line of a sale in one transaction, locking
// levels in item id order. A reduction short of stock fails as a whole so the
// outbox retries it.
func (s *Service) apply(ctx context.Context, tenantID uuid.UUID, lines []sales.StockLine, reduce bool) error {
	return scope.ExecuteWithRetry(ctx, s.scope, s.retry, func(repos scope.Repositories) error {
		ordered := slices.Clone(lines)
		slices.SortStableFunc(ordered, func(a, b sales.StockLine) int {
			return strings.Compare(a.CatalogItemID.String(), b.CatalogItemID.String())
		})
		for _, line := range ordered {
			level, err := repos.CatalogStock().FindByItemForUpdate(ctx, tenantID, line.CatalogItemID)
			if errors.Is(err, shared.ErrNotFound) && !reduce {
				// restoring an item nobody counted yet starts its level
				fresh, err := catalogstock.NewLevel(tenantID, line.CatalogItemID, "", line.Quantity)
				if err != nil {
					return err
				}
				if err := repos.CatalogStock().Upsert(ctx, fresh); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if reduce {
				err = level.Reduce(line.Quantity)
			} else {
				err = level.Restore(line.Quantity)
			}
			if err != nil {
				return err
			}
			if err := repos.CatalogStock().SaveWithLock(ctx, level); err != nil {
				return err
			}
		}
		return nil
	})
}
