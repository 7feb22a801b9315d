package handler

import (
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/interfaces/http/dto"
)

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// WeightData is the available weight of a metal key
// @Description Available weight
type WeightData struct {
	MetalKey  string          `json:"metal_key"`
	Available decimal.Decimal `json:"available"`
}

// BalanceData is an account balance at a point in time
// @Description Balance data
type BalanceData struct {
	AccountID string          `json:"account_id"`
	At        string          `json:"at"`
	Balance   decimal.Decimal `json:"balance"`
}

// AmountData is a money total
// @Description Amount data
type AmountData struct {
	Amount decimal.Decimal `json:"amount"`
}

// CountData represents count data in response
// @Description Count data
type CountData struct {
	Count int64 `json:"count"`
}
