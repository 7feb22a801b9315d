package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/application/audit"
	bankledger "github.com/jewelryerp/backend/internal/application/bank"
	"github.com/jewelryerp/backend/internal/application/catalogstock"
	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	manufacturingapp "github.com/jewelryerp/backend/internal/application/manufacturing"
	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/application/outbox"
	"github.com/jewelryerp/backend/internal/application/posting"
	"github.com/jewelryerp/backend/internal/interfaces/http/handler"
	"github.com/jewelryerp/backend/tests/testutil"

	_ "github.com/jewelryerp/backend/docs"
)

type rejections struct {
	mu    sync.Mutex
	codes []string
}

func (r *rejections) RecordRejection(_ context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

type audits struct{ findings []int }

func (a *audits) RecordAudit(_ context.Context, _ uuid.UUID, findings int) {
	a.findings = append(a.findings, findings)
}

type api struct {
	engine  *gin.Engine
	headers map[string]string
	audits  *audits
}

func newAPI(t *testing.T) *api {
	t.Helper()
	env := testutil.NewLedgerEnv(t)
	log := zap.NewNop()

	stock := metalledger.NewMetalStockLedger(env.Scope, log)
	exchange := metalledger.NewExchangeMetalLedger(env.Scope, log)
	accounts := bankledger.NewAccountLedger(env.Scope, log)
	payments := financeapp.NewPaymentService(env.Scope, accounts, log)
	rec := &audits{}

	engine, err := NewEngine(EngineConfig{ServiceName: "ledger-test", Logger: log, MaxBodyBytes: 1 << 20}, Handlers{
		Metal:         handler.NewMetalHandler(stock, exchange),
		Bank:          handler.NewBankHandler(accounts),
		Payment:       handler.NewPaymentHandler(payments),
		Manufacturing: handler.NewManufacturingHandler(manufacturingapp.NewCoordinator(env.Scope, stock, log)),
		Posting:       handler.NewPostingHandler(posting.NewService(env.Scope, stock, exchange, payments, log)),
		CatalogStock:  handler.NewCatalogStockHandler(catalogstock.NewService(env.Scope, log)),
		Audit:         handler.NewAuditHandler(audit.NewAuditor(env.Scope, log), rec),
		Outbox:        handler.NewOutboxHandler(outbox.NewAdmin(env.Outbox, nil, log)),
		System:        handler.NewSystemHandler("ledger-test", "test", nil),
	})
	require.NoError(t, err)
	return &api{engine: engine, headers: testutil.TenantHeader(testutil.TestTenantID().String()), audits: rec}
}

func (a *api) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.PerformRequest(t, a.engine, method, "/api/v1"+path, body, a.headers)
}

func movement(refType string) gin.H {
	return gin.H{"type": refType, "id": uuid.New().String(), "number": "REF-1"}
}

func TestAPI_HealthNeedsNoTenant(t *testing.T) {
	a := newAPI(t)
	w := testutil.PerformRequest(t, a.engine, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.PerformRequest(t, a.engine, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.PerformRequest(t, a.engine, http.MethodGet, "/api/v1/metal/stock/accounts", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_TENANT_REQUIRED")

	w = testutil.PerformRequest(t, a.engine, http.MethodGet, "/api/v1/metal/stock/accounts", nil, testutil.TenantHeader("not-a-uuid"))
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_TENANT_INVALID")
}

func TestAPI_UnknownRoute(t *testing.T) {
	a := newAPI(t)
	testutil.AssertErrorResponse(t, a.do(t, http.MethodGet, "/nowhere", nil), http.StatusNotFound, "ERR_NOT_FOUND")
}

func TestAPI_MetalAcquireConsumeAndShortage(t *testing.T) {
	a := newAPI(t)

	var acc metalledger.AccountResponse
	w := a.do(t, http.MethodPost, "/metal/stock/acquire", gin.H{
		"metal_type": "gold", "purity": "22K", "reference": movement("PURCHASE_INVOICE"),
		"gross_weight": "10.5", "net_weight": "10",
	})
	testutil.AssertSuccess(t, w, http.StatusOK, &acc)
	assert.Equal(t, "STOCK", acc.Pool)
	assert.Equal(t, "10", acc.Available.String())

	w = a.do(t, http.MethodPost, "/metal/stock/consume", gin.H{
		"metal_type": "gold", "purity": "22K", "reference": movement("MANUFACTURING_RECORD"), "weight": "4",
	})
	testutil.AssertSuccess(t, w, http.StatusOK, &acc)
	assert.Equal(t, "6", acc.Available.String())

	w = a.do(t, http.MethodPost, "/metal/stock/consume", gin.H{
		"metal_type": "gold", "purity": "22K", "reference": movement("MANUFACTURING_RECORD"), "weight": "7",
	})
	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_STOCK")

	var weight handler.WeightData
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/metal/STOCK/available?metal_type=gold&purity=22K", nil), http.StatusOK, &weight)
	assert.Equal(t, "6", weight.Available.String())

	// the exchange pool never saw this metal
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/metal/exchange/available?metal_type=gold&purity=22K", nil), http.StatusOK, &weight)
	assert.True(t, weight.Available.IsZero())

	var entries []metalledger.EntryResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, fmt.Sprintf("/metal/stock/accounts/%s/entries", acc.ID), nil), http.StatusOK, &entries)
	assert.Len(t, entries, 2)
}

func TestAPI_MetalRequestValidation(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, http.MethodPost, "/metal/stock/consume", gin.H{
		"metal_type": "gold", "purity": "22K", "reference": movement("ADJUSTMENT"), "weight": "0",
	})
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_VALIDATION")
	assert.Contains(t, w.Body.String(), `"field":"weight"`)

	w = a.do(t, http.MethodPost, "/metal/stock/consume", gin.H{"metal_type": "gold", "weight": "1"})
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_VALIDATION")

	w = a.do(t, http.MethodPost, "/metal/stock/consume", gin.H{"weight": "heavy"})
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_INVALID_JSON")

	w = a.do(t, http.MethodPost, "/metal/vault/consume", gin.H{})
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_BAD_REQUEST")

	w = a.do(t, http.MethodGet, "/metal/stock/accounts/abc", nil)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_BAD_REQUEST")

	w = a.do(t, http.MethodGet, "/metal/stock/accounts/"+uuid.NewString(), nil)
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, "ERR_NOT_FOUND")
}

func TestAPI_BankAccountFlow(t *testing.T) {
	a := newAPI(t)

	var acc bankledger.AccountResponse
	w := a.do(t, http.MethodPost, "/bank/accounts", gin.H{"name": "Counter cash", "kind": "CASH", "opening_balance": "1000"})
	testutil.AssertSuccess(t, w, http.StatusCreated, &acc)

	var entry bankledger.EntryResponse
	w = a.do(t, http.MethodPost, "/bank/credits", gin.H{"account_id": acc.ID, "amount": "250", "transaction_date": "2026-01-05T10:00:00Z"})
	testutil.AssertSuccess(t, w, http.StatusCreated, &entry)
	assert.Equal(t, "1250", entry.BalanceAfterTransaction.String())

	w = a.do(t, http.MethodPost, "/bank/debits", gin.H{"account_id": acc.ID, "amount": "2000", "transaction_date": "2026-01-06T10:00:00Z"})
	testutil.AssertSuccess(t, w, http.StatusCreated, &entry)
	assert.Equal(t, "-750", entry.BalanceAfterTransaction.String())

	var balance handler.BalanceData
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%s/balance?at=2026-01-05", acc.ID), nil), http.StatusOK, &balance)
	assert.Equal(t, "1250", balance.Balance.String())

	w = a.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%s/balance?at=yesterday", acc.ID), nil)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_BAD_REQUEST")

	var result bankledger.VerificationResult
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%s/verify", acc.ID), nil), http.StatusOK, &result)
	assert.True(t, result.Consistent)

	w = a.do(t, http.MethodPost, fmt.Sprintf("/bank/entries/%s/reconcile", entry.ID), gin.H{"reconciled_by": "asha"})
	testutil.AssertSuccess(t, w, http.StatusOK, &entry)
	assert.True(t, entry.Reconciled)

	w = a.do(t, http.MethodPost, fmt.Sprintf("/bank/entries/%s/reconcile", entry.ID), gin.H{"reconciled_by": "asha"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/bank/accounts", gin.H{"name": "Vault", "kind": "SAFE"})
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "ERR_VALIDATION")
}

func TestAPI_PaymentsAllocateAndUnwind(t *testing.T) {
	a := newAPI(t)
	customer := testutil.NewTestUUID("customer-anita")

	var acc bankledger.AccountResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodPost, "/bank/accounts",
		gin.H{"name": "Current", "kind": "BANK", "opening_balance": "0"}), http.StatusCreated, &acc)

	for i, total := range []string{"300", "500"} {
		w := a.do(t, http.MethodPost, "/obligations", gin.H{
			"kind": "INVOICE", "number": fmt.Sprintf("SB-%d", i+1), "party_id": customer,
			"obligation_date": fmt.Sprintf("2026-01-0%dT00:00:00Z", i+1), "grand_total": total,
		})
		testutil.AssertSuccess(t, w, http.StatusCreated, nil)
	}
	w := a.do(t, http.MethodPost, "/obligations", gin.H{
		"kind": "INVOICE", "number": "SB-1", "party_id": customer, "obligation_date": "2026-01-03T00:00:00Z", "grand_total": "10",
	})
	testutil.AssertErrorResponse(t, w, http.StatusConflict, "ERR_ALREADY_EXISTS")

	var receipt financeapp.ReceiptResponse
	w = a.do(t, http.MethodPost, "/payments", gin.H{
		"obligation_kind": "INVOICE", "party_id": customer, "bank_account_id": acc.ID, "mode": "UPI",
		"reference": "UTR-1", "amount": "400",
	})
	testutil.AssertSuccess(t, w, http.StatusCreated, &receipt)
	require.Len(t, receipt.Allocations, 2)
	assert.Equal(t, "SB-1", receipt.Allocations[0].ObligationNumber)

	var pending handler.AmountData
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/obligations/pending?kind=INVOICE&party_id="+customer.String(), nil), http.StatusOK, &pending)
	assert.Equal(t, "400", pending.Amount.String())

	var receipts []financeapp.ReceiptResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/payments?party_id="+customer.String(), nil), http.StatusOK, &receipts)
	assert.Len(t, receipts, 1)
	testutil.AssertErrorResponse(t, a.do(t, http.MethodGet, "/payments", nil), http.StatusBadRequest, "ERR_BAD_REQUEST")

	var deleted financeapp.DeletePaymentResult
	testutil.AssertSuccess(t, a.do(t, http.MethodDelete, fmt.Sprintf("/payments/%s?reason=bounced", receipt.ID), nil), http.StatusOK, &deleted)
	require.Len(t, deleted.Reversals, 2)
	assert.Equal(t, "SB-2", deleted.Reversals[0].ObligationNumber)

	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/obligations/pending?kind=INVOICE&party_id="+customer.String(), nil), http.StatusOK, &pending)
	assert.Equal(t, "800", pending.Amount.String())

	var obligations []financeapp.ObligationResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/obligations?kind=invoice&order_by=number", nil), http.StatusOK, &obligations)
	assert.Len(t, obligations, 2)
}

func TestAPI_PurchaseManufactureAndCancel(t *testing.T) {
	a := newAPI(t)
	supplier := testutil.NewTestUUID("supplier-kothari")

	var purchase posting.PurchaseResponse
	w := a.do(t, http.MethodPost, "/purchases", gin.H{
		"invoice_number": "PI-100", "supplier_id": supplier, "invoice_date": "2026-01-02T00:00:00Z",
		"lines": []gin.H{{"metal_type": "gold", "purity": "22K", "gross_weight": "20", "net_weight": "18", "rate": "6000"}},
	})
	testutil.AssertSuccess(t, w, http.StatusCreated, &purchase)

	var remaining manufacturingapp.RemainingResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, fmt.Sprintf("/manufacturing/purchases/%s/remaining", purchase.ID), nil), http.StatusOK, &remaining)
	require.Len(t, remaining.Remaining, 1)

	var record manufacturingapp.RecordResponse
	w = a.do(t, http.MethodPost, "/manufacturing/records", gin.H{
		"record_number": "MR-1", "purchase_event_id": purchase.ID,
		"items": []gin.H{{"name": "Temple ring", "metal_type": "gold", "purity": "22K", "net_weight": "5", "quantity": "2"}},
	})
	testutil.AssertSuccess(t, w, http.StatusCreated, &record)

	var weight handler.WeightData
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/metal/stock/available?metal_type=gold&purity=22K", nil), http.StatusOK, &weight)
	assert.Equal(t, "8", weight.Available.String())

	var cancelled manufacturingapp.CancelResult
	testutil.AssertSuccess(t, a.do(t, http.MethodPost, fmt.Sprintf("/manufacturing/records/%s/cancel", record.ID), nil), http.StatusOK, &cancelled)
	assert.Equal(t, "COMPLETE", cancelled.Outcome)

	var purchaseCancel posting.CancelResult
	testutil.AssertSuccess(t, a.do(t, http.MethodPost, fmt.Sprintf("/purchases/%s/cancel", purchase.ID), nil), http.StatusOK, &purchaseCancel)
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/metal/stock/available?metal_type=gold&purity=22K", nil), http.StatusOK, &weight)
	assert.True(t, weight.Available.IsZero())
}

func TestAPI_SaleQueuesStockEventForOutbox(t *testing.T) {
	a := newAPI(t)
	ring := testutil.NewTestUUID("catalog-ring")

	w := a.do(t, http.MethodPut, "/catalog-stock", gin.H{"catalog_item_id": ring, "name": "Temple ring", "quantity": "4"})
	testutil.AssertSuccess(t, w, http.StatusOK, nil)

	w = a.do(t, http.MethodPost, "/sales", gin.H{
		"bill_number": "SB-7", "customer_id": testutil.NewTestUUID("customer-ravi"), "bill_date": "2026-01-04T00:00:00Z",
		"items": []gin.H{{"catalog_item_id": ring, "quantity": "1", "unit_price": "45000"}},
	})
	testutil.AssertSuccess(t, w, http.StatusCreated, nil)

	var stats struct {
		Pending int64 `json:"pending"`
	}
	// system routes are cross-tenant
	w = testutil.PerformRequest(t, a.engine, http.MethodGet, "/api/v1/system/outbox/stats", nil, nil)
	testutil.AssertSuccess(t, w, http.StatusOK, &stats)
	assert.Positive(t, stats.Pending)

	var levels []catalogstock.LevelResponse
	testutil.AssertSuccess(t, a.do(t, http.MethodGet, "/catalog-stock", nil), http.StatusOK, &levels)
	require.Len(t, levels, 1)
	// the reduction is applied by the outbox processor, not the request
	assert.Equal(t, "4", levels[0].Quantity.String())
}

func TestAPI_AuditRecordsFindings(t *testing.T) {
	a := newAPI(t)

	var report audit.Report
	testutil.AssertSuccess(t, a.do(t, http.MethodPost, "/audit", nil), http.StatusOK, &report)
	assert.True(t, report.Consistent())
	assert.Equal(t, []int{0}, a.audits.findings)
}

func TestAPI_RejectionsAreCounted(t *testing.T) {
	env := testutil.NewLedgerEnv(t)
	stock := metalledger.NewMetalStockLedger(env.Scope, nil)
	rec := &rejections{}

	engine, err := NewEngine(EngineConfig{
		Meter:      noop.NewMeterProvider().Meter("test"),
		Rejections: rec,
	}, Handlers{Metal: handler.NewMetalHandler(stock)})
	require.NoError(t, err)

	w := testutil.PerformRequest(t, engine, http.MethodPost, "/api/v1/metal/stock/consume", gin.H{
		"metal_type": "silver", "purity": "92.5", "reference": movement("ADJUSTMENT"), "weight": "1",
	}, testutil.TenantHeader(testutil.TestTenantID().String()))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"ERR_INSUFFICIENT_STOCK"}, rec.codes)
}

func TestAPI_SwaggerDocs(t *testing.T) {
	engine, err := NewEngine(EngineConfig{SwaggerEnabled: true}, Handlers{})
	require.NoError(t, err)

	w := testutil.PerformRequest(t, engine, http.MethodGet, "/swagger/doc.json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, "docs need no tenant")
	assert.Contains(t, w.Body.String(), `"operationId": "cancelPurchaseInvoice"`)

	restricted, err := NewEngine(EngineConfig{SwaggerEnabled: true, SwaggerAllowedIPs: []string{"10.0.0.0/8"}}, Handlers{})
	require.NoError(t, err)
	w = testutil.PerformRequest(t, restricted, http.MethodGet, "/swagger/doc.json", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusForbidden, "ERR_FORBIDDEN")

	off, err := NewEngine(EngineConfig{}, Handlers{})
	require.NoError(t, err)
	w = testutil.PerformRequest(t, off, http.MethodGet, "/swagger/doc.json", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, "ERR_NOT_FOUND")
}
