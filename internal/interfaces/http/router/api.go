package router

import (
	"github.com/jewelryerp/backend/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the ledger API. A nil handler leaves
// its routes unmounted.
type Handlers struct {
	Metal         *handler.MetalHandler
	Bank          *handler.BankHandler
	Payment       *handler.PaymentHandler
	Manufacturing *handler.ManufacturingHandler
	Posting       *handler.PostingHandler
	CatalogStock  *handler.CatalogStockHandler
	Audit         *handler.AuditHandler
	Outbox        *handler.OutboxHandler
	System        *handler.SystemHandler
}

// Groups builds the domain groups mounted under /api/v1
func (hs Handlers) Groups() []RouteRegistrar {
	var groups []RouteRegistrar

	if h := hs.Metal; h != nil {
		g := NewDomainGroup("metal", "/metal/:pool")
		g.POST("/acquire", h.Acquire).
			POST("/consume", h.Consume).
			POST("/restore", h.Restore).
			POST("/reverse", h.ReverseAcquisition).
			POST("/reconcile", h.Reconcile).
			GET("/available", h.Available).
			GET("/accounts", h.ListAccounts).
			GET("/accounts/:id", h.GetAccount).
			GET("/accounts/:id/entries", h.ListEntries)
		groups = append(groups, g)
	}

	if h := hs.Bank; h != nil {
		g := NewDomainGroup("bank", "/bank")
		g.POST("/accounts", h.OpenAccount).
			GET("/accounts", h.ListAccounts).
			GET("/accounts/:id", h.GetAccount).
			GET("/accounts/:id/entries", h.ListEntries).
			GET("/accounts/:id/balance", h.Balance).
			GET("/accounts/:id/verify", h.Verify).
			POST("/credits", h.RecordCredit).
			POST("/debits", h.RecordDebit).
			POST("/entries/:id/reconcile", h.ReconcileEntry)
		groups = append(groups, g)
	}

	if h := hs.Payment; h != nil {
		payments := NewDomainGroup("payments", "/payments")
		payments.POST("", h.Apply).
			GET("", h.ListReceipts).
			GET("/:id", h.GetReceipt).
			DELETE("/:id", h.Delete)
		obligations := NewDomainGroup("obligations", "/obligations")
		obligations.POST("", h.RegisterObligation).
			GET("", h.ListObligations).
			GET("/pending", h.PendingTotal).
			GET("/:id", h.GetObligation)
		groups = append(groups, payments, obligations)
	}

	if h := hs.Manufacturing; h != nil {
		g := NewDomainGroup("manufacturing", "/manufacturing")
		g.POST("/records", h.SaveRecord).
			GET("/records", h.ListRecords).
			GET("/records/:id", h.GetRecord).
			POST("/records/:id/cancel", h.CancelRecord).
			GET("/purchases/:id/remaining", h.Remaining)
		groups = append(groups, g)
	}

	if h := hs.Posting; h != nil {
		purchases := NewDomainGroup("purchases", "/purchases")
		purchases.POST("", h.PostPurchase).
			POST("/:id/cancel", h.CancelPurchase)
		sales := NewDomainGroup("sales", "/sales")
		sales.POST("", h.PostSale).
			POST("/:id/cancel", h.CancelSale)
		groups = append(groups, purchases, sales)
	}

	if h := hs.CatalogStock; h != nil {
		g := NewDomainGroup("catalog-stock", "/catalog-stock")
		g.PUT("", h.SetLevel).
			GET("", h.ListLevels).
			GET("/:id", h.GetLevel)
		groups = append(groups, g)
	}

	if h := hs.Audit; h != nil {
		g := NewDomainGroup("audit", "/audit")
		g.POST("", h.Run)
		groups = append(groups, g)
	}

	system := NewDomainGroup("system", "/system")
	if h := hs.System; h != nil {
		system.GET("/info", h.GetSystemInfo)
	}
	if h := hs.Outbox; h != nil {
		system.Group("outbox", "/outbox").
			GET("/stats", h.GetStats).
			GET("/dead", h.GetDeadLetterEntries).
			POST("/dead/retry-all", h.RetryAllDeadEntries).
			DELETE("/sent", h.PurgeSent).
			GET("/:id", h.GetEntry).
			POST("/:id/retry", h.RetryDeadEntry)
	}
	return append(groups, system)
}
