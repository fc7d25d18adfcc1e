// Package api assembles the HTTP surface of the ledger.
package api

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Ledger    handlers.LedgerService
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Log       zerolog.Logger
}

// NewRouter builds the chi router with the middleware chain. Everything under
// /api requires an identity; /health does not.
func NewRouter(d Deps) http.Handler {
	accountsHandler := handlers.NewAccountsHandler(d.Ledger, d.Log)
	categoriesHandler := handlers.NewCategoriesHandler(d.Ledger, d.Log)
	transactionsHandler := handlers.NewTransactionsHandler(d.Ledger, d.Log)
	operationsHandler := handlers.NewOperationsHandler(d.Ledger, d.Log)
	dashboardHandler := handlers.NewDashboardHandler(d.Ledger, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountsHandler.ListAccounts)
			r.Post("/", accountsHandler.CreateAccount)
			r.Patch("/{id}", accountsHandler.PatchAccount)
			r.Get("/{id}/balance", accountsHandler.GetBalance)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoriesHandler.ListCategories)
			r.Post("/", categoriesHandler.CreateCategory)
			r.Delete("/{id}", categoriesHandler.DeleteCategory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactionsHandler.ListTransactions)
			r.Post("/", transactionsHandler.CreateTransaction)
		})

		r.Route("/operations", func(r chi.Router) {
			r.Post("/transfer", operationsHandler.Transfer)
			r.Post("/credit-card-payment", operationsHandler.PayCreditCard)
		})

		r.Get("/dashboard/monthly", dashboardHandler.Monthly)

		if d.Publisher != nil && d.Jobs != nil {
			exportsHandler := handlers.NewExportsHandler(d.Publisher, d.Jobs, d.Log)
			r.Route("/exports", func(r chi.Router) {
				r.Get("/", exportsHandler.ListExports)
				r.Post("/", exportsHandler.EnqueueExport)
				r.Get("/{id}", exportsHandler.GetExport)
			})
		}
	})

	return r
}
