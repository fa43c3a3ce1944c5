package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Router groups the handlers and settings the HTTP API is built from.
type Router struct {
	Users         *UserHandler
	OAuth         *OAuthHandler
	Watchlist     *WatchlistHandler
	Market        *MarketHandler
	Transactions  *TransactionHandler
	Expenses      *ExpenseHandler
	Subscriptions *SubscriptionHandler
	Assistant     *AssistantHandler

	CSRFAuthKey    []byte
	AllowedOrigins []string
	Limiter        *rate.Limiter
}

// Handler builds the chi router. A nil OAuth handler leaves the Google
// routes unregistered.
func (rt *Router) Handler() http.Handler {
	limiter := rt.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(ProxyHeadersMiddleware)
	r.Use(CORSMiddleware(rt.AllowedOrigins))
	r.Use(RateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, map[string]string{"message": "finwatch backend is running"})
	})

	csrf := CSRFMiddleware(rt.CSRFAuthKey)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", GetCSRFToken(rt.CSRFAuthKey))
			if rt.OAuth != nil {
				r.Get("/auth/google/login", rt.OAuth.HandleGoogleLogin)
				r.Get("/auth/google/callback", rt.OAuth.HandleGoogleCallback)
			}
			r.Get("/subscription/plans", rt.Subscriptions.HandlePlans)
			r.Get("/transactions/categories", rt.Transactions.HandleCategories)
		})

		r.Group(func(r chi.Router) {
			r.Use(csrf)
			r.Post("/auth/login", rt.Users.LoginUserHandler)
			r.Post("/auth/register", rt.Users.RegisterUserHandler)
			r.Post("/auth/refresh", rt.Users.RefreshTokenHandler)
			r.With(rt.Users.AuthMiddleware).Post("/auth/logout", rt.Users.LogoutUserHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(csrf)
			r.Use(rt.Users.AuthMiddleware)

			r.Get("/user/me", rt.Users.HandleGetMe)
			r.Put("/user/me", rt.Users.HandleUpdateMe)
			r.Post("/user/change-password", rt.Users.ChangePasswordHandler)
			r.Post("/user/delete-account", rt.Users.DeleteAccountHandler)

			r.Get("/watchlist", rt.Watchlist.HandleList)
			r.Post("/watchlist", rt.Watchlist.HandleAdd)
			r.Delete("/watchlist/{type}/{symbol}", rt.Watchlist.HandleRemove)
			r.Get("/watchlist/movers", rt.Watchlist.HandleMovers)
			r.Get("/watchlist/aggregate", rt.Watchlist.HandleAggregate)
			r.Get("/watchlist/status", rt.Watchlist.HandleStatus)
			r.Post("/watchlist/reload", rt.Watchlist.HandleReload)
			r.Get("/notifications", rt.Watchlist.HandleNotifications)

			r.Get("/market/search", rt.Market.HandleSearch)
			r.Get("/market/popular", rt.Market.HandlePopular)
			r.Get("/market/quote", rt.Market.HandleQuote)

			r.Get("/transactions", rt.Transactions.HandleListTransactions)
			r.Post("/transactions", rt.Transactions.HandleCreateTransaction)
			r.Get("/transactions/summary", rt.Transactions.HandleSummary)
			r.Get("/transactions/export", rt.Transactions.HandleExportTransactions)
			r.Put("/transactions/{id}", rt.Transactions.HandleUpdateTransaction)
			r.Delete("/transactions/{id}", rt.Transactions.HandleDeleteTransaction)

			r.Get("/expenses", rt.Expenses.HandleListExpenses)
			r.Post("/expenses", rt.Expenses.HandleCreateExpense)
			r.Put("/expenses/{id}", rt.Expenses.HandleUpdateExpense)
			r.Delete("/expenses/{id}", rt.Expenses.HandleDeleteExpense)

			r.Get("/stats", rt.Transactions.HandleStats)
			r.Get("/stats/timeline", rt.Transactions.HandleTimeline)
			r.Get("/stats/spending", rt.Transactions.HandleSpending)
			r.Get("/assistant", rt.Assistant.HandleInsight)

			r.Get("/subscription", rt.Subscriptions.HandleStatus)
			r.Post("/subscription/checkout", rt.Subscriptions.HandleCheckout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			sendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})
	return r
}
