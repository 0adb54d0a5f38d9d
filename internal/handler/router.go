package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bazaarlabs/tradepost/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// CORS, and Content-Type validation middleware.
func NewRouter(
	userSvc *service.UserService,
	inventorySvc *service.InventoryService,
	tradeSvc *service.TradeService,
	listingSvc *service.ListingService,
	orderSvc *service.BuyOrderService,
	marketSvc *service.MarketService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(contentTypeJSON)

	// Create handlers.
	userH := NewUserHandler(userSvc, inventorySvc)
	tradeH := NewTradeHandler(tradeSvc)
	listingH := NewListingHandler(listingSvc)
	orderH := NewBuyOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// User routes.
	r.Post("/users", userH.Register)
	r.Get("/users/{user_id}/balance", userH.GetBalance)
	r.Get("/users/{user_id}/inventory", userH.ListInventory)
	r.Post("/users/{user_id}/inventory", userH.GrantItems)
	r.Get("/users/{user_id}/trades", tradeH.ListByUser)
	r.Get("/users/{user_id}/listings", listingH.ListBySeller)
	r.Get("/users/{user_id}/buy-orders", orderH.ListByUser)

	// Trade routes.
	r.Post("/trades", tradeH.StartOrGet)
	r.Get("/trades/{trade_id}", tradeH.Get)
	r.Post("/trades/{trade_id}/items", tradeH.AddItem)
	r.Post("/trades/{trade_id}/items/remove", tradeH.RemoveItem)
	r.Post("/trades/{trade_id}/approve", tradeH.Approve)
	r.Post("/trades/{trade_id}/cancel", tradeH.Cancel)

	// Listing routes.
	r.Post("/listings", listingH.Create)
	r.Get("/listings/{listing_id}", listingH.Get)
	r.Post("/listings/{listing_id}/buy", listingH.Buy)
	r.Post("/listings/{listing_id}/cancel", listingH.Cancel)

	// Buy order routes.
	r.Post("/buy-orders", orderH.Create)
	r.Get("/buy-orders/{order_id}", orderH.Get)
	r.Post("/buy-orders/{order_id}/cancel", orderH.Cancel)

	// Item routes.
	r.Get("/items/{item_id}/listings", listingH.ListByItem)
	r.Get("/items/{item_id}/market", marketH.Snapshot)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
