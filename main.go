package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/fintrack/backend/src/config"
	"github.com/username/fintrack/backend/src/database"
	"github.com/username/fintrack/backend/src/handlers"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/processors"
	"github.com/username/fintrack/backend/src/security"
	"github.com/username/fintrack/backend/src/services"
	"github.com/username/fintrack/backend/src/utils"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Fintrack backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	summaryCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	insightClient := services.NewHTTPInsightClient(config.Cfg.InsightServiceURL, config.Cfg.InsightAPIKey)

	ledgerService := services.NewLedgerService(database.DB)
	budgetService := services.NewBudgetService(database.DB)
	budgetProcessor := processors.NewBudgetProcessor(database.DB)
	insightService := services.NewInsightService(
		database.DB,
		insightClient,
		budgetProcessor,
		summaryCache,
		config.Cfg.InsightTimeout,
		config.Cfg.InsightMaxRetries,
	)

	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler()
	txHandler := handlers.NewTransactionHandler(ledgerService, insightService)
	budgetHandler := handlers.NewBudgetHandler(budgetService, budgetProcessor)
	insightHandler := handlers.NewInsightHandler(insightService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Fintrack Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", authHandler.RegisterUserHandler)
			r.Post("/auth/login", authHandler.LoginUserHandler)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)

			r.Get("/accounts", accountHandler.HandleListAccounts)
			r.Post("/accounts", accountHandler.HandleCreateAccount)
			r.Get("/accounts/{id}", accountHandler.HandleGetAccount)
			r.Put("/accounts/{id}", accountHandler.HandleUpdateAccount)
			r.Delete("/accounts/{id}", accountHandler.HandleDeleteAccount)
			r.Post("/accounts/{id}/default", accountHandler.HandleSetDefaultAccount)
			r.Post("/accounts/{id}/reconcile", accountHandler.HandleReconcileAccount)

			r.Get("/transactions", txHandler.HandleGetTransactions)
			r.Post("/transactions", txHandler.HandleCreateTransaction)
			r.Get("/transactions/stats", txHandler.HandleGetStats)
			r.Get("/transactions/breakdown", txHandler.HandleGetBreakdown)
			r.Post("/transactions/bulk-delete", txHandler.HandleBulkDeleteTransactions)
			r.Get("/transactions/{id}", txHandler.HandleGetTransaction)
			r.Put("/transactions/{id}", txHandler.HandleUpdateTransaction)
			r.Delete("/transactions/{id}", txHandler.HandleDeleteTransaction)

			r.Get("/budgets", budgetHandler.HandleListBudgets)
			r.Post("/budgets", budgetHandler.HandleUpsertBudget)
			r.Delete("/budgets/{id}", budgetHandler.HandleDeleteBudget)
			r.Get("/budgets/alerts", budgetHandler.HandleGetBudgetAlerts)

			r.Get("/insights", insightHandler.HandleGetInsights)
			r.Get("/insights/investment-tips", insightHandler.HandleGetInvestmentTips)
			r.Get("/insights/tax-tips", insightHandler.HandleGetTaxTips)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Route not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
