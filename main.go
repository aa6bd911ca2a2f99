package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/username/fundfolio/backend/src/config"
	"github.com/username/fundfolio/backend/src/database"
	"github.com/username/fundfolio/backend/src/handlers"
	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/metrics"
	"github.com/username/fundfolio/backend/src/services"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

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
			"http://localhost:5173":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, X-Webhook-Token")
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

	logger.L.Info("FundFolio backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid, must be at least 32 characters.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath, config.Cfg.MigrationsPath)

	stateStore, err := database.NewStateStore(database.DB)
	if err != nil {
		logger.L.Error("State store initialization failed", "error", err)
		os.Exit(1)
	}
	quoteStore := database.NewQuoteStore(database.DB)
	alertStore := database.NewAlertStore(database.DB)
	metaStore := database.NewMetaStore(database.DB)

	reportService := services.NewReportService(stateStore, config.Cfg.SeriesMaxPoints)
	quoteService := services.NewQuoteService(
		quoteStore,
		config.Cfg.QuoteTimeout,
		config.Cfg.QuoteRateEvery,
		config.Cfg.QuoteBurst,
	)
	expertService := services.NewExpertService(stateStore, quoteStore, alertStore)
	modelService := services.NewModelPortfolioService(stateStore, metaStore)
	chartService := services.NewChartService(stateStore, quoteStore, quoteService)

	authHandler := handlers.NewAuthHandler(
		config.Cfg.JWTSecret,
		config.Cfg.AdminPasswordHash,
		config.Cfg.AccessTokenExpiry,
	)
	stateHandler := handlers.NewStateHandler(stateStore)
	reportHandler := handlers.NewReportHandler(reportService)
	quoteHandler := handlers.NewQuoteHandler(quoteService, stateStore)
	toolsHandler := handlers.NewToolsHandler(expertService, modelService, chartService, config.Cfg.AlertWebhookToken)
	healthHandler := handlers.NewHealthHandler(database.DB)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "FundFolio Backend is running"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/health", healthHandler.Health)
			r.Post("/auth/login", authHandler.Login)
		})

		// Webhook route for external schedulers
		r.Group(func(r chi.Router) {
			r.Use(toolsHandler.WebhookAuthMiddleware)
			r.Post("/webhooks/alerts/run", toolsHandler.RunAlerts)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)

			r.Get("/state", stateHandler.GetState)
			r.Put("/state", stateHandler.ReplaceState)

			r.Get("/quotes", quoteHandler.GetQuotes)
			r.Post("/quotes/refresh", quoteHandler.RefreshQuotes)
			r.Get("/quotes/history", quoteHandler.History)

			r.Get("/reports/catalog", reportHandler.Catalog)
			r.Post("/reports/generate", reportHandler.Generate)
			r.Get("/metrics/portfolio", reportHandler.PortfolioMetrics)

			r.Post("/tools/scanner", toolsHandler.Scanner)
			r.Get("/tools/signals", toolsHandler.Signals)
			r.Get("/tools/calendar", toolsHandler.Calendar)
			r.Get("/tools/recommendations", toolsHandler.Recommendations)
			r.Get("/tools/model-portfolio", toolsHandler.GetModelPortfolio)
			r.Put("/tools/model-portfolio", toolsHandler.SetModelPortfolio)
			r.Get("/tools/model-portfolio/compare", toolsHandler.CompareModelPortfolio)
			r.Get("/tools/candles", toolsHandler.Candles)
			r.Get("/tools/tradingview", toolsHandler.TradingView)
			r.Get("/tools/catalyst", toolsHandler.Catalyst)
			r.Get("/tools/funds-ranking", toolsHandler.FundsRanking)
			r.Post("/tools/alerts/run", toolsHandler.RunAlerts)
			r.Get("/tools/alerts/history", toolsHandler.AlertHistory)
		})
	})

	serverAddr := ":" + config.Cfg.Port
	logger.L.Info("Server listening", "address", serverAddr)

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		stdlog.Fatalf("server terminated: %v", err)
	}
}
