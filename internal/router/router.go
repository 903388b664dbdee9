package router

import (
	"net/http"

	"digibank/internal/cache"
	"digibank/internal/config"
	"digibank/internal/handlers"
	"digibank/internal/middleware"
	"digibank/internal/notify"
	"digibank/internal/services"
	"digibank/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SetupRouter wires services and handlers onto the HTTP surface.
func SetupRouter(cfg config.Config, st store.Store, settle services.SettlementGateway, dispatcher notify.Dispatcher, logger zerolog.Logger) *mux.Router {
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}

	otps := cache.NewMemoryStore()

	identity := services.NewIdentityService(st, jwtSecret, logger)
	creds := services.NewCredentialGate(st, otps, dispatcher, logger)
	payments := services.NewPaymentService(st, creds, settle, dispatcher, logger)
	refunds := services.NewRefundService(st, dispatcher, logger)
	requests := services.NewMoneyRequestService(st, payments, dispatcher, logger)
	gateway := services.NewGatewayService(st, settle, cfg.WebhookSecret, logger)

	authHandler := handlers.NewAuthHandler(identity, logger)
	upiHandler := handlers.NewUPIHandler(creds, payments, requests, logger)
	transferHandler := handlers.NewTransferHandler(payments, logger)
	rechargeHandler := handlers.NewRechargeHandler(payments, logger)
	transactionHandler := handlers.NewTransactionHandler(refunds, logger)
	accountHandler := handlers.NewAccountHandler(identity, refunds, logger)
	gatewayHandler := handlers.NewGatewayHandler(gateway, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(10), 20)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")

	protectedAuth := auth.PathPrefix("").Subrouter()
	protectedAuth.Use(middleware.Authentication(jwtSecret, logger))
	protectedAuth.HandleFunc("/me", authHandler.Me).Methods("GET")

	upi := api.PathPrefix("/upi").Subrouter()
	upi.Use(middleware.Authentication(jwtSecret, logger))
	upi.Use(middleware.RequestValidation())
	upi.HandleFunc("", upiHandler.CreateHandle).Methods("POST")
	upi.HandleFunc("/validate", upiHandler.ValidateHandle).Methods("GET")
	upi.HandleFunc("/pay", upiHandler.Pay).Methods("POST")
	upi.HandleFunc("/pin/otp", upiHandler.SendPINResetOTP).Methods("POST")
	upi.HandleFunc("/pin/reset", upiHandler.ResetPIN).Methods("POST")
	upi.HandleFunc("/requests", upiHandler.CreateRequest).Methods("POST")
	upi.HandleFunc("/requests", upiHandler.ListRequests).Methods("GET")
	upi.HandleFunc("/requests/{id}/respond", upiHandler.RespondRequest).Methods("POST")

	transfers := api.PathPrefix("/transfers").Subrouter()
	transfers.Use(middleware.Authentication(jwtSecret, logger))
	transfers.Use(middleware.RequestValidation())
	transfers.HandleFunc("", transferHandler.Transfer).Methods("POST")

	payRoutes := api.PathPrefix("").Subrouter()
	payRoutes.Use(middleware.Authentication(jwtSecret, logger))
	payRoutes.Use(middleware.RequestValidation())
	payRoutes.HandleFunc("/recharge", rechargeHandler.Recharge).Methods("POST")
	payRoutes.HandleFunc("/bills", rechargeHandler.PayBill).Methods("POST")
	payRoutes.HandleFunc("/recharges", rechargeHandler.History).Methods("GET")

	transactions := api.PathPrefix("/transactions").Subrouter()
	transactions.Use(middleware.Authentication(jwtSecret, logger))
	transactions.HandleFunc("", transactionHandler.List).Methods("GET")
	transactions.HandleFunc("/{id}", transactionHandler.Get).Methods("GET")
	transactions.HandleFunc("/{id}/refund", transactionHandler.Refund).Methods("POST")

	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.Use(middleware.Authentication(jwtSecret, logger))
	accounts.HandleFunc("/balance", accountHandler.Balance).Methods("GET")
	accounts.HandleFunc("/reconciliation", accountHandler.Reconciliation).Methods("GET")

	gatewayRoutes := api.PathPrefix("/gateway").Subrouter()
	gatewayRoutes.Use(middleware.APIKeyAuth(st.Users(), logger))
	gatewayRoutes.Use(middleware.RequestValidation())
	gatewayRoutes.HandleFunc("/payments", gatewayHandler.Payment).Methods("POST")
	gatewayRoutes.HandleFunc("/payments/{id}/refund", gatewayHandler.Refund).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}
