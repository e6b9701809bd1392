package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reConnectAPI/handlers"
	"reConnectAPI/internal/push"
	"reConnectAPI/middleware"
	"reConnectAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool            *pgxpool.Pool
	hub               *services.Hub
	pushDispatcher    *services.PushDispatcher
	fcmService        *push.FCMService
	userService       *services.UserService
	matchService      *services.MatchService
	messageService    *services.MessageService
	challengeService  *services.ChallengeService
	meetingService    *services.MeetingService
	suggestionService *services.SuggestionService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	hub = services.NewHub()
	pushDispatcher = services.NewPushDispatcher(dbPool)
	hub.SetPushDispatcher(pushDispatcher)

	challengeStore := services.NewPostgresChallengeStore(dbPool)
	progressStore := services.NewPostgresProgressStore(dbPool)

	userService = services.NewUserService(dbPool)
	matchService = services.NewMatchService(dbPool, userService, hub)
	messageService = services.NewMessageService(dbPool, userService, matchService, hub)
	challengeService = services.NewChallengeService(userService, matchService, challengeStore, progressStore, hub)
	meetingService = services.NewMeetingService(dbPool, userService)
	suggestionService = services.NewSuggestionService()

	hub.SetMatchLister(matchService)

	fcmService, err = push.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		pushDispatcher.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	matchHandler := handlers.NewMatchHandler(matchService)
	messageHandler := handlers.NewMessageHandler(messageService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, suggestionService)
	meetingHandler := handlers.NewMeetingHandler(meetingService)
	webhookHandler := handlers.NewWebhookHandler(userService)
	wsHandler := handlers.NewWSHandler(hub)

	r := mux.NewRouter()

	// The WebSocket route skips the rate limiter and monitor wrappers; a
	// long-lived connection would hold a slot in both.
	r.HandleFunc("/ws", wsHandler.HandleConnection)

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "reConnect-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/achievements", userHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/user/search", userHandler.SearchUsers).Methods("GET")
	protected.HandleFunc("/user/register-device", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/matches", matchHandler.GetMatches).Methods("GET")
	protected.HandleFunc("/matches", matchHandler.RequestMatch).Methods("POST")
	protected.HandleFunc("/matches/{id}/respond", matchHandler.RespondMatch).Methods("PUT")
	protected.HandleFunc("/matches/{id}/messages", messageHandler.GetMessages).Methods("GET")
	protected.HandleFunc("/matches/{id}/messages", messageHandler.SendMessage).Methods("POST")
	protected.HandleFunc("/messages/{id}/read", messageHandler.MarkRead).Methods("PUT")

	protected.HandleFunc("/challenges", challengeHandler.GetChallenges).Methods("GET")
	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/suggestions", challengeHandler.GetSuggestions).Methods("GET")
	protected.HandleFunc("/challenges/{id}/progress", challengeHandler.LogProgress).Methods("PUT")
	protected.HandleFunc("/challenges/{id}/sobriety", challengeHandler.UpdateSobriety).Methods("PUT")
	protected.HandleFunc("/challenges/{id}/sobriety/reset", challengeHandler.ResetSobriety).Methods("POST")
	protected.HandleFunc("/challenges/{id}/check-in", challengeHandler.CheckIn).Methods("POST")
	protected.HandleFunc("/challenges/{id}/streak", challengeHandler.GetStreak).Methods("GET")

	protected.HandleFunc("/meetings", meetingHandler.GetMeetings).Methods("GET")
	protected.HandleFunc("/meetings", meetingHandler.CreateMeeting).Methods("POST")
	protected.HandleFunc("/meetings/{id}/rsvp", meetingHandler.RSVP).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	pushDispatcher.Stop()

	log.Println("Server shutdown complete")
}
