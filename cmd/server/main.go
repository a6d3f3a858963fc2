package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/leetrack/backend/internal/auth"
	"github.com/leetrack/backend/internal/database"
	"github.com/leetrack/backend/internal/insight"
	"github.com/leetrack/backend/internal/problems"
	"github.com/leetrack/backend/internal/review"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize services and handlers
	authService := auth.NewFromEnv()
	generator := insight.NewGenerator()

	problemStore := problems.NewStore(db)
	problemHandler := problems.NewHandler(problemStore, generator)

	reviewService := review.NewService(review.NewSQLStore(db))
	reviewHandler := review.NewHandler(reviewService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/login", authService.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authService.Middleware)

	protected.HandleFunc("/problems", problemHandler.List).Methods("GET")
	protected.HandleFunc("/problems", problemHandler.Create).Methods("POST")
	protected.HandleFunc("/problems/export", problemHandler.ExportCSV).Methods("GET")
	protected.HandleFunc("/problems/import", problemHandler.ImportCSV).Methods("POST")
	protected.HandleFunc("/problems/{id:[0-9]+}", problemHandler.Get).Methods("GET")
	protected.HandleFunc("/problems/{id:[0-9]+}", problemHandler.Patch).Methods("PATCH")
	protected.HandleFunc("/problems/{id:[0-9]+}", problemHandler.Delete).Methods("DELETE")
	protected.HandleFunc("/problems/{id:[0-9]+}/topics", problemHandler.SetTopics).Methods("PUT")
	protected.HandleFunc("/problems/{id:[0-9]+}/attempts", problemHandler.Attempts).Methods("GET")
	protected.HandleFunc("/problems/{id:[0-9]+}/insight", problemHandler.GenerateInsight).Methods("POST")
	protected.HandleFunc("/problems/{id:[0-9]+}/review", reviewHandler.ManualReview).Methods("POST")
	protected.HandleFunc("/topics", problemHandler.ListTopics).Methods("GET")

	protected.HandleFunc("/review/today", reviewHandler.Today).Methods("GET")
	protected.HandleFunc("/review/refresh", reviewHandler.Refresh).Methods("POST")
	protected.HandleFunc("/review/complete", reviewHandler.Complete).Methods("POST")
	protected.HandleFunc("/review/replace", reviewHandler.Replace).Methods("POST")
	protected.HandleFunc("/review/pools", reviewHandler.Pools).Methods("GET")
	protected.HandleFunc("/stats", reviewHandler.Stats).Methods("GET")
	protected.HandleFunc("/settings", reviewHandler.GetSettings).Methods("GET")
	protected.HandleFunc("/settings", reviewHandler.UpdateSettings).Methods("PUT")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
