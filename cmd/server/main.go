package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"dmchat/internal/chat"
	"dmchat/internal/db"
	myMiddleware "dmchat/internal/middleware"
	"dmchat/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("❌ DB_DSN is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("❌ JWT_SECRET is not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(dsn)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis (Platform Layer)
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// 4. Initialize User Feature
	userRepo := user.NewRepository(database.Conn)
	resetTokens := user.NewRedisTokenStore(redisClient)
	mailer := &user.LogMailer{Logger: logger}
	userService := user.NewService(userRepo, resetTokens, mailer, jwtSecret, logger)
	userHandler := user.NewHandler(userService)

	// 5. Initialize Chat Feature
	registry := chat.NewRegistry()
	hub := chat.NewHub(registry, userRepo, logger)
	go hub.Run(context.Background())

	chatRepo := chat.NewRepository(database.Conn)
	chatService := chat.NewService(chatRepo, hub, logger)
	chatHandler := chat.NewHandler(hub, chatService, logger)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 6. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Post("/api/auth/signup", userHandler.Signup)
	r.Post("/api/auth/signin", userHandler.Signin)
	r.Post("/api/auth/forgot-password", userHandler.ForgotPassword)
	r.Post("/api/auth/reset-password", userHandler.ResetPassword)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/auth/check", userHandler.Check)
		r.Put("/api/auth/update-profile", userHandler.UpdateProfile)
		r.Get("/api/users", userHandler.ListUsers)

		r.Get("/api/messages/{peerID}", chatHandler.GetHistory)
		r.Post("/api/messages/send/{peerID}", chatHandler.SendMessage)
		r.Patch("/api/messages/{id}", chatHandler.EditMessage)
		r.Delete("/api/messages/{id}", chatHandler.DeleteMessage)

		// WebSocket (Real-time)
		r.Get("/ws", chatHandler.ServeWs)
	})

	log.Printf("🚀 Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}
