package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/dripster-api/internal/config"
	"github.com/yourusername/dripster-api/internal/handler"
	"github.com/yourusername/dripster-api/internal/middleware"
	pgRepo "github.com/yourusername/dripster-api/internal/repository/postgres"
	"github.com/yourusername/dripster-api/internal/service"
	"github.com/yourusername/dripster-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis (для rate limiting)
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	verificationRepo := pgRepo.NewEmailVerificationRepo(db)

	// Инициализируем почтовый сервис согласно конфигурации
	var emailService service.EmailService
	switch cfg.Email.Provider {
	case "gmail":
		emailService, err = service.NewGmailEmailService(
			cfg.Email.Gmail.ClientID,
			cfg.Email.Gmail.ClientSecret,
			cfg.Email.Gmail.RefreshToken,
			cfg.Email.From,
		)
	case "resend":
		emailService, err = service.NewResendEmailService(cfg.Email.Resend.APIKey, cfg.Email.From)
	default:
		emailService = &service.NoopEmailService{}
	}
	if err != nil {
		log.Printf("Failed to initialize email service: %v", err)
		os.Exit(1)
	}

	// Инициализируем сервис верификации
	verificationService, err := service.NewVerificationService(
		verificationRepo,
		emailService,
		cfg.Verification.AllowedDomain,
		cfg.Verification.OTPTTL,
		cfg.Verification.MaxAttempts,
	)
	if err != nil {
		log.Printf("Failed to initialize verification service: %v", err)
		os.Exit(1)
	}

	// Инициализируем обработчики и middleware
	verificationHandler := handler.NewVerificationHandler(verificationService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		// Production: не доверять прокси-заголовкам (защита от IP spoofing)
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS: эндпоинты дергаются из браузера до создания сессии,
	// поэтому preflight разрешен для любого origin
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Client-Info", "Apikey"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/send-otp",
				rateLimiter.Limit(middleware.SendOTPRateLimitConfig()),
				verificationHandler.SendOTP)
			authGroup.POST("/verify-otp",
				rateLimiter.Limit(middleware.VerifyOTPRateLimitConfig()),
				verificationHandler.VerifyOTP)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Ждем сигнала остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	// Контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
