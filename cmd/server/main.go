package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/easexpo/marketplace-backend/internal/config"
	"github.com/easexpo/marketplace-backend/internal/database"
	"github.com/easexpo/marketplace-backend/internal/events"
	"github.com/easexpo/marketplace-backend/internal/handlers"
	"github.com/easexpo/marketplace-backend/internal/lock"
	"github.com/easexpo/marketplace-backend/internal/middleware"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/easexpo/marketplace-backend/pkg/jwt"
	"github.com/easexpo/marketplace-backend/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting EasExpo marketplace backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if err := validator.RegisterBindings(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Optional infrastructure
	var stallLocker lock.StallLocker = lock.NoopStallLocker{}
	var redisLocker *lock.RedisStallLocker
	if cfg.Redis.Addr != "" {
		redisLocker = lock.NewRedisStallLocker(cfg.Redis, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisLocker.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("Redis unreachable; booking requests will rely on the database constraint")
		}
		cancel()
		stallLocker = redisLocker
		logger.WithField("addr", cfg.Redis.Addr).Info("Distributed stall lock enabled")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		publisher = kafkaPublisher
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("Domain event publishing enabled")
	}

	// Repositories
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	applicationRepository := database.NewOwnerApplicationRepository(db)
	eventRepository := database.NewEventRepository(db)
	stallRepository := database.NewStallRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	paymentRepository := database.NewPaymentRepository(db)
	paymentAuditRepository := database.NewPaymentAuditRepository(db, logger)
	feedbackRepository := database.NewFeedbackRepository(db)
	reportRepository := database.NewReportRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	auditService := services.NewAuditService(db, cfg.Security.EnableAuditLog)
	rateLimitService := services.NewRateLimitService(cfg.RateLimit)
	razorpayService := services.NewRazorpayService(cfg.Razorpay, logger)
	if !razorpayService.IsConfigured() {
		logger.Warn("Razorpay keys are not set; payment endpoints will answer 503")
	}

	accountService := services.NewAccountService(
		userRepository,
		refreshTokenRepository,
		applicationRepository,
		jwtService,
		auditService,
		cfg.Security.BcryptCost,
		logger,
	)
	applicationService := services.NewOwnerApplicationService(applicationRepository, auditService, logger)
	stallService := services.NewStallService(stallRepository, eventRepository, logger)
	bookingService := services.NewBookingService(
		bookingRepository,
		stallRepository,
		paymentRepository,
		feedbackRepository,
		stallLocker,
		publisher,
		cfg.Booking.AutoApprove,
		logger,
	)
	paymentService := services.NewPaymentService(
		bookingRepository,
		paymentRepository,
		razorpayService,
		paymentAuditRepository,
		publisher,
		cfg.Booking.AutoApprove,
		logger,
	)
	feedbackService := services.NewFeedbackService(bookingRepository, feedbackRepository, publisher, logger)
	reportService := services.NewReportService(reportRepository, feedbackRepository, eventRepository, bookingService, paymentRepository)

	cronService := services.NewCronService(cfg.Cron, bookingService, refreshTokenRepository, auditService, rateLimitService, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(accountService, logger)
	stallHandler := handlers.NewStallHandler(stallService, reportService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, feedbackService, reportService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService, logger)
	adminHandler := handlers.NewAdminHandler(accountService, applicationService, reportService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, redisLocker))

	v1 := router.Group("/api/v1")
	v1.GET("/health", healthCheckHandler(db, redisLocker))

	v1.GET("/events", stallHandler.ListEvents)
	v1.GET("/events/:id", stallHandler.GetEvent)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authHandler.Logout)
	}

	// Signed by the gateway, not by a user token
	v1.POST("/payments/razorpay/webhook", paymentHandler.RazorpayWebhook)

	authenticated := v1.Group("")
	authenticated.Use(
		middleware.AuthMiddleware(jwtService, logger),
		middleware.RequireActiveAccount(userRepository, logger),
	)

	account := authenticated.Group("/account")
	{
		account.GET("/profile", authHandler.GetProfile)
		account.PUT("/profile", authHandler.UpdateProfile)
		account.GET("/owner-application", authHandler.GetOwnerApplication)
	}

	customer := authenticated.Group("/bookings")
	customer.Use(middleware.RequireRole(models.RoleCustomer))
	{
		customer.POST("", bookingHandler.CreateBooking)
		customer.GET("", bookingHandler.ListMyBookings)
		customer.POST("/:id/payment", middleware.RateLimit(rateLimitService), paymentHandler.InitiatePayment)
		customer.POST("/:id/payment/confirm", middleware.RateLimit(rateLimitService), paymentHandler.ConfirmPayment)
		customer.POST("/:id/feedback", bookingHandler.SubmitFeedback)
	}

	owner := authenticated.Group("/owner")
	owner.Use(middleware.RequireRole(models.RoleStallOwner))
	{
		owner.GET("/dashboard", bookingHandler.OwnerDashboard)

		owner.GET("/events", stallHandler.ListOwnerEvents)
		owner.POST("/events", stallHandler.CreateEvent)
		owner.GET("/events/:id", stallHandler.GetOwnerEvent)
		owner.POST("/events/:id/slots", stallHandler.AddSlot)

		owner.GET("/stalls", stallHandler.ListOwnerStalls)
		owner.PUT("/stalls/:id", stallHandler.UpdateStall)
		owner.DELETE("/stalls/:id", stallHandler.DeleteStall)

		owner.GET("/bookings", bookingHandler.ListOwnerBookings)
		owner.GET("/bookings/:id", bookingHandler.GetOwnerBooking)
		owner.POST("/bookings/:id/approve", bookingHandler.ApproveBooking)
		owner.POST("/bookings/:id/reject", bookingHandler.RejectBooking)

		owner.GET("/feedback", bookingHandler.ListOwnerFeedback)
	}

	admin := authenticated.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/dashboard", adminHandler.Dashboard)

		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/users", adminHandler.CreateUser)
		admin.PUT("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)

		admin.GET("/stalls", stallHandler.ListAllStalls)
		admin.POST("/stalls", stallHandler.CreateStall)
		admin.PUT("/stalls/:id", stallHandler.UpdateStall)
		admin.DELETE("/stalls/:id", stallHandler.DeleteStall)

		admin.GET("/owner-applications", adminHandler.ListOwnerApplications)
		admin.POST("/owner-applications/:id/approve", adminHandler.ApproveOwnerApplication)
		admin.POST("/owner-applications/:id/reject", adminHandler.RejectOwnerApplication)

		admin.GET("/payments", adminHandler.ListPayments)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to flush event publisher")
		}
	}
	if redisLocker != nil {
		if err := redisLocker.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}
		if roles, exists := c.Get("roles"); exists {
			fields["roles"] = roles
		}

		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

func healthCheckHandler(db database.DB, redisLocker *lock.RedisStallLocker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		body := gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		}
		// Redis only degrades booking throughput, never availability
		if redisLocker != nil {
			if err := redisLocker.Ping(c.Request.Context()); err != nil {
				body["redis"] = "unreachable"
			} else {
				body["redis"] = "healthy"
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
