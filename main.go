package main

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/consumers"
	"shop-service/controllers"
	"shop-service/database"
	"shop-service/middlewares"
	"shop-service/payments"
	"shop-service/rabbitmq"
	"shop-service/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.LoadConfig()

	db, err := database.Connect(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("database initialization failed", zap.Error(err))
	}
	defer db.Close()

	orderStore := store.NewMongoOrderStore(db.DB, logger)
	productStore := store.NewMongoProductStore(db.DB, logger)
	userStore := store.NewMongoUserStore(db.DB, logger)

	gateway := payments.NewPayPalClient(cfg.PayPalAPIBase, cfg.PayPalClientID, cfg.PayPalSecret, logger)
	verifier := payments.NewVerifier(orderStore, gateway, logger)

	rmq, err := rabbitmq.NewRabbitMQ(cfg, logger)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		logger.Fatal("failed to setup rabbitmq queues", zap.Error(err))
	}

	consumer := consumers.NewOrderConsumer(rmq.Channel, cfg, orderStore, logger)
	if err := consumer.Start(); err != nil {
		logger.Fatal("failed to start order consumer", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	orderCtl := controllers.NewOrderController(orderStore, productStore, verifier, rmq, cfg, logger)
	productCtl := controllers.NewProductController(productStore, cfg, logger)
	userCtl := controllers.NewUserController(userStore, cfg, logger)
	uploadCtl := controllers.NewUploadController(cfg, logger)

	r := gin.Default()
	r.Use(middlewares.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")

	// Public routes.
	api.POST("/login", userCtl.Login)
	api.POST("/register", userCtl.Register)
	api.GET("/products", productCtl.GetProducts)
	api.GET("/top-products", productCtl.GetTopProducts)
	api.GET("/products/:id", productCtl.GetProductByID)

	// Authenticated routes.
	auth := api.Group("")
	auth.Use(middlewares.AuthMiddleware(cfg.JWTSecret, userStore))
	{
		auth.POST("/logout", userCtl.Logout)
		auth.GET("/profile", userCtl.GetProfile)
		auth.PUT("/profile", userCtl.UpdateProfile)
		auth.POST("/products/:id/reviews", productCtl.CreateReview)
		auth.POST("/orders", orderCtl.CreateOrder)
		auth.GET("/myorders", orderCtl.GetMyOrders)
		auth.GET("/orders/:id", orderCtl.GetOrderByID)
		auth.PUT("/orders/:id/pay", orderCtl.PayOrder)
	}

	// Admin routes.
	admin := api.Group("")
	admin.Use(middlewares.AuthMiddleware(cfg.JWTSecret, userStore), middlewares.AdminMiddleware())
	{
		admin.GET("/users", userCtl.GetUsers)
		admin.GET("/users/:id", userCtl.GetUserByID)
		admin.PUT("/users/:id", userCtl.UpdateUser)
		admin.DELETE("/users/:id", userCtl.DeleteUser)
		admin.POST("/products", productCtl.CreateProduct)
		admin.PUT("/products/:id", productCtl.UpdateProduct)
		admin.DELETE("/products/:id", productCtl.DeleteProduct)
		admin.GET("/orders", orderCtl.GetOrders)
		admin.PUT("/orders/:id/deliver", orderCtl.DeliverOrder)
		admin.POST("/upload", uploadCtl.UploadImage)
		admin.POST("/dead-letter", orderCtl.HandleDeadLetter)
	}

	logger.Info("shop service starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
