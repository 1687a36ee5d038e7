package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marketplace-backend/cache"
	"marketplace-backend/config"
	"marketplace-backend/controllers"
	"marketplace-backend/database"
	"marketplace-backend/events"
	"marketplace-backend/logger"
	awspkg "marketplace-backend/pkg/aws"
	"marketplace-backend/repository"
	"marketplace-backend/routes"
	"marketplace-backend/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}

	repos := repository.NewRepos(db)
	txManager := repository.NewGormTxManager(db)
	guard := services.NewIdempotencyGuard(repos.Idempotency, zlog)

	// Optional event sinks; the settlement engine runs without them.
	var producer events.Publisher
	if cfg.KafkaBrokers != "" {
		kafkaProducer := events.NewKafkaProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaPaymentTopic)
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}

	var snsClient awspkg.SNSPublisher
	if cfg.PaymentSNSTopicARN != "" {
		awsCfg, err := awspkg.LoadAWSConfig(context.Background())
		if err != nil {
			zlog.Warn("Failed to load AWS config, SNS fan-out disabled", zap.Error(err))
		} else {
			snsClient = awspkg.NewSNSClient(awsCfg)
		}
	}

	var productCache *cache.ProductCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zlog.Warn("Failed to connect to Redis, product cache disabled", zap.Error(err))
		} else {
			productCache = cache.NewProductCache(redisClient, zlog)
		}
	}

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	orderSvc := services.NewOrderService(repos.Products, repos.Orders, producer, cfg.OrderCeiling, zlog)
	settlementSvc := services.NewSettlementService(
		txManager, guard, producer, snsClient, cfg.PaymentSNSTopicARN,
		cfg.Currency, cfg.DefaultCommissionBps, zlog,
	)
	walletSvc := services.NewWalletService(
		txManager, repos, guard,
		cfg.Currency, cfg.TransferCeiling, cfg.MinWithdrawal, zlog,
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(zlog))

	routes.RegisterRoutes(r, &routes.Controllers{
		Orders:        controllers.NewOrderController(orderSvc),
		Payments:      controllers.NewPaymentController(orderSvc, stripeSvc, cfg.Currency, zlog),
		Wallets:       controllers.NewWalletController(walletSvc),
		Products:      controllers.NewProductController(repos.Products, productCache),
		StripeWebhook: controllers.NewStripeWebhookController(stripeSvc, settlementSvc, cfg.WebhookProcessTimeout, zlog),
		MomoWebhook:   controllers.NewMomoWebhookController(settlementSvc, cfg.MomoWebhookKey, cfg.WebhookFreshnessWindow, cfg.WebhookProcessTimeout, zlog),
	}, []byte(cfg.JWTSecret))

	zlog.Info("Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed", zap.Error(err))
	}
}
