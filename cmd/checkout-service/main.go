// cmd/checkout-service/main.go
package main

import (
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"digigoods/internal/pkg/bootstrap"
	"digigoods/internal/pkg/database"
	"digigoods/internal/pkg/metrics"
	"digigoods/internal/pkg/mq"
	"digigoods/internal/pkg/redis"
	catalogapp "digigoods/internal/service/catalog/application"
	cataloginfra "digigoods/internal/service/catalog/infrastructure"
	catalogapi "digigoods/internal/service/catalog/interfaces"
	orderapp "digigoods/internal/service/order/application"
	"digigoods/internal/service/order/domain"
	orderinfra "digigoods/internal/service/order/infrastructure"
	"digigoods/internal/service/order/infrastructure/adapter"
	orderapi "digigoods/internal/service/order/interfaces"
	promotionapp "digigoods/internal/service/promotion/application"
	promotioninfra "digigoods/internal/service/promotion/infrastructure"
	"digigoods/internal/service/promotion/infrastructure/rule"
	promotionapi "digigoods/internal/service/promotion/interfaces"
	"digigoods/internal/zookeeper"
)

const serviceName = "checkout-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig(serviceName, "")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Config:           cfg,
		RegisterHandlers: registerHandlers,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("checkout service exited")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	// 1. 数据库
	db, err := database.Open(cfg.Infra.MySQL)
	if err != nil {
		return err
	}
	appCtx.OnShutdown(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if cfg.Infra.MySQL.AutoMigrate || cfg.Infra.MySQL.SQLitePath != "" {
		var models []interface{}
		models = append(models, cataloginfra.Models()...)
		models = append(models, promotioninfra.Models()...)
		models = append(models, orderinfra.Models()...)
		if err := database.AutoMigrate(db, models...); err != nil {
			return err
		}
	}

	// 2. 商品目录与促销上下文
	productService := catalogapp.NewProductService(cataloginfra.NewGormProductRepository(db), tracer)
	filter, err := rule.NewCELFilterEngine()
	if err != nil {
		return errors.Wrap(err, "init discount filter engine")
	}
	discountService := promotionapp.NewDiscountService(
		promotioninfra.NewGormDiscountRepository(db), tracer,
		promotionapp.WithLocation(cfg.App.Checkout.Location()),
		promotionapp.WithFilterEngine(filter),
	)

	// 3. 结算的可选组件
	opts := []orderapp.Option{orderapp.WithMetrics(metrics.NewCheckoutMetrics(appCtx.Registry))}

	var redisClient *redis.Client
	if len(cfg.Infra.Redis.Addrs) > 0 {
		if redisClient, err = redis.NewClient(appCtx.Ctx, cfg.Infra.Redis); err != nil {
			return err
		}
		appCtx.OnShutdown(redisClient.Close)
		opts = append(opts, orderapp.WithIdempotencyStore(adapter.NewRedisIdempotencyStore(redisClient, cfg.App.Checkout.IdempotencyTTL)))
	}

	switch cfg.App.Checkout.LockBackend {
	case bootstrap.LockBackendRedis:
		locker, err := adapter.NewRedisCheckoutLocker(redisClient, cfg.App.Checkout.LockTTL, cfg.App.Checkout.LockWait)
		if err != nil {
			return err
		}
		opts = append(opts, orderapp.WithLocker(locker))
	case bootstrap.LockBackendZookeeper:
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return err
		}
		appCtx.OnShutdown(func() error { conn.Close(); return nil })
		opts = append(opts, orderapp.WithLocker(adapter.NewZookeeperCheckoutLocker(conn, cfg.App.Checkout.LockWait)))
	}

	if len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderTopic)
		appCtx.OnShutdown(writer.Close)
		opts = append(opts, orderapp.WithEventPublisher(adapter.NewOrderEventKafkaAdapter(writer)))
	}

	// 4. 结算用例
	checkoutService := orderapp.NewCheckoutService(
		orderinfra.NewGormUserRepository(db),
		orderinfra.NewGormOrderRepository(db),
		productService,
		discountService,
		database.NewTransactor(db),
		domain.NewPricer(decimal.NewFromFloat(cfg.App.Checkout.MaxDiscountRatio)),
		tracer,
		opts...,
	)

	// 5. 路由
	catalogapi.NewProductHandler(productService).RegisterRoutes(appCtx.Router)
	promotionapi.NewDiscountHandler(discountService).RegisterRoutes(appCtx.Router)
	orderapi.NewCheckoutHandler(checkoutService).RegisterRoutes(appCtx.Router)

	zlog.Info().
		Str("lock_backend", cfg.App.Checkout.LockBackend).
		Bool("idempotency", redisClient != nil).
		Bool("events", len(cfg.Infra.Kafka.Brokers) > 0).
		Msg("checkout service wired")
	return nil
}
