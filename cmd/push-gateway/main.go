// cmd/push-gateway/main.go
package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"digigoods/internal/pkg/bootstrap"
	"digigoods/internal/pkg/mq"
	"digigoods/internal/pkg/redis"
	"digigoods/internal/service/push"
)

const serviceName = "push-gateway"

var nodeID = "push-gateway-" + uuid.New().String()[:8]

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
		zlog.Fatal().Err(err).Msg("push gateway exited")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config

	var hubOpts []push.HubOption
	if len(cfg.Infra.Redis.Addrs) > 0 {
		redisClient, err := redis.NewClient(appCtx.Ctx, cfg.Infra.Redis)
		if err != nil {
			return err
		}
		appCtx.OnShutdown(redisClient.Close)
		sessions, err := push.NewRedisSessionStore(redisClient, 24*time.Hour)
		if err != nil {
			return err
		}
		hubOpts = append(hubOpts, push.WithSessionStore(sessions))
	}

	hub := push.NewHub(nodeID, hubOpts...)
	appCtx.Group.Go(func() error { return hub.Run(appCtx.Ctx) })
	push.NewHandler(hub, cfg.App.CORSOrigins).RegisterRoutes(appCtx.Router)

	if len(cfg.Infra.Kafka.Brokers) == 0 {
		return errors.New("push gateway requires kafka brokers")
	}
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderTopic, cfg.Infra.Kafka.GroupID)
	appCtx.OnShutdown(reader.Close)
	consumer := push.NewEventConsumer(reader, hub, otel.Tracer(serviceName))
	appCtx.Group.Go(func() error { return consumer.Run(appCtx.Ctx) })

	zlog.Info().Str("node", nodeID).Str("topic", cfg.Infra.Kafka.OrderTopic).Msg("push gateway wired")
	return nil
}
