// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"digigoods/internal/pkg/logger"
	"digigoods/internal/pkg/metrics"
	"digigoods/internal/pkg/nacos"
	"digigoods/internal/pkg/tracing"
	"digigoods/internal/pkg/web"
)

// AppCtx 交给各个服务注册路由、后台任务和关停钩子。
type AppCtx struct {
	Ctx      context.Context // 收到退出信号时取消
	Router   chi.Router
	Group    *errgroup.Group // 后台 worker 在这里启动，任何一个返回错误都会触发整体退出
	Config   *Config
	Registry *prometheus.Registry

	closers []func() error
}

// OnShutdown 注册一个关停钩子，按注册的逆序执行。
func (a *AppCtx) OnShutdown(fn func() error) {
	a.closers = append(a.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Config      *Config
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由和后台任务。
	RegisterHandlers func(appCtx *AppCtx) error
}

// NewRouter 构造带有公共中间件、/healthz 和 /metrics 的路由。
func NewRouter(cfg *Config, reg *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(web.Tracing(cfg.App.Name))
	r.Use(web.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.App.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-User-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))
	return r
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑，阻塞到收到退出信号或某个 worker 失败。
func StartService(info AppInfo) error {
	cfg := info.Config
	logger.Init(cfg.App.LogLevel, info.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		return errors.Wrap(err, "init tracer provider")
	}

	// 2. 路由与指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	group, gctx := errgroup.WithContext(ctx)
	appCtx := &AppCtx{
		Ctx:      gctx,
		Router:   NewRouter(cfg, reg),
		Group:    group,
		Config:   cfg,
		Registry: reg,
	}
	defer func() {
		for i := len(appCtx.closers) - 1; i >= 0; i-- {
			if err := appCtx.closers[i](); err != nil {
				zlog.Warn().Err(err).Msg("shutdown hook failed")
			}
		}
	}()
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			return errors.Wrap(err, "register handlers")
		}
	}

	// 3. HTTP Server
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           appCtx.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Go(func() error {
		zlog.Info().Int("port", cfg.App.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	// 4. 服务注册（可选）
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.ServerAddrs != "" {
		if namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group); err != nil {
			zlog.Warn().Err(err).Msg("failed to create nacos client, skipping registration")
			namingClient = nil
		} else if ip, err = GetOutboundIP(); err != nil {
			zlog.Warn().Err(err).Msg("failed to resolve outbound IP, skipping nacos registration")
			namingClient.Close()
			namingClient = nil
		} else if err = namingClient.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			zlog.Warn().Err(err).Msg("nacos registration failed")
		}
	}

	// 5. 优雅关停: 等待退出信号或 worker 失败
	group.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
				zlog.Warn().Err(err).Msg("Error deregistering from Nacos")
			}
			namingClient.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Warn().Err(err).Msg("Error shutting down http server")
		}
		// 最后关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			zlog.Warn().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = group.Wait()
	zlog.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return err
}

// GetOutboundIP 通过一次 UDP "连接"拿到本机对外的地址，不会真正发包。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
