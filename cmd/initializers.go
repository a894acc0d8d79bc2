package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rotapool/app/handler"
	"rotapool/app/middleware"
	"rotapool/app/router"
	"rotapool/internal/model"
	"rotapool/internal/pool"
	"rotapool/internal/registry"
	"rotapool/pkg/config"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"
	"rotapool/pkg/notification"
	"rotapool/pkg/probe"
	mysqlstore "rotapool/pkg/store/mysql"
	redisstore "rotapool/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

const mysqlConnectTimeout = 30 * time.Second

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging and reports config defaults applied during load
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	for _, msg := range config.Adjustments() {
		logger.WarnCtx(app.ctx, "config: %s", msg)
	}
	app.registerCleanup(func() {
		logger.Sync()
	})
	return nil
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})
	return nil
}

// initMySQL initializes the optional lifecycle event log
func (app *Application) initMySQL() error {
	if !app.config.MySQL.Enabled {
		logger.InfoCtx(app.ctx, "MySQL disabled, lifecycle events will not be persisted")
		return nil
	}

	ctx, cancel := context.WithTimeout(app.ctx, mysqlConnectTimeout)
	defer cancel()

	repo, err := mysqlstore.NewRepository(ctx, mysqlstore.DSN(app.config.MySQL))
	if err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})
	return nil
}

// initEvents wires the lifecycle event sinks: the MySQL log and Feishu alerts
func (app *Application) initEvents() error {
	var recorders []interfaces.EventRecorder
	if app.mysqlRepo != nil {
		recorders = append(recorders, app.mysqlRepo.ResourceEvent)
	}
	if url := notification.ResolveWebhookURL(app.config.Notification.FeishuWebhookURL); url != "" {
		recorders = append(recorders, notification.NewFeishuNotifier(url))
		logger.InfoCtx(app.ctx, "Feishu alerts enabled for demotions and failed probes")
	}
	app.eventRecorder = notification.NewFanout(recorders...)
	return nil
}

// initPools creates one manager per enabled pool over the shared metrics store
func (app *Application) initPools() error {
	store := redisstore.NewMetricsStore(app.redisClient)
	prefix := app.config.Redis.KeyPrefix

	if cfg := app.config.Pools.Accounts; cfg.Enabled {
		app.accountManager = app.newManager(registry.New(store, model.KindAccount, prefix), cfg)
	}
	if cfg := app.config.Pools.Proxies; cfg.Enabled {
		app.proxyManager = app.newManager(registry.New(store, model.KindProxy, prefix), cfg)
		if cfg.Probe.Enabled {
			app.proxyManager.SetProbe(probe.NewSOCKS5Probe(cfg.Probe.TargetURL, cfg.Probe.Timeout))
			logger.InfoCtx(app.ctx, "Proxy capability probe enabled, target: %s", cfg.Probe.TargetURL)
		}
	}

	if app.accountManager == nil && app.proxyManager == nil {
		return fmt.Errorf("no pool enabled, set pools.accounts.enabled or pools.proxies.enabled")
	}
	return nil
}

func (app *Application) newManager(reg *registry.Registry, cfg config.PoolConfig) *pool.Manager {
	m := pool.NewManager(reg, pool.OptionsFromConfig(cfg))
	if app.eventRecorder != nil {
		m.SetEventRecorder(app.eventRecorder)
	}
	logger.InfoCtx(app.ctx, "%s pool enabled, health gate: %v, acquire timeout: %v",
		m.Kind(), m.HealthGate(), cfg.AcquireTimeout)
	return m
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.poolHandler = handler.NewPoolHandler(app.accountManager, app.proxyManager)
	if app.mysqlRepo != nil {
		app.poolHandler.SetEventLister(app.mysqlRepo.ResourceEvent)
	}

	client := app.redisClient.GetClient()
	app.healthHandler = handler.NewHealthHandler(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	r := router.NewRouter(app.poolHandler, app.healthHandler,
		middleware.AuthMiddleware(app.config.Server.APIKey),
		middleware.RateLimit(app.ctx, app.config.RateLimit),
	)

	gin.SetMode(app.config.Server.Mode)
	app.ginEngine = gin.New()
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}
