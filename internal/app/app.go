package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"paper-trader/api"
	"paper-trader/internal/chart"
	"paper-trader/internal/config"
	"paper-trader/internal/engine"
	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/push"
	"paper-trader/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	dispatchQueueSize    = 256
	journalFlushInterval = time.Second
	journalBatchSize     = 100
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Ledger     *ledger.Ledger
	Window     *chart.Window
	Gateway    *push.Gateway
	Journal    *storage.TradeJournal
	Dispatcher *engine.WorkerPool
	Cycle      *engine.Cycle
	HTTPServer *http.Server

	cancel        context.CancelFunc
	journalCancel context.CancelFunc
	cycleWG       sync.WaitGroup
	journalWG     sync.WaitGroup
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := infrastructure.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return &App{
		Config: &cfg,
		Logger: infrastructure.Logger,
	}, nil
}

// Init initializes all application components. Postgres and NATS are optional.
func (a *App) Init(ctx context.Context) error {
	sinks := make([]engine.Sink, 0, 3)

	// 1. Push gateway
	a.Gateway = push.NewGateway(a.Logger)
	sinks = append(sinks, a.Gateway)

	// 2. Database
	if a.Config.DB_DSN != "" {
		dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = dbPool

		if err := a.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.Journal = storage.NewTradeJournal(a.DB, a.Logger, journalFlushInterval, journalBatchSize)
		sinks = append(sinks, a.Journal)
	}

	// 3. NATS
	if a.Config.NatsURL != "" {
		nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.NC = nc
		a.JS = js
		sinks = append(sinks, push.NewNATSPublisher(js, a.Logger))
	}

	// 4. Trading engine
	a.Dispatcher = engine.NewWorkerPool(a.Config.DispatchWorkers, dispatchQueueSize, a.Logger, sinks...)
	return a.buildEngine()
}

// Run starts the trading cycle and the HTTP server, then blocks until a
// shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.startTradingCycle(ctx)

	// Setup HTTP Server
	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("server shutdown failed", zap.Error(err))
	}

	a.stopTradingCycle()

	if a.NC != nil {
		a.NC.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}

	_ = a.Logger.Sync()
	return nil
}

// initDatabase runs the database initialization script
func (a *App) initDatabase(ctx context.Context) error {
	sqlFile := "scripts/init.sql"
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}

	_, err = a.DB.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}

	a.Logger.Info("database initialized successfully")
	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestIDMiddleware(), api.LoggerMiddleware(a.Logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(a.Ledger, a.Window, a.Logger)
	r.GET("/api/data", apiHandler.GetData)
	r.GET("/api/wallet", apiHandler.GetWallet)

	r.StaticFile("/", "./static/index.html")

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
