package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hidden_mines/internal/attest"
	"hidden_mines/internal/auth"
	"hidden_mines/internal/config"
	"hidden_mines/internal/db"
	httpServer "hidden_mines/internal/http"
	"hidden_mines/internal/http/handlers"
	"hidden_mines/internal/http/middleware"
	"hidden_mines/internal/logger"
	"hidden_mines/internal/oracle"
	"hidden_mines/internal/ranking"
	"hidden_mines/internal/repository"
	"hidden_mines/internal/service"
	"hidden_mines/internal/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

const version = "1.0.0"

// localKMSKeys is the number of signers the in-process oracle runs with.
const localKMSKeys = 3

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		dbPool   *pgxpool.Pool
		ledger   *ranking.Ledger
		eventLog *service.EventLog
	)
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(ctx, cfg.DatabaseURL)
		defer dbPool.Close()

		rankings := repository.NewRankingRepository(dbPool)
		var err error
		if ledger, err = service.LoadLedger(ctx, rankings); err != nil {
			logger.Fatal("failed to restore rankings", "error", err)
		}
		logger.Info("rankings restored", "entries", ledger.Len())
		eventLog = service.NewEventLog(repository.NewEventRepository(dbPool), rankings, 4096)
	} else {
		logger.Warn("DATABASE_URL not set, running without persistence")
	}

	o, discloser, signers, threshold := buildOracle(cfg)
	verifier, err := attest.NewKMSVerifier(cfg.KMSDomain, signers, threshold)
	if err != nil {
		logger.Fatal("invalid kms configuration", "error", err)
	}

	engine := service.NewEngine(o, verifier, service.Options{
		PendingTTL: cfg.PendingTTL,
		Ledger:     ledger,
	})

	hub := ws.NewHub()
	engine.Subscribe(hub)

	logCtx, stopLog := context.WithCancel(context.Background())
	logDone := make(chan struct{})
	if eventLog != nil {
		engine.Subscribe(eventLog)
		go func() {
			eventLog.Run(logCtx)
			close(logDone)
		}()
	} else {
		close(logDone)
	}

	if local, ok := o.(*oracle.Local); ok && cfg.DevMines != "" {
		seedGrid(ctx, engine, local, cfg.DevMines)
	}

	admins := auth.ParseAdmins(cfg.AdminAddresses)
	if admins.Len() == 0 {
		logger.Warn("ADMIN_ADDRESSES is empty, grid management endpoints will reject every caller")
	}

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer middleware.CloseRedis()

	r := gin.Default()
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	h := handlers.NewHandler(engine, admins, service.NewWalletAuth(cfg.SignInTTL), discloser)
	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:       h,
		Hub:           hub,
		DB:            dbPool,
		Version:       version,
		AllowedOrigin: cfg.AllowedOrigin,
		Limits: httpServer.Limits{
			APIRequests:   cfg.APIRateLimit,
			APIWindow:     cfg.APIRateWindow,
			RevealActions: cfg.RevealRateLimit,
			RevealWindow:  cfg.RevealRateWindow,
		},
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "oracle", cfg.OracleMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	stopLog()
	select {
	case <-logDone:
	case <-shutdownCtx.Done():
		logger.Warn("event log did not drain before shutdown")
	}

	logger.Info("server exited")
}

func buildOracle(cfg *config.Config) (oracle.Oracle, oracle.Discloser, []common.Address, int) {
	switch cfg.OracleMode {
	case config.OracleExternal:
		signers, err := attest.ParseSigners(cfg.KMSSigners)
		if err != nil {
			logger.Fatal("invalid KMS_SIGNERS", "error", err)
		}
		return oracle.NewGateway(cfg.OracleURL, cfg.OracleAPIKey), nil, signers, cfg.KMSThreshold

	default:
		local, err := oracle.NewLocal(cfg.KMSDomain, localKMSKeys)
		if err != nil {
			logger.Fatal("failed to start local oracle", "error", err)
		}
		threshold := min(cfg.KMSThreshold, localKMSKeys)
		logger.Warn("using in-process oracle, cell values are held in memory", "kms_threshold", threshold)
		return local, local, local.Signers(), threshold
	}
}

// seedGrid installs a development layout. The process itself acts as the
// privileged caller.
func seedGrid(ctx context.Context, engine *service.Engine, local *oracle.Local, list string) {
	var mines []int
	for _, s := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			logger.Fatal("invalid DEV_MINES entry", "value", s)
		}
		mines = append(mines, n)
	}

	values, err := oracle.LayoutValues(mines)
	if err != nil {
		logger.Fatal("invalid DEV_MINES layout", "error", err)
	}
	inputs, proof, err := local.Encrypt(values)
	if err != nil {
		logger.Fatal("failed to encrypt dev layout", "error", err)
	}

	system := common.Address{}
	epoch, err := engine.InitializeGrid(ctx, auth.NewAdmins(system).Authorize(system), inputs, proof)
	if err != nil {
		logger.Fatal("failed to seed grid", "error", err)
	}
	logger.Info("dev grid seeded", "epoch", epoch, "mines", len(mines))
}
