package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/nftmart/gomart/internal/adapters/memassets"
	"github.com/nftmart/gomart/internal/adapters/memledger"
	"github.com/nftmart/gomart/internal/adapters/royaltyhttp"
	"github.com/nftmart/gomart/internal/controlplane/server"
	"github.com/nftmart/gomart/internal/engine"
	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/internal/journal"
	"github.com/nftmart/gomart/internal/ports"
	"github.com/nftmart/gomart/internal/store"
	"github.com/nftmart/gomart/pkg/config"
	"github.com/nftmart/gomart/pkg/logger"
	"github.com/nftmart/gomart/pkg/shutdown"
)

// 引擎默认托管账户（沙盒环境用，生产部署通过 -engine-account 覆盖）
const defaultEngineAccount = "0x00000000000000000000000000000000000000e1"

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath    = flag.String("config", getenv("GOMART_CONFIG", ""), "YAML config file path")
		listenAddr    = flag.String("listen", getenv("GOMART_LISTEN", ""), "HTTP listen address (overrides config)")
		engineAccount = flag.String("engine-account", getenv("GOMART_ENGINE_ACCOUNT", defaultEngineAccount), "escrow account held by the engine")
		platformOwner = flag.String("platform-owner", getenv("GOMART_PLATFORM_OWNER", ""), "platform fee recipient (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}
	if *platformOwner != "" {
		cfg.Platform.Owner = *platformOwner
	}
	if err := cfg.Platform.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid platform config: %v\n", err)
		os.Exit(1)
	}
	if !common.IsHexAddress(*engineAccount) || !common.IsHexAddress(cfg.Platform.Owner) {
		fmt.Fprintln(os.Stderr, "engine account and platform owner must be hex addresses")
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Server.LogLevel,
		OutputFile: cfg.Server.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	engineAddr := common.HexToAddress(*engineAccount)
	ownerAddr := common.HexToAddress(cfg.Platform.Owner)

	// 市场状态库（badger）
	db, err := store.OpenDB(cfg.Server.MarketDB)
	if err != nil {
		logger.Errorf("打开市场状态库失败: %v", err)
		os.Exit(1)
	}
	st, err := store.NewMarketStore(db)
	if err != nil {
		logger.Errorf("恢复市场状态失败: %v", err)
		os.Exit(1)
	}

	// 事件日志（sqlite）
	jnl, err := journal.Open(cfg.Server.JournalDB)
	if err != nil {
		logger.Errorf("打开事件日志失败: %v", err)
		os.Exit(1)
	}

	// 沙盒适配器；接生产链时换成链上实现
	custody := memassets.NewCustody()
	ledger := memledger.NewLedger(engineAddr)

	var custodyPort ports.AssetCustody = custody
	if cfg.Royalty.OracleURL != "" {
		custodyPort = royaltyhttp.New(custodyPort, royaltyhttp.Config{
			BaseURL:  cfg.Royalty.OracleURL,
			CacheTTL: time.Duration(cfg.Royalty.CacheTTLSeconds) * time.Second,
			Timeout:  time.Duration(cfg.Royalty.TimeoutSeconds) * time.Second,
			MaxBps:   cfg.Platform.MaxBps,
		})
		logger.Infof("版税查询走远端: %s", cfg.Royalty.OracleURL)
	}

	bus := events.NewBus(jnl)
	eng := engine.New(engine.Config{
		EngineAccount: engineAddr,
		PlatformOwner: ownerAddr,
		FeeBps:        cfg.Platform.FeeBps,
		BidBufferBps:  cfg.Platform.BidBufferBps,
		TimeBuffer:    cfg.Platform.TimeBuffer(),
		MaxBps:        cfg.Platform.MaxBps,
	}, st, custodyPort, ledger, bus)

	srv := server.New(server.Config{
		Engine:      eng,
		Journal:     jnl,
		Custody:     custody,
		Ledger:      ledger,
		EnableWS:    cfg.Server.EnableWS,
		EnableAdmin: cfg.Server.EnableAdmin,
	})
	if hub := srv.Hub(); hub != nil {
		bus.Attach(hub)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) { _ = httpSrv.Shutdown(ctx) })
	mgr.OnShutdown(func(context.Context) { _ = srv.Close() })
	mgr.OnShutdown(func(context.Context) { _ = jnl.Close() })
	mgr.OnShutdown(func(context.Context) { _ = db.Close() })

	go func() {
		logger.Infof("结算服务监听 %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	fmt.Println("server stopped")
}
