package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"OpenMCP-Swap/internal/agent"
	"OpenMCP-Swap/internal/api"
	"OpenMCP-Swap/internal/config"
	"OpenMCP-Swap/internal/dexscreener"
	"OpenMCP-Swap/internal/observability/alerting"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/internal/task"
	"OpenMCP-Swap/internal/web3/contracts"
	"OpenMCP-Swap/internal/web3/provider"
	"OpenMCP-Swap/pkg/logger"
)

// main 是 OpenMCP-Swap 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("openswapd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 只补充未设置的环境变量，文件缺失不是错误。
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer logger.Sync()
	appLog := logger.Named("openswapd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	chainClient, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}
	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("查询链 ID 失败: %w", err)
	}

	bindings, err := contracts.Load()
	if err != nil {
		return err
	}
	engineCfg, err := cfg.Swap.Engine()
	if err != nil {
		return err
	}

	index := dexscreener.NewClient(
		dexscreener.WithBaseURL(cfg.Swap.Index.BaseURL),
		dexscreener.WithRateLimit(cfg.Swap.Index.RatePerSecond, cfg.Swap.Index.Burst),
		dexscreener.WithHTTPClient(newIndexHTTPClient(cfg.Swap.Index.IndexTimeout())),
	)

	backend := chainClient.Backend()
	swapOpts := []swap.Option{swap.WithLogger(logger.Named("swap"))}
	if cfg.Swap.ShouldConfirmApproval() {
		swapOpts = append(swapOpts, swap.WithApprovalConfirmation(swap.BackendWaiter{Backend: backend}))
	}
	if cfg.Cache.Enabled {
		cache, closeCache, err := openDecimalsCache(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer closeCache()
		swapOpts = append(swapOpts, swap.WithDecimalsCache(cache))
	}

	chain := swap.NewBoundChain(bindings, backend, engineCfg.Quoter, engineCfg.Router)
	engine, err := swap.NewOrchestrator(engineCfg, index, chain, swapOpts...)
	if err != nil {
		return err
	}

	wallets, closeWallets, err := openWallets(cfg.Wallet, chainID, backend)
	if err != nil {
		return err
	}
	defer closeWallets()

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	ag := agent.New(engine, wallets,
		agent.WithChainClient(chainClient),
		agent.WithTokenIndex(index, engineCfg.IndexChain),
		agent.WithTokenReader(chain),
		agent.WithHistory(history),
		agent.WithExplorer(chainRegistry.Explorer(), chainRegistry.ExplorerName()),
		agent.WithLogger(logger.Named("agent")),
	)

	taskStore, err := openTaskStore(ctx, cfg)
	if err != nil {
		return err
	}
	taskQueue, err := openTaskQueue(ctx, cfg.TaskQueue)
	if err != nil {
		_ = taskStore.Close()
		return err
	}
	taskService := task.NewService(taskStore, taskQueue)
	defer func() {
		if err := taskService.Close(); err != nil {
			appLog.Warn("关闭任务服务失败", "error", err)
		}
	}()

	processorOpts := []task.ProcessorOption{task.WithWorkerCount(cfg.TaskQueue.Workers)}
	if dispatcher := alerting.FromWebhooks(cfg.Alerting.SlackWebhookURL, cfg.Alerting.SlackChannel, cfg.Alerting.DingTalkWebhookURL); dispatcher != nil {
		appLog.Info("已启用兑换失败告警", "channels", dispatcher.Len())
		processorOpts = append(processorOpts, task.WithAlertDispatcher(dispatcher))
	}
	processor := task.NewProcessor(ag, taskStore, taskQueue, processorOpts...)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("任务处理器异常退出", "error", err)
		}
	}()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(cfg.Server.Address, taskService, ag,
		api.WithMetricsPath(metricsPath),
		api.WithShutdownTimeout(shutdownTimeout),
	)

	appLog.Info("openswapd 已启动",
		"address", cfg.Server.Address,
		"chain", chainRegistry.DefaultChain(),
		"chain_id", chainID.String(),
		"task_store", cfg.Storage.TaskStore.Driver,
		"task_queue", cfg.TaskQueue.Driver,
		"metrics", metricsPath,
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
