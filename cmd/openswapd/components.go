package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"OpenMCP-Swap/internal/config"
	"OpenMCP-Swap/internal/storage/mysql"
	"OpenMCP-Swap/internal/storage/redis"
	"OpenMCP-Swap/internal/task"
	"OpenMCP-Swap/internal/wallet"
)

func noop() {}

func newIndexHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func mysqlConfig(dsn string, store config.TaskStoreConfig) mysql.Config {
	return mysql.Config{
		DSN:             dsn,
		MaxOpenConns:    store.MaxOpenConns,
		MaxIdleConns:    store.MaxIdleConns,
		ConnMaxLifetime: store.ConnMaxLifetime(),
		ConnMaxIdleTime: store.ConnMaxIdleTime(),
	}
}

// openDecimalsCache 连接 Redis 并返回代币精度缓存。
func openDecimalsCache(ctx context.Context, cfg config.CacheConfig) (*redis.DecimalsCache, func(), error) {
	client, err := redis.Dial(ctx, redis.Config{Address: cfg.Address, Password: cfg.Password, DB: cfg.DB})
	if err != nil {
		return nil, noop, fmt.Errorf("连接精度缓存失败: %w", err)
	}
	cache := redis.NewDecimalsCache(client, cfg.Prefix, time.Duration(cfg.TTLSeconds)*time.Second)
	return cache, func() { _ = client.Close() }, nil
}

// openWallets 优先使用环境变量中的私钥，其次使用 keystore 目录。
func openWallets(cfg config.WalletConfig, chainID *big.Int, nonces wallet.NonceSource) (wallet.Provider, func(), error) {
	locks := wallet.NewNonceLocks()
	if key := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv)); key != "" {
		provider, err := wallet.NewStaticProvider(key, chainID, nonces, locks)
		if err != nil {
			return nil, noop, fmt.Errorf("加载私钥失败: %w", err)
		}
		return provider, noop, nil
	}
	if cfg.KeystoreDir != "" {
		provider, err := wallet.NewKeystoreProvider(wallet.KeystoreConfig{
			Dir:            cfg.KeystoreDir,
			Passphrase:     os.Getenv(cfg.PassphraseEnv),
			DefaultAddress: cfg.DefaultAddress,
		}, chainID, nonces, locks)
		if err != nil {
			return nil, noop, err
		}
		return provider, provider.Close, nil
	}
	return nil, noop, fmt.Errorf("未配置签名钱包: 请设置 %s 或 wallet.keystore_dir", cfg.PrivateKeyEnv)
}

// openHistory 根据配置创建兑换历史仓库。
func openHistory(ctx context.Context, cfg *config.Config) (mysql.SwapRepository, func(), error) {
	switch cfg.Storage.History.Driver {
	case "mysql":
		repo, err := mysql.NewSQLSwapRepository(ctx, mysqlConfig(cfg.Storage.History.DSN, cfg.Storage.TaskStore))
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		repo, err := mysql.NewMemorySwapRepository(cfg.Runtime.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}
}

// openTaskStore 根据配置创建任务存储。
func openTaskStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.TaskStore.Driver {
	case "mysql":
		store, err := task.NewMySQLStore(ctx, mysqlConfig(cfg.Storage.TaskStore.DSN, cfg.Storage.TaskStore))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return task.NewMemoryStore(), nil
	}
}

// openTaskQueue 根据配置创建任务队列。
func openTaskQueue(ctx context.Context, cfg config.TaskQueueConfig) (task.Queue, error) {
	switch cfg.Driver {
	case "redis":
		queue, err := task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: time.Duration(cfg.Redis.BlockWaitSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Prefetch:   cfg.RabbitMQ.Prefetch,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	default:
		return task.NewMemoryQueue(cfg.Buffer), nil
	}
}
