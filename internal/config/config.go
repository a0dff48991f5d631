package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "OPENMCP_CONFIG"

// DefaultPath 为未设置环境变量时使用的配置文件。
var DefaultPath = filepath.Join("configs", "openswap.json")

// Config 描述了 OpenMCP-Swap 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	Cache     CacheConfig     `json:"cache"`
	Web3      Web3Config      `json:"web3"`
	Swap      SwapConfig      `json:"swap"`
	Wallet    WalletConfig    `json:"wallet"`
	Logging   logger.Config   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Alerting  AlertingConfig  `json:"alerting"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address                string `json:"address"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// StorageConfig 统一描述任务与兑换历史的存储后端。
type StorageConfig struct {
	TaskStore TaskStoreConfig `json:"task_store"`
	History   HistoryConfig   `json:"history"`
}

// TaskStoreConfig 支持内存与 MySQL 两种实现。
type TaskStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// ConnMaxLifetime 返回连接最大存活时间。
func (c TaskStoreConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

// ConnMaxIdleTime 返回连接最大空闲时间。
func (c TaskStoreConfig) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.ConnMaxIdleTimeSeconds) * time.Second
}

// HistoryConfig 描述兑换历史的持久化方式。driver 为空时沿用任务存储的设置。
type HistoryConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// TaskQueueConfig 描述任务队列驱动及其参数。
type TaskQueueConfig struct {
	Driver   string              `json:"driver"`
	Workers  int                 `json:"workers"`
	Buffer   int                 `json:"buffer"`
	Redis    RedisQueueConfig    `json:"redis"`
	RabbitMQ RabbitMQQueueConfig `json:"rabbitmq"`
}

// RedisQueueConfig 为 Redis 列表队列的连接参数。
type RedisQueueConfig struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	Queue            string `json:"queue"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQQueueConfig 为 RabbitMQ 队列的连接参数。
type RabbitMQQueueConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// CacheConfig 控制代币精度的 Redis 缓存。
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Prefix     string `json:"prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Web3Config 包含访问区块链节点所需的信息。
type Web3Config struct {
	ChainConfig  string `json:"chain_config"`
	DefaultChain string `json:"default_chain"`
	RPCURL       string `json:"rpc_url"`
}

// SwapConfig 为兑换引擎的合约地址与交易参数。
type SwapConfig struct {
	IndexChain        string      `json:"index_chain"`
	Router            string      `json:"router"`
	Quoter            string      `json:"quoter"`
	WETH              string      `json:"weth"`
	FeeTier           uint32      `json:"fee_tier"`
	TolerancePerMille uint32      `json:"tolerance_per_mille"`
	DeadlineSeconds   int         `json:"deadline_seconds"`
	ConfirmApproval   *bool       `json:"confirm_approval"`
	SellGasLimit      uint64      `json:"sell_gas_limit"`
	Index             IndexConfig `json:"index"`
}

// IndexConfig 为流动性索引 (DexScreener) 的访问参数。
type IndexConfig struct {
	BaseURL        string  `json:"base_url"`
	RatePerSecond  float64 `json:"rate_per_second"`
	Burst          int     `json:"burst"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// WalletConfig 描述签名钱包的来源。私钥与口令只从环境变量读取。
type WalletConfig struct {
	PrivateKeyEnv  string `json:"private_key_env"`
	KeystoreDir    string `json:"keystore_dir"`
	PassphraseEnv  string `json:"passphrase_env"`
	DefaultAddress string `json:"default_address"`
}

// MetricsConfig 控制 Prometheus 指标暴露。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AlertingConfig 配置兑换失败告警的 webhook。
type AlertingConfig struct {
	SlackWebhookURL    string `json:"slack_webhook_url"`
	SlackChannel       string `json:"slack_channel"`
	DingTalkWebhookURL string `json:"dingtalk_webhook_url"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// ResolvePath 返回环境变量或默认的配置文件路径。
func ResolvePath() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	return DefaultPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回未读取任何文件时的配置，路径相对于 baseDir。
func Default(baseDir string) *Config {
	var cfg Config
	cfg.applyDefaults(baseDir)
	return &cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}

	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}
	if c.Storage.History.Driver == "" {
		c.Storage.History.Driver = c.Storage.TaskStore.Driver
	}
	if c.Storage.History.DSN == "" {
		c.Storage.History.DSN = c.Storage.TaskStore.DSN
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 2
	}
	if c.TaskQueue.Buffer <= 0 {
		c.TaskQueue.Buffer = 1024
	}
	if c.TaskQueue.Redis.Queue == "" {
		c.TaskQueue.Redis.Queue = "openswap:tasks"
	}
	if c.TaskQueue.Redis.BlockWaitSeconds <= 0 {
		c.TaskQueue.Redis.BlockWaitSeconds = 5
	}
	if c.TaskQueue.RabbitMQ.Queue == "" {
		c.TaskQueue.RabbitMQ.Queue = "openswap.tasks"
	}
	if c.TaskQueue.RabbitMQ.Prefetch <= 0 {
		c.TaskQueue.RabbitMQ.Prefetch = 1
	}

	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "openswap:decimals:"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 24 * 60 * 60
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	defaults := swap.DefaultConfig()
	if c.Swap.IndexChain == "" {
		c.Swap.IndexChain = defaults.IndexChain
	}
	if c.Swap.Router == "" {
		c.Swap.Router = defaults.Router.Hex()
	}
	if c.Swap.Quoter == "" {
		c.Swap.Quoter = defaults.Quoter.Hex()
	}
	if c.Swap.WETH == "" {
		c.Swap.WETH = defaults.WETH.Hex()
	}
	if c.Swap.FeeTier == 0 {
		c.Swap.FeeTier = uint32(defaults.FeeTier)
	}
	if c.Swap.TolerancePerMille == 0 {
		c.Swap.TolerancePerMille = defaults.TolerancePerMille
	}
	if c.Swap.DeadlineSeconds <= 0 {
		c.Swap.DeadlineSeconds = int(defaults.Deadline / time.Second)
	}
	if c.Swap.SellGasLimit == 0 {
		c.Swap.SellGasLimit = defaults.SellGasLimit
	}
	if c.Swap.Index.RatePerSecond <= 0 {
		c.Swap.Index.RatePerSecond = 5
	}
	if c.Swap.Index.Burst <= 0 {
		c.Swap.Index.Burst = 1
	}
	if c.Swap.Index.TimeoutSeconds <= 0 {
		c.Swap.Index.TimeoutSeconds = 10
	}
	if c.Swap.ConfirmApproval == nil {
		confirm := true
		c.Swap.ConfirmApproval = &confirm
	}

	if c.Wallet.PrivateKeyEnv == "" {
		c.Wallet.PrivateKeyEnv = "OPENSWAP_PRIVATE_KEY"
	}
	if c.Wallet.PassphraseEnv == "" {
		c.Wallet.PassphraseEnv = "OPENSWAP_KEYSTORE_PASSPHRASE"
	}
	if c.Wallet.KeystoreDir != "" && !filepath.IsAbs(c.Wallet.KeystoreDir) {
		c.Wallet.KeystoreDir = filepath.Join(baseDir, c.Wallet.KeystoreDir)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}

// Validate 检查配置中无法通过默认值修复的错误。
func (c *Config) Validate() error {
	if _, err := c.Swap.Engine(); err != nil {
		return err
	}
	switch c.Storage.TaskStore.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("未知的任务存储驱动: %s", c.Storage.TaskStore.Driver)
	}
	if c.Storage.TaskStore.Driver == "mysql" && strings.TrimSpace(c.Storage.TaskStore.DSN) == "" {
		return errors.New("mysql 任务存储需要配置 dsn")
	}
	switch c.Storage.History.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("未知的历史存储驱动: %s", c.Storage.History.Driver)
	}
	switch c.TaskQueue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("未知的队列驱动: %s", c.TaskQueue.Driver)
	}
	return nil
}

// Engine 把兑换配置转换为兑换引擎参数。
func (s SwapConfig) Engine() (swap.Config, error) {
	cfg := swap.Config{
		IndexChain:        s.IndexChain,
		FeeTier:           swap.FeeTier(s.FeeTier),
		TolerancePerMille: s.TolerancePerMille,
		Deadline:          time.Duration(s.DeadlineSeconds) * time.Second,
		SellGasLimit:      s.SellGasLimit,
	}
	for name, pair := range map[string]struct {
		raw  string
		into *common.Address
	}{
		"router": {s.Router, &cfg.Router},
		"quoter": {s.Quoter, &cfg.Quoter},
		"weth":   {s.WETH, &cfg.WETH},
	} {
		if !common.IsHexAddress(pair.raw) {
			return swap.Config{}, fmt.Errorf("swap.%s 不是合法地址: %q", name, pair.raw)
		}
		*pair.into = common.HexToAddress(pair.raw)
	}
	if s.TolerancePerMille == 0 || s.TolerancePerMille >= 1000 {
		return swap.Config{}, fmt.Errorf("swap.tolerance_per_mille 必须在 (0, 1000) 区间: %d", s.TolerancePerMille)
	}
	if err := cfg.Validate(); err != nil {
		return swap.Config{}, err
	}
	return cfg, nil
}

// ShouldConfirmApproval 判断卖出前是否等待授权交易上链。
func (s SwapConfig) ShouldConfirmApproval() bool {
	return s.ConfirmApproval == nil || *s.ConfirmApproval
}

// IndexTimeout 返回流动性索引的请求超时。
func (i IndexConfig) IndexTimeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}
