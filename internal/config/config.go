package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"feed-cranker-sol/internal/consts"
	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/types"

	"github.com/zeromicro/go-zero/core/conf"
	"gopkg.in/yaml.v3"
)

// 环境变量覆盖项（沿用部署脚本里已有的变量名）。
// 优先级：环境变量 > 配置文件 > 内置默认值，三者都缺省不视为错误。
const (
	EnvRpcUrl      = "RPC_URL"
	EnvGatewayUrl  = "SWB_GATEWAY"
	EnvKeypairPath = "KEYPAIR"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径），为空只打 stdout
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RpcConfig 表示 Solana RPC 接入配置
type RpcConfig struct {
	Endpoint        string `yaml:"endpoint"`          // RPC 地址，可被 RPC_URL 覆盖
	RequestTimeoutS int    `yaml:"request_timeout_s"` // 单次 RPC 请求超时（秒）
	ConfirmTimeoutS int    `yaml:"confirm_timeout_s"` // 等待交易确认的总超时（秒）
	ConfirmPollMs   int    `yaml:"confirm_poll_ms"`   // 确认状态轮询间隔（毫秒）
}

func (c *RpcConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

func (c *RpcConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutS) * time.Second
}

func (c *RpcConfig) ConfirmPoll() time.Duration {
	return time.Duration(c.ConfirmPollMs) * time.Millisecond
}

// RelayConfig 表示 oracle 网关（更新指令来源）配置
type RelayConfig struct {
	Endpoint        string `yaml:"endpoint"`          // 网关地址，可被 SWB_GATEWAY 覆盖
	RequestTimeoutS int    `yaml:"request_timeout_s"` // 单个 feed 的更新指令请求超时（秒）
}

func (c *RelayConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// PayerConfig 表示签名账户配置
type PayerConfig struct {
	KeypairPath string `yaml:"keypair_path"` // Solana CLI 格式 keypair 文件路径，可被 KEYPAIR 覆盖
}

// CrankConfig 表示批量刷新策略参数
type CrankConfig struct {
	NumSignatures  int    `yaml:"num_signatures"`  // 每个 feed 要求的 oracle 签名数，信任参数而非性能参数
	CollectWorkers int    `yaml:"collect_workers"` // 并发拉取更新指令的 worker 数，1 表示顺序执行
	PerFeedCU      uint32 `yaml:"per_feed_cu"`     // 单个 feed 的计算单元预估
	MinCU          uint32 `yaml:"min_cu"`          // 计算单元下限
	MaxCU          uint32 `yaml:"max_cu"`          // 计算单元上限（链上单笔硬顶 1.4M）
	CUPriceMicro   uint64 `yaml:"cu_price_micro"`  // 每计算单元出价（micro-lamports）
}

// ReportConfig 表示 crank 结果上报配置（Kafka，可选）
type ReportConfig struct {
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔；为空时不上报
	Topic     string `yaml:"topic"`      // 上报 topic
	TimeoutMs int    `yaml:"timeout_ms"` // 单条消息发送到 Kafka 并等待 ack 的超时时间（毫秒）
}

func (c *ReportConfig) Enabled() bool {
	return c.Brokers != ""
}

func (c *ReportConfig) DeliverTimeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// CrankerConfig 是主配置结构体，驱动一次批量 feed 刷新
type CrankerConfig struct {
	LogConf    LogConfig    `yaml:"logger"` // 日志配置
	RpcConf    RpcConfig    `yaml:"rpc"`    // Solana RPC 配置
	RelayConf  RelayConfig  `yaml:"relay"`  // oracle 网关配置
	PayerConf  PayerConfig  `yaml:"payer"`  // 签名账户配置
	CrankConf  CrankConfig  `yaml:"crank"`  // 批量刷新策略
	ReportConf ReportConfig `yaml:"report"` // 结果上报配置（可选）

	RedisAddr string `yaml:"redis_addr"` // crank 记录存储地址（可选，为空不启用）

	Feeds []string `yaml:"feeds"` // 要刷新的 feed 账户（base58），顺序即交易内指令顺序
}

// Load 读取配置文件并应用环境变量覆盖与默认值。
// 文件不存在不报错，全部走默认值加环境变量。
func Load(path string) (CrankerConfig, error) {
	var c CrankerConfig
	if _, err := os.Stat(path); err == nil {
		if err := conf.Load(path, &c, conf.UseEnv()); err != nil {
			return c, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	c.FillDefaults()
	return c, nil
}

// FillDefaults 应用环境变量覆盖与内置默认值。
func (c *CrankerConfig) FillDefaults() {
	if v := os.Getenv(EnvRpcUrl); v != "" {
		c.RpcConf.Endpoint = v
	}
	if c.RpcConf.Endpoint == "" {
		c.RpcConf.Endpoint = consts.DefaultRpcEndpoint
	}
	if c.RpcConf.RequestTimeoutS <= 0 {
		c.RpcConf.RequestTimeoutS = 10
	}
	if c.RpcConf.ConfirmTimeoutS <= 0 {
		c.RpcConf.ConfirmTimeoutS = 90
	}
	if c.RpcConf.ConfirmPollMs <= 0 {
		c.RpcConf.ConfirmPollMs = 2000
	}

	if v := os.Getenv(EnvGatewayUrl); v != "" {
		c.RelayConf.Endpoint = v
	}
	if c.RelayConf.Endpoint == "" {
		c.RelayConf.Endpoint = consts.DefaultGatewayUrl
	}
	if c.RelayConf.RequestTimeoutS <= 0 {
		// oracle 侧要聚合多方签名，比普通 RPC 慢
		c.RelayConf.RequestTimeoutS = 20
	}

	if v := os.Getenv(EnvKeypairPath); v != "" {
		c.PayerConf.KeypairPath = v
	}
	if c.PayerConf.KeypairPath == "" {
		home := os.Getenv("HOME")
		if home == "" {
			home = "."
		}
		c.PayerConf.KeypairPath = filepath.Join(home, "keys", "staging-deploy.json")
	}

	if c.CrankConf.NumSignatures <= 0 {
		c.CrankConf.NumSignatures = 1
	}
	if c.CrankConf.CollectWorkers <= 0 {
		c.CrankConf.CollectWorkers = 4
	}
	if c.CrankConf.PerFeedCU == 0 {
		c.CrankConf.PerFeedCU = 300_000
	}
	if c.CrankConf.MinCU == 0 {
		c.CrankConf.MinCU = 300_000
	}
	if c.CrankConf.MaxCU == 0 {
		c.CrankConf.MaxCU = 1_400_000
	}
	if c.CrankConf.CUPriceMicro == 0 {
		c.CrankConf.CUPriceMicro = 5_000
	}

	if c.ReportConf.Topic == "" {
		c.ReportConf.Topic = "oracle-crank-report"
	}
	if c.ReportConf.TimeoutMs <= 0 {
		c.ReportConf.TimeoutMs = 5000
	}
}

// Validate 校验配置。feed 列表为空或含非法地址属于配置错误，在发起任何网络请求前报出。
func (c *CrankerConfig) Validate() error {
	if _, err := c.FeedPubkeys(); err != nil {
		return err
	}
	if c.CrankConf.MinCU > c.CrankConf.MaxCU {
		return fmt.Errorf("invalid compute budget bounds: min_cu %d > max_cu %d", c.CrankConf.MinCU, c.CrankConf.MaxCU)
	}
	return nil
}

// FeedPubkeys 解析配置的 feed 列表。
func (c *CrankerConfig) FeedPubkeys() ([]types.Pubkey, error) {
	if len(c.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}
	feeds := make([]types.Pubkey, 0, len(c.Feeds))
	for _, s := range c.Feeds {
		p, err := types.TryPubkeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid feed pubkey %q: %w", s, err)
		}
		feeds = append(feeds, p)
	}
	return feeds, nil
}

// String 渲染生效配置（YAML），用于启动时排查。
func (c *CrankerConfig) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(out)
}
