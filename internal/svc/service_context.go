package svc

import (
	"feed-cranker-sol/internal/chain"
	"feed-cranker-sol/internal/config"
	"feed-cranker-sol/internal/keys"
	"feed-cranker-sol/internal/logic/cranklog"
	"feed-cranker-sol/internal/mq"
	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/relay"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 包含一次批量 crank 所需的全部资源
type ServiceContext struct {
	Config   config.CrankerConfig
	Payer    soltypes.Account
	Chain    *chain.Client
	Relay    *relay.Client
	Reporter *mq.Reporter    // 可选，未配置 Kafka 时为 nil
	CrankLog *cranklog.Store // 可选，未配置 Redis 时为 nil
}

// NewServiceContext 创建服务上下文
func NewServiceContext(c config.CrankerConfig) (*ServiceContext, error) {
	// 1. 加载付费账户
	payer, err := keys.LoadKeypairFile(c.PayerConf.KeypairPath)
	if err != nil {
		logger.Errorf("加载 keypair 失败: %v", err)
		return nil, err
	}
	logger.Infof("payer 账户: %s", payer.PublicKey.ToBase58())

	// 2. 初始化链上客户端与网关客户端，网关缺地址表时回链解析
	chainClient := chain.NewClient(c.RpcConf.Endpoint, c.RpcConf.RequestTimeout(), c.RpcConf.ConfirmPoll())
	relayClient := relay.NewClient(c.RelayConf.Endpoint, c.RelayConf.RequestTimeout(), chainClient)

	sc := &ServiceContext{
		Config: c,
		Payer:  payer,
		Chain:  chainClient,
		Relay:  relayClient,
	}

	// 3. Kafka 上报（可选）
	if c.ReportConf.Enabled() {
		reporter, err := mq.NewReporter(c.ReportConf.Brokers, c.ReportConf.Topic, c.ReportConf.DeliverTimeout())
		if err != nil {
			logger.Errorf("Kafka reporter 初始化失败: %v", err)
			return nil, err
		}
		sc.Reporter = reporter
	}

	// 4. Redis crank 记录（可选）
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: c.RedisAddr, // eg: "127.0.0.1:6379"
		})
		sc.CrankLog = cranklog.NewStore(rdb)
	}

	logger.Infof("服务上下文初始化完成")
	return sc, nil
}

// Close 关闭服务上下文中的资源
func (sc *ServiceContext) Close() {
	if sc.Reporter != nil {
		sc.Reporter.Close()
	}
}
