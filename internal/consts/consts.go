package consts

const (
	// Solana 单笔交易的硬性限制。
	// MaxTransactionSize: IPv6 MTU 1280 - 40 字节 IPv6 头 - 8 字节分片头。
	// MaxTransactionKeys: 账户引用按 u8 索引（静态账户表 + lookup table 合并计数）。
	MaxTransactionSize = 1232
	MaxTransactionKeys = 256

	//  Programs
	ComputeBudgetProgramIdStr      = "ComputeBudget111111111111111111111111111111"
	AddressLookupTableProgramIdStr = "AddressLookupTab1e1111111111111111111111111"

	// 默认外部端点（可被配置文件与环境变量覆盖，见 internal/config）
	DefaultRpcEndpoint = "https://api.mainnet-beta.solana.com"
	DefaultGatewayUrl  = "https://92.222.100.182.xip.switchboard-oracles.xyz/mainnet"
)
