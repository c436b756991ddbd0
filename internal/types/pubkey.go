package types

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

// Pubkey 表示一个 32 字节的 Solana 账户标识（feed、lookup table、payer 等）。
type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Equals(other Pubkey) bool {
	return p == other
}

// ToSDK 转换为 solana-go-sdk 的 PublicKey（交易编译从这里进入 SDK 类型体系）。
func (p Pubkey) ToSDK() common.PublicKey {
	return common.PublicKeyFromBytes(p[:])
}

// Short 返回截断形式（前 4 + 后 4），用于日志展示。
func (p Pubkey) Short() string {
	s := p.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// TryPubkeyFromBase58 解析 base58 字符串为 Pubkey，失败时返回 error（用于不信任输入路径，如配置里的 feed 列表）
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != 32 {
		return Pubkey{}, fmt.Errorf("invalid pubkey length: got %d, want 32, input=%q", len(data), s)
	}
	var p Pubkey
	copy(p[:], data)
	return p, nil
}

func PubkeyFromBase58(s string) Pubkey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

func PubkeysFromBase58(strs []string) []Pubkey {
	result := make([]Pubkey, 0, len(strs))
	for _, s := range strs {
		result = append(result, PubkeyFromBase58(s))
	}
	return result
}

// PubkeyFromSDK 从 solana-go-sdk 的 PublicKey 转回本地类型。
func PubkeyFromSDK(k common.PublicKey) Pubkey {
	var p Pubkey
	copy(p[:], k.Bytes())
	return p
}
