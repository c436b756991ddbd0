package consts

import (
	"feed-cranker-sol/internal/types"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对等场景。
var (
	ComputeBudgetProgram      types.Pubkey
	AddressLookupTableProgram types.Pubkey
)

// init 自动将 base58 字符串地址转换为 types.Pubkey
func init() {
	ComputeBudgetProgram = types.PubkeyFromBase58(ComputeBudgetProgramIdStr)
	AddressLookupTableProgram = types.PubkeyFromBase58(AddressLookupTableProgramIdStr)
}
