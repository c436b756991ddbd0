package cranker

import (
	"github.com/blocto/solana-go-sdk/program/compute_budget"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// BudgetPolicy 决定批量交易的计算预算。
// 预算按 feed 数线性放大并夹在 [MinCU, MaxCU] 区间内，出价固定。
type BudgetPolicy struct {
	PerFeedCU  uint32 // 单个 feed 的计算单元预估
	MinCU      uint32 // 计算单元下限
	MaxCU      uint32 // 计算单元上限
	PriceMicro uint64 // 每计算单元出价（micro-lamports）
}

// UnitLimit 计算 feedCount 个 feed 的计算单元上限。
func (p BudgetPolicy) UnitLimit(feedCount int) uint32 {
	// 乘法在 uint64 上做，feed 数再大也不会回绕
	units := uint64(feedCount) * uint64(p.PerFeedCU)
	if units < uint64(p.MinCU) {
		return p.MinCU
	}
	if units > uint64(p.MaxCU) {
		return p.MaxCU
	}
	return uint32(units)
}

// Instructions 生成两条预算指令（unit limit 与 unit price），固定置于交易指令序列最前。
func (p BudgetPolicy) Instructions(feedCount int) []soltypes.Instruction {
	return []soltypes.Instruction{
		compute_budget.SetComputeUnitLimit(compute_budget.SetComputeUnitLimitParam{
			Units: p.UnitLimit(feedCount),
		}),
		compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{
			MicroLamports: p.PriceMicro,
		}),
	}
}
