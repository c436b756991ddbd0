package cranker

import (
	"encoding/binary"
	"testing"

	"feed-cranker-sol/internal/consts"

	"github.com/stretchr/testify/assert"
)

// 与生产默认一致的预算参数
var testBudget = BudgetPolicy{
	PerFeedCU:  300_000,
	MinCU:      300_000,
	MaxCU:      1_400_000,
	PriceMicro: 5_000,
}

// 测试预算随 feed 数线性放大并夹在上下限内
func TestBudgetUnitLimit(t *testing.T) {
	cases := []struct {
		name  string
		feeds int
		want  uint32
	}{
		{"zero feeds clamps to min", 0, 300_000},
		{"single feed", 1, 300_000},
		{"three feeds", 3, 900_000},
		{"four feeds", 4, 1_200_000},
		{"five feeds clamps to max", 5, 1_400_000},
		{"huge batch saturates at max", 100_000, 1_400_000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, testBudget.UnitLimit(c.feeds))
		})
	}
}

// 测试预算指令编码：limit 指令 5 字节（tag=2），price 指令 9 字节（tag=3）
func TestBudgetInstructions(t *testing.T) {
	ixs := testBudget.Instructions(3)
	assert.Len(t, ixs, 2)

	limit := ixs[0]
	assert.Equal(t, consts.ComputeBudgetProgram.ToSDK(), limit.ProgramID)
	assert.Empty(t, limit.Accounts)
	assert.Len(t, limit.Data, 5)
	assert.Equal(t, byte(2), limit.Data[0])
	assert.Equal(t, uint32(900_000), binary.LittleEndian.Uint32(limit.Data[1:5]))

	price := ixs[1]
	assert.Equal(t, consts.ComputeBudgetProgram.ToSDK(), price.ProgramID)
	assert.Empty(t, price.Accounts)
	assert.Len(t, price.Data, 9)
	assert.Equal(t, byte(3), price.Data[0])
	assert.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(price.Data[1:9]))
}
