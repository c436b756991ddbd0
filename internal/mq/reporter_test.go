package mq

import (
	"encoding/json"
	"testing"
	"time"

	"feed-cranker-sol/internal/logic/cranker"
	"feed-cranker-sol/internal/types"

	"github.com/stretchr/testify/assert"
)

// 测试流水线结果到上报消息的字段映射
func TestNewCrankReport(t *testing.T) {
	units := uint64(515_000)
	feedA := types.PubkeyFromBase58("So11111111111111111111111111111111111111112")
	feedB := types.PubkeyFromBase58("ComputeBudget111111111111111111111111111111")

	result := &cranker.Result{
		Signature:     "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		Feeds:         []types.Pubkey{feedA, feedB},
		UnitLimit:     600_000,
		UnitsConsumed: &units,
		SimLogs:       []string{"Program log: ok"},
		Duration:      1500 * time.Millisecond,
	}

	report := NewCrankReport(result, time.Unix(1_700_000_000, 0))

	assert.Equal(t, "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7", report.Signature)
	assert.Equal(t, []string{feedA.String(), feedB.String()}, report.Feeds)
	assert.Equal(t, uint32(600_000), report.UnitLimit)
	assert.Equal(t, &units, report.UnitsConsumed)
	assert.Equal(t, int64(1500), report.DurationMs)
	assert.Equal(t, int64(1_700_000_000), report.CrankedAt)

	// 下游按字段名消费，键名不能动
	payload, err := json.Marshal(report)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), `"signature"`)
	assert.Contains(t, string(payload), `"cranked_at"`)
}

// 测试模拟未返回消耗时 units_consumed 整体省略
func TestNewCrankReport_NoUnitsConsumed(t *testing.T) {
	result := &cranker.Result{
		Signature: "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		Feeds:     []types.Pubkey{types.PubkeyFromBase58("So11111111111111111111111111111111111111112")},
		UnitLimit: 300_000,
	}

	report := NewCrankReport(result, time.Now())
	payload, err := json.Marshal(report)
	assert.NoError(t, err)
	assert.NotContains(t, string(payload), "units_consumed")
}
