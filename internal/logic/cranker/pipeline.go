package cranker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feed-cranker-sol/internal/chain"
	"feed-cranker-sol/internal/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/zeromicro/go-zero/core/logx"
)

// Ledger 是流水线依赖的链上操作集合，由 chain.Client 实现。
type Ledger interface {
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
	SimulateRaw(ctx context.Context, rawTx []byte) (*chain.SimulationResult, error)
	SendRaw(ctx context.Context, rawTx []byte) (string, error)
	AwaitConfirmation(ctx context.Context, signature string, lastValidBlockHeight uint64) error
}

// Result 是一次批量 crank 的结果。
type Result struct {
	Signature     string         // 已确认交易的签名
	Feeds         []types.Pubkey // 本批刷新的 feed
	UnitLimit     uint32         // 预算的计算单元上限
	UnitsConsumed *uint64        // 模拟给出的实际消耗，RPC 可能不返回
	SimLogs       []string       // 模拟产生的链上日志
	Duration      time.Duration
}

// Pipeline 串起一次批量 crank：收集指令、合并表、定预算、组交易、模拟、发送、确认。
type Pipeline struct {
	collector      *Collector
	ledger         Ledger
	payer          soltypes.Account
	budget         BudgetPolicy
	confirmTimeout time.Duration
	logx.Logger
}

func NewPipeline(collector *Collector, ledger Ledger, payer soltypes.Account, budget BudgetPolicy, confirmTimeout time.Duration) *Pipeline {
	return &Pipeline{
		collector:      collector,
		ledger:         ledger,
		payer:          payer,
		budget:         budget,
		confirmTimeout: confirmTimeout,
		Logger:         logx.WithContext(context.Background()).WithFields(logx.Field("service", "cranker")),
	}
}

// Run 执行一次批量 crank。整批进一笔交易，任一环节失败则整体失败，不做部分提交。
func (p *Pipeline) Run(ctx context.Context, feeds []types.Pubkey) (*Result, error) {
	if len(feeds) == 0 {
		return nil, errors.New("empty feed batch")
	}
	startTime := time.Now()

	// 1. 收集每个 feed 的更新指令
	updates, err := p.collector.Collect(ctx, feeds)
	if err != nil {
		return nil, err
	}
	p.Infof("更新指令收集完成: feeds=%d 耗时=%v", len(updates), time.Since(startTime))

	// 2. 合并 lookup table，首见生效
	tables := MergeLookupTables(updates)

	// 3. 计算预算
	unitLimit := p.budget.UnitLimit(len(updates))
	p.Infof("计算预算: unit_limit=%d price_micro=%d lookup_tables=%d", unitLimit, p.budget.PriceMicro, len(tables))

	// 4. 组交易前才取 blockhash，给确认窗口留足余量
	blockhash, err := p.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	// 5. 组 v0 交易并签名
	signed, err := Assemble(TransactionPlan{
		Payer:        p.payer,
		Blockhash:    blockhash,
		Budget:       p.budget.Instructions(len(updates)),
		Updates:      updates,
		LookupTables: tables,
	})
	if err != nil {
		return nil, err
	}
	p.Infof("交易已组装: feeds=%d size=%d blockhash=%s", len(updates), len(signed.Raw), blockhash.Hash)

	// 6. 模拟执行，失败则不发送
	sim, err := p.ledger.SimulateRaw(ctx, signed.Raw)
	if err != nil {
		return nil, err
	}
	if sim.Err != nil {
		return nil, &SimulationError{Detail: sim.Err, Logs: sim.Logs}
	}

	// 7. 发送并等待确认
	signature, err := p.ledger.SendRaw(ctx, signed.Raw)
	if err != nil {
		return nil, err
	}
	p.Infof("交易已发送: sig=%s 等待确认", signature)

	confirmCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()
	if err := p.ledger.AwaitConfirmation(confirmCtx, signature, signed.Blockhash.LastValidBlockHeight); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, err)
	}

	return &Result{
		Signature:     signature,
		Feeds:         feeds,
		UnitLimit:     unitLimit,
		UnitsConsumed: sim.UnitsConsumed,
		SimLogs:       sim.Logs,
		Duration:      time.Since(startTime),
	}, nil
}
