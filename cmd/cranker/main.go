package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"feed-cranker-sol/internal/config"
	"feed-cranker-sol/internal/logic/cranker"
	"feed-cranker-sol/internal/logic/cranklog"
	"feed-cranker-sol/internal/mq"
	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/svc"
	"feed-cranker-sol/internal/types"

	"github.com/fatih/color"
)

var (
	configFile = flag.String("f", "etc/cranker.yaml", "the config file")
	feedList   = flag.String("feeds", "", "comma-separated feed pubkeys, overrides the config file")
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	flag.Parse()

	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// 1. 加载配置，命令行 feed 列表优先于配置文件
	c, err := config.Load(*configFile)
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		return err
	}
	if *feedList != "" {
		c.Feeds = strings.Split(*feedList, ",")
	}
	if err := c.Validate(); err != nil {
		logger.Errorf("配置校验失败: %v", err)
		return err
	}

	// 2. 初始化日志
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		logger.Errorf("初始化日志失败: %v", err)
		return err
	}
	defer logger.Sync()
	logger.Infof("生效配置:\n%s", c.String())

	feeds, err := c.FeedPubkeys()
	if err != nil {
		return err
	}

	// 3. 构建服务上下文
	sc, err := svc.NewServiceContext(c)
	if err != nil {
		return err
	}
	defer sc.Close()

	// 4. 组装流水线
	collector := cranker.NewCollector(sc.Relay, sc.Payer.PublicKey, c.CrankConf.NumSignatures, c.CrankConf.CollectWorkers)
	pipeline := cranker.NewPipeline(collector, sc.Chain, sc.Payer, cranker.BudgetPolicy{
		PerFeedCU:  c.CrankConf.PerFeedCU,
		MinCU:      c.CrankConf.MinCU,
		MaxCU:      c.CrankConf.MaxCU,
		PriceMicro: c.CrankConf.CUPriceMicro,
	}, c.RpcConf.ConfirmTimeout())

	// 5. 响应 SIGINT/SIGTERM，中断收集或确认等待
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 有 crank 记录时打印各 feed 上次成功时间，仅做观测不影响本次执行
	if sc.CrankLog != nil {
		logLastCranks(ctx, sc.CrankLog, feeds)
	}

	result, err := pipeline.Run(ctx, feeds)
	if err != nil {
		var simErr *cranker.SimulationError
		if errors.As(err, &simErr) {
			color.Red("❌ simulation failed: %v", simErr.Detail)
			printLogs(simErr.Logs)
		} else {
			color.Red("❌ crank failed: %v", err)
		}
		logger.Errorf("crank 失败: %v", err)
		return err
	}

	// 6. 成功输出，附模拟日志便于核对 feed 更新情况
	color.Green("✅ Cranked %d feeds in one transaction -> %s", len(result.Feeds), result.Signature)
	for _, feed := range result.Feeds {
		color.Green("   · %s", feed)
	}
	if result.UnitsConsumed != nil {
		color.Green("   consumed %d / %d compute units in %v", *result.UnitsConsumed, result.UnitLimit, result.Duration.Round(time.Millisecond))
	}
	printLogs(result.SimLogs)
	logger.Infof("crank 完成: sig=%s feeds=%d 耗时=%v", result.Signature, len(result.Feeds), result.Duration)

	// 7. 上报与落记录，失败只告警不影响退出码
	now := time.Now()
	if sc.Reporter != nil {
		if err := sc.Reporter.Report(ctx, mq.NewCrankReport(result, now)); err != nil {
			logger.Warnf("crank 结果上报失败: %v", err)
		}
	}
	if sc.CrankLog != nil {
		if err := sc.CrankLog.MarkCranked(ctx, result.Feeds, result.Signature, now); err != nil {
			logger.Warnf("crank 记录写入失败: %v", err)
		}
	}
	return nil
}

func logLastCranks(ctx context.Context, store *cranklog.Store, feeds []types.Pubkey) {
	for _, feed := range feeds {
		record, err := store.LastCrank(ctx, feed)
		if err != nil {
			// Redis 不可用时只提示一次，不逐 feed 刷告警
			logger.Warnf("查询 crank 记录失败: %v", err)
			return
		}
		if record == nil {
			continue
		}
		age := time.Since(time.Unix(record.CrankedAt, 0)).Round(time.Second)
		logger.Infof("feed %s 上次成功 crank: %v 前 sig=%s", feed.Short(), age, record.Signature)
	}
}

func printLogs(logs []string) {
	if len(logs) == 0 {
		return
	}
	ruler := strings.Repeat("-", 72)
	fmt.Println(ruler)
	for _, line := range logs {
		fmt.Println(line)
	}
	fmt.Println(ruler)
}
