package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"feed-cranker-sol/internal/pkg/logger"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
)

// ErrBlockhashExpired 表示链上高度已超过 lastValidBlockHeight 而交易仍未确认。
// 此时交易不会再落地，调用方可安全地用新 blockhash 重建后重发。
var ErrBlockhashExpired = errors.New("blockhash expired before confirmation")

// Client 封装本服务用到的 Solana RPC 调用。
type Client struct {
	rpc            *client.Client // Solana RPC客户端
	requestTimeout time.Duration  // 单次 RPC 请求超时
	confirmPoll    time.Duration  // 确认状态轮询间隔
}

func NewClient(endpoint string, requestTimeout, confirmPoll time.Duration) *Client {
	return &Client{
		rpc:            client.NewClient(endpoint),
		requestTimeout: requestTimeout,
		confirmPoll:    confirmPoll,
	}
}

// Blockhash 是一条可用于组交易的 blockhash 及其有效期。
type Blockhash struct {
	Hash                 string // base58 编码
	LastValidBlockHeight uint64 // 超过该高度后交易必然不会落地
}

// SimulationResult 是交易模拟执行的结果。Err 非 nil 表示该交易上链执行会失败。
type SimulationResult struct {
	Err           any
	Logs          []string
	UnitsConsumed *uint64
}

// LatestBlockhash 以 confirmed 级别获取最新 blockhash 及其有效期。
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.rpc.RpcClient.GetLatestBlockhashWithConfig(ctx, rpc.GetLatestBlockhashConfig{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return Blockhash{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}
	if resp.Error != nil {
		return Blockhash{}, fmt.Errorf("getLatestBlockhash rpc error: code=%d message=%s", resp.Error.Code, resp.Error.Message)
	}
	return Blockhash{
		Hash:                 resp.Result.Value.Blockhash,
		LastValidBlockHeight: resp.Result.Value.LatestValidBlockHeight,
	}, nil
}

// SimulateRaw 模拟执行已签名交易。
// sigVerify 开启且不替换 blockhash，保证模拟对象与即将发送的字节完全一致；
// processed 级别让模拟站在最新状态上，尽早暴露 oracle 数据过期类错误。
func (c *Client) SimulateRaw(ctx context.Context, rawTx []byte) (*SimulationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.rpc.RpcClient.SimulateTransactionWithConfig(ctx, base64.StdEncoding.EncodeToString(rawTx), rpc.SimulateTransactionConfig{
		SigVerify:              true,
		Commitment:             rpc.CommitmentProcessed,
		Encoding:               rpc.SimulateTransactionEncodingBase64,
		ReplaceRecentBlockhash: false,
	})
	if err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("simulateTransaction rpc error: code=%d message=%s", resp.Error.Code, resp.Error.Message)
	}

	value := resp.Result.Value
	return &SimulationResult{
		Err:           value.Err,
		Logs:          value.Logs,
		UnitsConsumed: value.UnitConsumed,
	}, nil
}

// SendRaw 发送已签名交易并返回签名。跳过预检，上游已经做过一次完整模拟。
func (c *Client) SendRaw(ctx context.Context, rawTx []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.rpc.RpcClient.SendTransactionWithConfig(ctx, base64.StdEncoding.EncodeToString(rawTx), rpc.SendTransactionConfig{
		SkipPreflight: true,
		Encoding:      rpc.SendTransactionConfigEncodingBase64,
	})
	if err != nil {
		return "", fmt.Errorf("sendTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction rpc error: code=%d message=%s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// BlockHeight 查询当前链上高度（confirmed）。
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.rpc.RpcClient.GetBlockHeightWithConfig(ctx, rpc.GetBlockHeightConfig{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return 0, fmt.Errorf("getBlockHeight failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getBlockHeight rpc error: code=%d message=%s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// AwaitConfirmation 轮询签名状态直到交易达到 confirmed / finalized。
// 交易在链上执行失败时返回带错误详情的 error；
// 高度超过 lastValidBlockHeight 仍未确认时返回 ErrBlockhashExpired。
func (c *Client) AwaitConfirmation(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		status, err := c.signatureStatus(ctx, signature)
		if err != nil {
			// 单次查询失败只告警，下一轮继续
			logger.Warnf("[ChainClient] 查询签名状态失败: sig=%s err=%v", signature, err)
		} else if status != nil {
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", signature, status.Err)
			}
			if status.ConfirmationStatus != nil {
				switch *status.ConfirmationStatus {
				case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
					return nil
				}
			}
		}

		// 先判状态再判高度，避免恰好确认的交易被误报过期
		height, err := c.BlockHeight(ctx)
		if err != nil {
			logger.Warnf("[ChainClient] 查询当前高度失败: %v", err)
		} else if height > lastValidBlockHeight {
			return ErrBlockhashExpired
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait aborted: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) signatureStatus(ctx context.Context, signature string) (*rpc.SignatureStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return c.rpc.GetSignatureStatus(ctx, signature)
}
