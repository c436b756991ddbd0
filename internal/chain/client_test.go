package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSig = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

// rpcError 让 handler 能返回 JSON-RPC 错误体
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// 极简 JSON-RPC 假节点，按 method 分发，忽略 params
type fakeRpcNode struct {
	*httptest.Server
	handlers map[string]func() any
}

func newFakeRpcNode() *fakeRpcNode {
	node := &fakeRpcNode{handlers: map[string]func() any{}}
	node.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Id     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler, ok := node.handlers[req.Method]
		if !ok {
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
			return
		}

		body := map[string]any{"jsonrpc": "2.0", "id": req.Id}
		result := handler()
		if e, isErr := result.(rpcError); isErr {
			body["error"] = e
		} else {
			body["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	return node
}

func (n *fakeRpcNode) handle(method string, fn func() any) {
	n.handlers[method] = fn
}

func newNodeClient(node *fakeRpcNode) *Client {
	return NewClient(node.URL, time.Second, 10*time.Millisecond)
}

// 测试 blockhash 与有效期的字段映射
func TestLatestBlockhash(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("getLatestBlockhash", func() any {
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value": map[string]any{
				"blockhash":            "GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi",
				"lastValidBlockHeight": 12345,
			},
		}
	})

	got, err := newNodeClient(node).LatestBlockhash(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi", got.Hash)
	assert.Equal(t, uint64(12345), got.LastValidBlockHeight)
}

// 测试模拟结果的字段映射
func TestSimulateRaw(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("simulateTransaction", func() any {
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value": map[string]any{
				"err":           nil,
				"logs":          []string{"Program log: feed updated"},
				"unitsConsumed": 321_000,
			},
		}
	})

	sim, err := newNodeClient(node).SimulateRaw(context.Background(), []byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Nil(t, sim.Err)
	assert.Equal(t, []string{"Program log: feed updated"}, sim.Logs)
	assert.Equal(t, uint64(321_000), *sim.UnitsConsumed)
}

// 测试发送成功返回签名
func TestSendRaw(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("sendTransaction", func() any { return testSig })

	sig, err := newNodeClient(node).SendRaw(context.Background(), []byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, testSig, sig)
}

// 测试节点拒绝交易时带上 JSON-RPC 错误码
func TestSendRaw_RpcError(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("sendTransaction", func() any {
		return rpcError{Code: -32002, Message: "Transaction simulation failed"}
	})

	_, err := newNodeClient(node).SendRaw(context.Background(), []byte{1, 2, 3})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "code=-32002")
	assert.Contains(t, err.Error(), "Transaction simulation failed")
}

// 测试确认等待：先未见，再确认
func TestAwaitConfirmation_Confirmed(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()

	var calls int32
	node.handle("getSignatureStatuses", func() any {
		status := any(nil)
		if atomic.AddInt32(&calls, 1) > 1 {
			status = map[string]any{
				"slot":               100,
				"confirmations":      5,
				"err":                nil,
				"confirmationStatus": "confirmed",
			}
		}
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value":   []any{status},
		}
	})
	node.handle("getBlockHeight", func() any { return 100 })

	err := newNodeClient(node).AwaitConfirmation(context.Background(), testSig, 9999)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

// 测试高度越过 lastValidBlockHeight 仍未确认时返回过期哨兵错误
func TestAwaitConfirmation_Expired(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("getSignatureStatuses", func() any {
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value":   []any{nil},
		}
	})
	node.handle("getBlockHeight", func() any { return 5000 })

	err := newNodeClient(node).AwaitConfirmation(context.Background(), testSig, 4999)
	assert.ErrorIs(t, err, ErrBlockhashExpired)
}

// 测试交易上链执行失败时错误带上链上错误详情
func TestAwaitConfirmation_FailedOnChain(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("getSignatureStatuses", func() any {
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value": []any{map[string]any{
				"slot":               100,
				"confirmations":      nil,
				"err":                map[string]any{"InstructionError": []any{2, "InvalidAccountData"}},
				"confirmationStatus": "processed",
			}},
		}
	})

	err := newNodeClient(node).AwaitConfirmation(context.Background(), testSig, 9999)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed on chain")
	assert.Contains(t, err.Error(), testSig)
}

// 测试等待被 context 截止时间中断
func TestAwaitConfirmation_ContextTimeout(t *testing.T) {
	node := newFakeRpcNode()
	defer node.Close()
	node.handle("getSignatureStatuses", func() any {
		return map[string]any{
			"context": map[string]any{"slot": 100},
			"value":   []any{nil},
		}
	})
	node.handle("getBlockHeight", func() any { return 100 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newNodeClient(node).AwaitConfirmation(ctx, testSig, 9999)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
