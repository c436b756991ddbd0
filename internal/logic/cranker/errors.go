package cranker

import (
	"fmt"
)

// BatchTooLargeError 表示组出的交易超过链上单笔硬性限制。
// 这类错误重试无意义，只能减少一批的 feed 数量。
type BatchTooLargeError struct {
	Feeds  int    // 本批 feed 数
	Limit  string // 超出的限制项
	Actual int
	Max    int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("transaction with %d feeds exceeds %s limit: %d > %d", e.Feeds, e.Limit, e.Actual, e.Max)
}

// SimulationError 表示模拟执行失败，交易未发送。
// Logs 保留模拟产生的链上日志供排查。
type SimulationError struct {
	Detail any // RPC 返回的错误对象
	Logs   []string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed: %v", e.Detail)
}
