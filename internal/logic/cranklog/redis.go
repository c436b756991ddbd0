package cranklog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"feed-cranker-sol/internal/types"

	"github.com/redis/go-redis/v9"
)

// Record 是一次成功 crank 的记录
type Record struct {
	Signature string `json:"signature"`  // 已确认交易的签名
	Feeds     int    `json:"feeds"`      // 同批 feed 数
	CrankedAt int64  `json:"cranked_at"` // Unix timestamp（秒）
}

// Store 在 Redis 中记录每个 feed 的最近一次成功 crank。
// 仅用于观测与排查，流水线本身不读它做任何判重。
type Store struct {
	rdb *redis.Client
}

// Redis key 前缀
const feedPrefix = "cranklog:feed"

// 记录 TTL（可调）
const recordTTL = 3 * 24 * time.Hour

// NewStore 创建 crank 记录存储
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// getKey 构造 Redis key，按 feed 地址区分
func (s *Store) getKey(feed types.Pubkey) string {
	return fmt.Sprintf("%s:%s", feedPrefix, feed)
}

// MarkCranked 为本批全部 feed 写入成功记录
func (s *Store) MarkCranked(ctx context.Context, feeds []types.Pubkey, signature string, at time.Time) error {
	payload, err := json.Marshal(Record{
		Signature: signature,
		Feeds:     len(feeds),
		CrankedAt: at.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal crank record: %w", err)
	}

	pipe := s.rdb.Pipeline()
	for _, feed := range feeds {
		pipe.Set(ctx, s.getKey(feed), payload, recordTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// LastCrank 查询 feed 的最近一次成功 crank，无记录返回 nil
func (s *Store) LastCrank(ctx context.Context, feed types.Pubkey) (*Record, error) {
	val, err := s.rdb.Get(ctx, s.getKey(feed)).Bytes()
	switch {
	case err == redis.Nil:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var record Record
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("decode crank record: %w", err)
	}
	return &record, nil
}
