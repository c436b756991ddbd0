package cranker

import (
	"context"
	"fmt"

	"feed-cranker-sol/internal/relay"
	"feed-cranker-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/zeromicro/go-zero/core/mr"
)

// UpdateFetcher 为单个 feed 拉取更新指令，由 oracle 网关客户端实现。
type UpdateFetcher interface {
	FetchUpdate(ctx context.Context, params relay.FetchUpdateParams) (*relay.FeedUpdate, error)
}

// Collector 并发收集一批 feed 的更新指令。
type Collector struct {
	fetcher       UpdateFetcher
	payer         common.PublicKey
	numSignatures int
	workers       int
}

func NewCollector(fetcher UpdateFetcher, payer common.PublicKey, numSignatures, workers int) *Collector {
	if workers <= 0 {
		workers = 1
	}
	return &Collector{
		fetcher:       fetcher,
		payer:         payer,
		numSignatures: numSignatures,
		workers:       workers,
	}
}

// 并发拉取时带上原始下标，汇总后恢复入参顺序
type indexedUpdate struct {
	index  int
	update *relay.FeedUpdate
}

// Collect 为每个 feed 拉取更新指令，返回结果与入参顺序一致。
// 任一 feed 失败整体失败，错误信息带上出错的 feed 地址。
func (c *Collector) Collect(ctx context.Context, feeds []types.Pubkey) ([]*relay.FeedUpdate, error) {
	if len(feeds) == 0 {
		return nil, nil
	}

	return mr.MapReduce(func(source chan<- int) {
		for i := range feeds {
			source <- i
		}
	}, func(i int, writer mr.Writer[indexedUpdate], cancel func(error)) {
		update, err := c.fetcher.FetchUpdate(ctx, relay.FetchUpdateParams{
			Feed:          feeds[i],
			Payer:         c.payer,
			NumSignatures: c.numSignatures,
		})
		if err != nil {
			cancel(fmt.Errorf("collect update for feed %s: %w", feeds[i], err))
			return
		}
		writer.Write(indexedUpdate{index: i, update: update})
	}, func(pipe <-chan indexedUpdate, writer mr.Writer[[]*relay.FeedUpdate], cancel func(error)) {
		result := make([]*relay.FeedUpdate, len(feeds))
		for item := range pipe {
			result[item.index] = item.update
		}
		writer.Write(result)
	}, mr.WithContext(ctx), mr.WithWorkers(c.workers))
}

// MergeLookupTables 按 feed 顺序合并各 feed 携带的 lookup table。
// 同一表地址首见生效，后续出现的直接丢弃。
func MergeLookupTables(updates []*relay.FeedUpdate) []soltypes.AddressLookupTableAccount {
	seen := make(map[common.PublicKey]struct{})
	var merged []soltypes.AddressLookupTableAccount
	for _, update := range updates {
		for _, table := range update.LookupTables {
			if _, ok := seen[table.Key]; ok {
				continue
			}
			seen[table.Key] = struct{}{}
			merged = append(merged, table)
		}
	}
	return merged
}
