package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"feed-cranker-sol/internal/consts"
	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// lookupTableMetaSize 是 lookup table 账户的元数据区长度，地址表从该偏移开始。
const lookupTableMetaSize = 56

// lookupTableTypeInitialized 是已初始化 lookup table 的账户类型标记。
const lookupTableTypeInitialized = 1

// ParseLookupTableAccount 解析 lookup table 账户数据为地址表。
// 参考: https://github.com/solana-labs/solana/blob/master/sdk/program/src/address_lookup_table/state.rs
func ParseLookupTableAccount(key types.Pubkey, data []byte) (soltypes.AddressLookupTableAccount, error) {
	// [0:4]   -> 账户类型（1 = 已初始化的 lookup table）
	// [4:12]  -> deactivation_slot
	// [12:20] -> last_extended_slot
	// [20:21] -> last_extended_slot_start_index
	// [21:54] -> authority (Option<Pubkey>)
	// [54:56] -> padding
	// [56:]   -> 地址表，每 32 字节一个地址
	if len(data) < lookupTableMetaSize {
		return soltypes.AddressLookupTableAccount{}, errors.New("lookup table data too short")
	}
	if typ := binary.LittleEndian.Uint32(data[0:4]); typ != lookupTableTypeInitialized {
		return soltypes.AddressLookupTableAccount{}, fmt.Errorf("not an initialized lookup table: type=%d", typ)
	}

	payload := data[lookupTableMetaSize:]
	if len(payload)%32 != 0 {
		return soltypes.AddressLookupTableAccount{}, fmt.Errorf("lookup table addresses not 32-byte aligned: len=%d", len(payload))
	}

	addresses := make([]common.PublicKey, 0, len(payload)/32)
	for off := 0; off+32 <= len(payload); off += 32 {
		addresses = append(addresses, common.PublicKeyFromBytes(payload[off:off+32]))
	}
	return soltypes.AddressLookupTableAccount{
		Key:       key.ToSDK(),
		Addresses: addresses,
	}, nil
}

// ResolveLookupTables 批量拉取并解析 lookup table 账户。
// 任一表缺失或解析失败都返回错误，缺表组出来的交易必然上链失败。
func (c *Client) ResolveLookupTables(ctx context.Context, keys []types.Pubkey) ([]soltypes.AddressLookupTableAccount, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	addrs := make([]string, len(keys))
	for i, k := range keys {
		addrs[i] = k.String()
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	start := time.Now()
	infos, err := c.rpc.GetMultipleAccounts(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("GetMultipleAccounts failed: %w", err)
	}
	logger.Infof("[ChainClient] 拉取 lookup table 成功, 数量: %d, 耗时: %v", len(addrs), time.Since(start))

	if len(infos) != len(addrs) {
		return nil, fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(infos), len(addrs))
	}

	tables := make([]soltypes.AddressLookupTableAccount, 0, len(keys))
	for i, info := range infos {
		if len(info.Data) == 0 {
			return nil, fmt.Errorf("lookup table %s not found", keys[i])
		}
		if types.PubkeyFromSDK(info.Owner) != consts.AddressLookupTableProgram {
			return nil, fmt.Errorf("account %s is not a lookup table: owner=%s", keys[i], info.Owner.ToBase58())
		}
		table, err := ParseLookupTableAccount(keys[i], info.Data)
		if err != nil {
			return nil, fmt.Errorf("parse lookup table %s: %w", keys[i], err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}
