package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feed-cranker-sol/internal/pkg/logger"
	"feed-cranker-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// fetchUpdatePath 是网关的更新指令接口路径。
const fetchUpdatePath = "/api/v1/fetch_update"

// FetchUpdateParams 是一次 feed 更新指令请求的参数。
type FetchUpdateParams struct {
	Feed          types.Pubkey     // 目标 feed 账户
	Payer         common.PublicKey // 交易付费账户，网关组指令时需要
	NumSignatures int              // 要求的 oracle 签名数，信任参数
}

// FeedUpdate 是网关为单个 feed 返回的更新材料。
type FeedUpdate struct {
	Feed         types.Pubkey
	Instruction  soltypes.Instruction
	LookupTables []soltypes.AddressLookupTableAccount
}

// TableResolver 按地址拉取 lookup table 内容，网关只回表地址不回内容时使用。
type TableResolver interface {
	ResolveLookupTables(ctx context.Context, keys []types.Pubkey) ([]soltypes.AddressLookupTableAccount, error)
}

// Client 是 oracle 网关客户端。
type Client struct {
	endpoint string
	http     *http.Client
	resolver TableResolver
}

func NewClient(endpoint string, timeout time.Duration, resolver TableResolver) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		resolver: resolver,
	}
}

// 网关接口的 JSON 载荷
type fetchUpdateRequest struct {
	Feed          string `json:"feed"`
	Payer         string `json:"payer"`
	NumSignatures int    `json:"num_signatures"`
}

type wireAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type wireInstruction struct {
	ProgramId string        `json:"program_id"`
	Accounts  []wireAccount `json:"accounts"`
	Data      string        `json:"data"` // base64 编码，内容对本服务不透明
}

type wireLookupTable struct {
	Key       string   `json:"key"`
	Addresses []string `json:"addresses,omitempty"` // 为空时需要回链解析
}

type fetchUpdateResponse struct {
	Instruction  wireInstruction   `json:"instruction"`
	LookupTables []wireLookupTable `json:"lookup_tables"`
}

// FetchUpdate 请求单个 feed 的更新指令与关联 lookup table。
func (c *Client) FetchUpdate(ctx context.Context, params FetchUpdateParams) (*FeedUpdate, error) {
	body, err := json.Marshal(fetchUpdateRequest{
		Feed:          params.Feed.String(),
		Payer:         params.Payer.ToBase58(),
		NumSignatures: params.NumSignatures,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal fetch_update request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+fetchUpdatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build fetch_update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch update for %s: %w", params.Feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch update for %s: status=%d body=%s", params.Feed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var wire fetchUpdateResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode update for %s: %w", params.Feed, err)
	}
	logger.Infof("[RelayClient] 拉取更新指令成功: feed=%s 耗时=%v", params.Feed.Short(), time.Since(start))

	return c.buildFeedUpdate(ctx, params.Feed, &wire)
}

// buildFeedUpdate 把网关载荷转换为 SDK 类型，并补齐缺内容的 lookup table。
func (c *Client) buildFeedUpdate(ctx context.Context, feed types.Pubkey, wire *fetchUpdateResponse) (*FeedUpdate, error) {
	programId, err := types.TryPubkeyFromBase58(wire.Instruction.ProgramId)
	if err != nil {
		return nil, fmt.Errorf("feed %s: invalid program id: %w", feed, err)
	}

	accounts := make([]soltypes.AccountMeta, 0, len(wire.Instruction.Accounts))
	for _, a := range wire.Instruction.Accounts {
		pk, err := types.TryPubkeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("feed %s: invalid account pubkey %q: %w", feed, a.Pubkey, err)
		}
		accounts = append(accounts, soltypes.AccountMeta{
			PubKey:     pk.ToSDK(),
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}

	data, err := base64.StdEncoding.DecodeString(wire.Instruction.Data)
	if err != nil {
		return nil, fmt.Errorf("feed %s: invalid instruction data: %w", feed, err)
	}

	update := &FeedUpdate{
		Feed: feed,
		Instruction: soltypes.Instruction{
			ProgramID: programId.ToSDK(),
			Accounts:  accounts,
			Data:      data,
		},
	}

	// 两类返回：带完整地址表的直接用，只带表地址的回链解析
	var pending []types.Pubkey
	for _, t := range wire.LookupTables {
		key, err := types.TryPubkeyFromBase58(t.Key)
		if err != nil {
			return nil, fmt.Errorf("feed %s: invalid lookup table key %q: %w", feed, t.Key, err)
		}
		if len(t.Addresses) == 0 {
			pending = append(pending, key)
			continue
		}
		addresses := make([]common.PublicKey, 0, len(t.Addresses))
		for _, s := range t.Addresses {
			pk, err := types.TryPubkeyFromBase58(s)
			if err != nil {
				return nil, fmt.Errorf("feed %s: invalid lookup table address %q: %w", feed, s, err)
			}
			addresses = append(addresses, pk.ToSDK())
		}
		update.LookupTables = append(update.LookupTables, soltypes.AddressLookupTableAccount{
			Key:       key.ToSDK(),
			Addresses: addresses,
		})
	}

	if len(pending) > 0 {
		if c.resolver == nil {
			return nil, fmt.Errorf("feed %s: gateway returned bare lookup table keys but no resolver configured", feed)
		}
		resolved, err := c.resolver.ResolveLookupTables(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("feed %s: resolve lookup tables: %w", feed, err)
		}
		update.LookupTables = append(update.LookupTables, resolved...)
	}
	return update, nil
}
