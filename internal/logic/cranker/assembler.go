package cranker

import (
	"errors"
	"fmt"

	"feed-cranker-sol/internal/chain"
	"feed-cranker-sol/internal/consts"
	"feed-cranker-sol/internal/relay"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// TransactionPlan 是组一笔批量交易所需的全部材料。
type TransactionPlan struct {
	Payer        soltypes.Account                     // 付费并签名的账户
	Blockhash    chain.Blockhash                      // 新取的 blockhash
	Budget       []soltypes.Instruction               // 预算指令，置于指令序列最前
	Updates      []*relay.FeedUpdate                  // 按配置顺序排列的 feed 更新
	LookupTables []soltypes.AddressLookupTableAccount // 合并去重后的 lookup table
}

// SignedTx 是签名后可直接模拟与发送的交易。
// 模拟与发送共用 Raw 这一份字节，保证两者对象完全一致。
type SignedTx struct {
	Raw       []byte
	Signature string // 首个签名的 base58，即交易标识
	Blockhash chain.Blockhash
}

// Assemble 组 v0 交易并签名。
// 指令顺序：预算指令在前，feed 更新指令按 Updates 顺序随后。
func Assemble(plan TransactionPlan) (*SignedTx, error) {
	if len(plan.Updates) == 0 {
		return nil, errors.New("no feed updates to assemble")
	}

	instructions := make([]soltypes.Instruction, 0, len(plan.Budget)+len(plan.Updates))
	instructions = append(instructions, plan.Budget...)
	for _, update := range plan.Updates {
		instructions = append(instructions, update.Instruction)
	}

	message := soltypes.NewMessage(soltypes.NewMessageParam{
		FeePayer:                   plan.Payer.PublicKey,
		Instructions:               instructions,
		RecentBlockhash:            plan.Blockhash.Hash,
		AddressLookupTableAccounts: plan.LookupTables,
	})
	// lookup table 为空时 SDK 会退回 legacy 编码，这里统一按 v0 发送
	message.Version = soltypes.MessageVersionV0

	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: message,
		Signers: []soltypes.Account{plan.Payer},
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	// 发送前置校验，超限交易不可能被任何节点接受
	if len(raw) > consts.MaxTransactionSize {
		return nil, &BatchTooLargeError{
			Feeds:  len(plan.Updates),
			Limit:  "serialized size",
			Actual: len(raw),
			Max:    consts.MaxTransactionSize,
		}
	}
	if refs := accountRefCount(&message); refs > consts.MaxTransactionKeys {
		return nil, &BatchTooLargeError{
			Feeds:  len(plan.Updates),
			Limit:  "account reference",
			Actual: refs,
			Max:    consts.MaxTransactionKeys,
		}
	}

	if len(tx.Signatures) == 0 {
		return nil, errors.New("signed transaction has no signatures")
	}
	return &SignedTx{
		Raw:       raw,
		Signature: base58.Encode(tx.Signatures[0]),
		Blockhash: plan.Blockhash,
	}, nil
}

// accountRefCount 统计静态账户表与 lookup table 动态引用的账户总数。
func accountRefCount(message *soltypes.Message) int {
	count := len(message.Accounts)
	for _, table := range message.AddressLookupTables {
		count += len(table.WritableIndexes) + len(table.ReadonlyIndexes)
	}
	return count
}
