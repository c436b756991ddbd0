package keys

import (
	"encoding/json"
	"fmt"
	"os"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

// keypairByteLen 是 Solana CLI keypair 文件的固定长度（ed25519 私钥 32 字节 + 公钥 32 字节）
const keypairByteLen = 64

// LoadKeypairFile 读取 Solana CLI 格式的 keypair 文件（JSON 字节数组）。
func LoadKeypairFile(path string) (soltypes.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("read keypair file: %w", err)
	}

	// JSON 数字数组不能直接反序列化为 []byte，先过一遍 []int 并做范围校验
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return soltypes.Account{}, fmt.Errorf("parse keypair file %s: %w", path, err)
	}
	if len(ints) != keypairByteLen {
		return soltypes.Account{}, fmt.Errorf("keypair file %s: expected %d bytes, got %d", path, keypairByteLen, len(ints))
	}

	buf := make([]byte, keypairByteLen)
	for i, v := range ints {
		if v < 0 || v > 255 {
			return soltypes.Account{}, fmt.Errorf("keypair file %s: byte %d out of range: %d", path, i, v)
		}
		buf[i] = byte(v)
	}

	account, err := soltypes.AccountFromBytes(buf)
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("invalid keypair in %s: %w", path, err)
	}
	return account, nil
}
