package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
)

// 生成一个账户并按 Solana CLI 格式写入临时文件
func writeTestKeypair(t *testing.T, account soltypes.Account) string {
	ints := make([]int, len(account.PrivateKey))
	for i, b := range account.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "payer.json")
	assert.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

// 测试正常读取 keypair 文件并还原出同一公钥
func TestLoadKeypairFile(t *testing.T) {
	account := soltypes.NewAccount()
	path := writeTestKeypair(t, account)

	loaded, err := LoadKeypairFile(path)
	assert.NoError(t, err)
	assert.Equal(t, account.PublicKey, loaded.PublicKey)
	assert.Equal(t, account.PrivateKey, loaded.PrivateKey)
}

func TestLoadKeypairFile_Missing(t *testing.T) {
	_, err := LoadKeypairFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadKeypairFile_WrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.json")
	assert.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))

	_, err := LoadKeypairFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 64 bytes")
}

func TestLoadKeypairFile_OutOfRange(t *testing.T) {
	ints := make([]int, 64)
	ints[7] = 300
	raw, err := json.Marshal(ints)
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	assert.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = LoadKeypairFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
