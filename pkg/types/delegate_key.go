package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DelegateKeyRecord is an encrypted delegate private key
type DelegateKeyRecord struct {
	Address      common.Address `json:"address"`
	EncryptedKey []byte         `json:"-"`
	Provider     string         `json:"provider"`
	CreatedAt    time.Time      `json:"created_at"`
}
