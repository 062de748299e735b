package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/status-im/status-go/extkeys"
	"github.com/tyler-smith/go-bip39"
)

// DelegateEntropyBytes is the entropy length of a delegate mnemonic. 16 bytes
// gives a 12 word phrase.
const DelegateEntropyBytes = 16

// DelegateMessageBucket is the quantization window of the delegate message
const DelegateMessageBucket = time.Hour

// DelegateKey is an ephemeral key generated for one delegate registration
type DelegateKey struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
	Mnemonic   string
}

// NewDelegateKey reads 128 bits from r, turns them into a BIP-39 mnemonic and
// derives the first BIP-44 Ethereum account (m/44'/60'/0'/0/0) from it.
// A nil reader means crypto/rand.
func NewDelegateKey(r io.Reader) (*DelegateKey, error) {
	if r == nil {
		r = rand.Reader
	}

	entropy := make([]byte, DelegateEntropyBytes)
	if _, err := io.ReadFull(r, entropy); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to create mnemonic: %w", err)
	}

	return DelegateKeyFromMnemonic(mnemonic, 0)
}

// DelegateKeyFromMnemonic derives the key at the given account index of the
// Ethereum BIP-44 path.
func DelegateKeyFromMnemonic(mnemonic string, index uint32) (*DelegateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	master, err := extkeys.NewMaster(seed)
	if err != nil {
		return nil, fmt.Errorf("can not create master extended key: %w", err)
	}

	child, err := master.ChildForPurpose(extkeys.KeyPurposeWallet, index)
	if err != nil {
		return nil, fmt.Errorf("can not derive account %d: %w", index, err)
	}

	privateKey := child.ToECDSA()
	return &DelegateKey{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		Mnemonic:   mnemonic,
	}, nil
}

// DelegateMessagePreimage is the string hashed into the delegate message:
// the checksummed delegate address followed by the number of whole hours
// since the unix epoch.
func DelegateMessagePreimage(delegate common.Address, now time.Time) string {
	bucket := now.Unix() / int64(DelegateMessageBucket/time.Second)
	return delegate.Hex() + strconv.FormatInt(bucket, 10)
}

// DelegateMessage is the keccak256 hash the owner signs to authorize delegate
func DelegateMessage(delegate common.Address, now time.Time) []byte {
	return crypto.Keccak256([]byte(DelegateMessagePreimage(delegate, now)))
}

// PrivateKeyToBytes converts a private key to bytes
func PrivateKeyToBytes(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSA(privateKey)
}

// BytesToPrivateKey converts bytes to a private key
func BytesToPrivateKey(b []byte) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(b)
}

// RecoverSigner returns the address that produced signature over hash.
// Signatures may use either 0/1 or 27/28 recovery ids. When the plain hash
// does not recover to expected, the EIP-191 prefixed hash is tried as well,
// since hardware wallets sign messages with the personal_sign prefix.
func RecoverSigner(hash, signature []byte, expected common.Address) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	var recovered common.Address
	for _, h := range [][]byte{hash, accounts.TextHash(hash)} {
		pub, err := crypto.SigToPub(h, sig)
		if err != nil {
			continue
		}
		recovered = crypto.PubkeyToAddress(*pub)
		if recovered == expected {
			return recovered, nil
		}
	}
	if recovered == (common.Address{}) {
		return common.Address{}, fmt.Errorf("failed to recover signer")
	}
	return recovered, nil
}
