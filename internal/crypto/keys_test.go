package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroEntropyMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy pool exhausted") }

func TestNewDelegateKey(t *testing.T) {
	t.Run("derives the first BIP-44 account from the entropy", func(t *testing.T) {
		key, err := NewDelegateKey(bytes.NewReader(make([]byte, DelegateEntropyBytes)))
		require.NoError(t, err)

		assert.Equal(t, zeroEntropyMnemonic, key.Mnemonic)
		assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), key.Address)
		assert.Equal(t, key.Address, crypto.PubkeyToAddress(key.PrivateKey.PublicKey))
	})

	t.Run("produces a 12 word phrase", func(t *testing.T) {
		key, err := NewDelegateKey(nil)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(key.Mnemonic), 12)
	})

	t.Run("generates unique keys", func(t *testing.T) {
		key1, err := NewDelegateKey(nil)
		require.NoError(t, err)
		key2, err := NewDelegateKey(nil)
		require.NoError(t, err)
		assert.NotEqual(t, key1.Address, key2.Address)
	})

	t.Run("fails without entropy", func(t *testing.T) {
		key, err := NewDelegateKey(failingReader{})
		assert.Error(t, err)
		assert.Nil(t, key)
	})

	t.Run("fails on short entropy", func(t *testing.T) {
		key, err := NewDelegateKey(bytes.NewReader(make([]byte, 8)))
		assert.Error(t, err)
		assert.Nil(t, key)
	})
}

func TestDelegateKeyFromMnemonic(t *testing.T) {
	t.Run("same mnemonic same key", func(t *testing.T) {
		k1, err := DelegateKeyFromMnemonic(zeroEntropyMnemonic, 0)
		require.NoError(t, err)
		k2, err := DelegateKeyFromMnemonic(zeroEntropyMnemonic, 0)
		require.NoError(t, err)
		assert.Equal(t, k1.Address, k2.Address)
	})

	t.Run("different index different key", func(t *testing.T) {
		k0, err := DelegateKeyFromMnemonic(zeroEntropyMnemonic, 0)
		require.NoError(t, err)
		k1, err := DelegateKeyFromMnemonic(zeroEntropyMnemonic, 1)
		require.NoError(t, err)
		assert.NotEqual(t, k0.Address, k1.Address)
	})

	t.Run("rejects invalid checksum", func(t *testing.T) {
		_, err := DelegateKeyFromMnemonic(strings.Repeat("abandon ", 11)+"abandon", 0)
		assert.Error(t, err)
	})
}

func TestDelegateMessage(t *testing.T) {
	delegate := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")

	t.Run("preimage is checksummed address and hour bucket", func(t *testing.T) {
		at := time.Unix(1_700_000_000, 0)
		assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94472222", DelegateMessagePreimage(delegate, at))
	})

	t.Run("same hour bucket gives identical messages", func(t *testing.T) {
		start := time.Unix(472222*3600, 0)
		end := start.Add(time.Hour - time.Second)

		assert.Equal(t, DelegateMessagePreimage(delegate, start), DelegateMessagePreimage(delegate, end))
		assert.Equal(t, DelegateMessage(delegate, start), DelegateMessage(delegate, end))
	})

	t.Run("adjacent buckets differ", func(t *testing.T) {
		last := time.Unix(472223*3600-1, 0)
		next := time.Unix(472223*3600, 0)

		assert.NotEqual(t, DelegateMessagePreimage(delegate, last), DelegateMessagePreimage(delegate, next))
		assert.NotEqual(t, DelegateMessage(delegate, last), DelegateMessage(delegate, next))
	})

	t.Run("hash is keccak256 of the preimage", func(t *testing.T) {
		at := time.Unix(3600, 0)
		want := crypto.Keccak256([]byte(delegate.Hex() + "1"))
		assert.Equal(t, want, DelegateMessage(delegate, at))
		assert.Len(t, DelegateMessage(delegate, at), 32)
	})
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := DelegateKeyFromMnemonic(zeroEntropyMnemonic, 0)
	require.NoError(t, err)

	restored, err := BytesToPrivateKey(PrivateKeyToBytes(key.PrivateKey))
	require.NoError(t, err)
	assert.Equal(t, key.PrivateKey.D, restored.D)
}

func TestRecoverSigner(t *testing.T) {
	owner, err := crypto.GenerateKey()
	require.NoError(t, err)
	ownerAddr := crypto.PubkeyToAddress(owner.PublicKey)
	hash := crypto.Keccak256([]byte("delegate message"))

	t.Run("plain hash signature", func(t *testing.T) {
		sig, err := crypto.Sign(hash, owner)
		require.NoError(t, err)

		got, err := RecoverSigner(hash, sig, ownerAddr)
		require.NoError(t, err)
		assert.Equal(t, ownerAddr, got)
	})

	t.Run("eip-191 signature with 27/28 recovery id", func(t *testing.T) {
		sig, err := crypto.Sign(accounts.TextHash(hash), owner)
		require.NoError(t, err)
		sig[64] += 27

		got, err := RecoverSigner(hash, sig, ownerAddr)
		require.NoError(t, err)
		assert.Equal(t, ownerAddr, got)
	})

	t.Run("other signer is reported", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		sig, err := crypto.Sign(hash, other)
		require.NoError(t, err)

		got, err := RecoverSigner(hash, sig, ownerAddr)
		require.NoError(t, err)
		assert.NotEqual(t, ownerAddr, got)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := RecoverSigner(hash, make([]byte, 64), ownerAddr)
		assert.Error(t, err)
	})
}
