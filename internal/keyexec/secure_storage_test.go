package keyexec

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/better-wallet/webconnect/tests/mocks"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureStorage_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kms, err := NewLocalKMSProvider(testMasterKey)
	require.NoError(t, err)
	repo := mocks.NewDelegateKeyRepo()
	storage := NewSecureStorage(kms, repo)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	require.NoError(t, storage.SaveKey(ctx, key))

	rec, err := repo.GetByAddress(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "local", rec.Provider)
	assert.NotContains(t, string(rec.EncryptedKey), string(crypto.FromECDSA(key)))

	loaded, err := storage.LoadKey(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(loaded))
}

func TestSecureStorage_LoadMissing(t *testing.T) {
	storage := NewSecureStorage(mocks.NewMockKMSProvider(), mocks.NewDelegateKeyRepo())

	key, err := storage.LoadKey(context.Background(), crypto.PubkeyToAddress(mustKey(t).PublicKey))
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestSecureStorage_CiphertextBoundToAddress(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewDelegateKeyRepo()
	storage := NewSecureStorage(mocks.NewMockKMSProvider(), repo)

	a, b := mustKey(t), mustKey(t)
	require.NoError(t, storage.SaveKey(ctx, a))

	// move a's ciphertext under b's address
	rec, err := repo.GetByAddress(ctx, crypto.PubkeyToAddress(a.PublicKey))
	require.NoError(t, err)
	rec.Address = crypto.PubkeyToAddress(b.PublicKey)
	repo.Put(rec)

	_, err = storage.LoadKey(ctx, rec.Address)
	assert.Error(t, err)
}

func TestSecureStorage_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("kms failure", func(t *testing.T) {
		kms := mocks.NewMockKMSProvider()
		kms.SetShouldFail(true)
		storage := NewSecureStorage(kms, mocks.NewDelegateKeyRepo())

		err := storage.SaveKey(ctx, mustKey(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to encrypt delegate key")
	})

	t.Run("repo failure", func(t *testing.T) {
		repo := mocks.NewDelegateKeyRepo()
		repo.UpsertErr = mocks.ErrInjected
		storage := NewSecureStorage(mocks.NewMockKMSProvider(), repo)

		err := storage.SaveKey(ctx, mustKey(t))
		assert.ErrorIs(t, err, mocks.ErrInjected)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		repo := mocks.NewDelegateKeyRepo()
		key := mustKey(t)
		require.NoError(t, NewSecureStorage(mocks.NewMockKMSProvider(), repo).SaveKey(ctx, key))

		local, err := NewLocalKMSProvider(testMasterKey)
		require.NoError(t, err)
		_, err = NewSecureStorage(local, repo).LoadKey(ctx, crypto.PubkeyToAddress(key.PublicKey))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configured provider is local")
	})

	t.Run("nil key", func(t *testing.T) {
		storage := NewSecureStorage(mocks.NewMockKMSProvider(), mocks.NewDelegateKeyRepo())
		assert.Error(t, storage.SaveKey(ctx, nil))
	})
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}
