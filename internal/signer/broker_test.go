package signer

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signResult struct {
	sig []byte
	err error
}

// startSign runs Sign in the background and returns the pending request once
// it is visible to devices
func startSign(t *testing.T, ctx context.Context, b *Broker, req Request, msg []byte) (PendingRequest, <-chan signResult) {
	t.Helper()
	done := make(chan signResult, 1)
	go func() {
		sig, err := b.Sign(ctx, msg, req)
		done <- signResult{sig, err}
	}()

	require.Eventually(t, func() bool { return len(b.Pending()) == 1 }, time.Second, time.Millisecond)
	return b.Pending()[0], done
}

func waitResult(t *testing.T, done <-chan signResult) signResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(time.Second):
		t.Fatal("sign did not return")
		return signResult{}
	}
}

func TestBrokerSupports(t *testing.T) {
	b := NewBroker()
	assert.True(t, b.Supports(types.KeyTypeLedgerNanoX))
	assert.False(t, b.Supports(types.KeyTypeDeviceImported))
	assert.False(t, b.Supports(types.KeyTypeWalletConnect))

	b = NewBroker(types.KeyTypeDeviceImported, types.KeyTypeDeviceGenerated)
	assert.True(t, b.Supports(types.KeyTypeDeviceImported))
	assert.False(t, b.Supports(types.KeyTypeLedgerNanoX))
}

func TestBrokerSubmit(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)
	msg := crypto.Keccak256([]byte("message"))

	tests := []struct {
		name string
		sign func() []byte
	}{
		{
			name: "plain_hash",
			sign: func() []byte {
				sig, err := crypto.Sign(msg, key)
				require.NoError(t, err)
				return sig
			},
		},
		{
			name: "personal_sign_v27",
			sign: func() []byte {
				sig, err := crypto.Sign(accounts.TextHash(msg), key)
				require.NoError(t, err)
				sig[64] += 27
				return sig
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroker()
			req := Request{Owner: owner, Title: "Confirm Push Notifications", Tracking: map[string]string{"action": "confirm_push"}}
			pending, done := startSign(t, ctx, b, req, msg)

			assert.Equal(t, owner, pending.Owner)
			assert.Equal(t, "Confirm Push Notifications", pending.Title)
			assert.Equal(t, []byte(msg), []byte(pending.Message))

			got, err := b.Get(pending.ID)
			require.NoError(t, err)
			assert.Equal(t, pending.ID, got.ID)

			sig := tt.sign()
			require.NoError(t, b.Submit(ctx, pending.ID, sig))

			r := waitResult(t, done)
			require.NoError(t, r.err)
			assert.Equal(t, sig, r.sig)
			assert.Empty(t, b.Pending())

			// resolving twice is not possible
			assert.ErrorIs(t, b.Submit(ctx, pending.ID, sig), apperrors.ErrSignRequestNotFound)
			assert.ErrorIs(t, b.Cancel(ctx, pending.ID), apperrors.ErrSignRequestNotFound)
		})
	}
}

func TestBrokerSubmitWrongSigner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := crypto.Keccak256([]byte("message"))

	b := NewBroker()
	pending, done := startSign(t, ctx, b, Request{Owner: crypto.PubkeyToAddress(owner.PublicKey)}, msg)

	sig, err := crypto.Sign(msg, other)
	require.NoError(t, err)
	err = b.Submit(ctx, pending.ID, sig)
	assert.ErrorIs(t, err, apperrors.InvalidSignature(""))

	err = b.Submit(ctx, pending.ID, sig[:64])
	assert.ErrorIs(t, err, apperrors.InvalidSignature(""))

	// still pending after bad submissions
	assert.Len(t, b.Pending(), 1)
	cancel()
	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Empty(t, b.Pending())
}

func TestBrokerCancel(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()
	pending, done := startSign(t, ctx, b, Request{}, []byte{1})

	require.NoError(t, b.Cancel(ctx, pending.ID))
	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, ErrCancelled)
	assert.Nil(t, r.sig)
}

func TestBrokerReject(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()
	pending, done := startSign(t, ctx, b, Request{}, []byte{1})

	require.NoError(t, b.Reject(ctx, pending.ID, "device locked"))
	r := waitResult(t, done)
	require.Error(t, r.err)
	assert.False(t, errors.Is(r.err, ErrCancelled))
	assert.Contains(t, r.err.Error(), "device locked")
}

func TestBrokerUnknownRequest(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()

	_, err := b.Get(uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrSignRequestNotFound)
	assert.ErrorIs(t, b.Submit(ctx, uuid.New(), make([]byte, 65)), apperrors.ErrSignRequestNotFound)
	assert.ErrorIs(t, b.Reject(ctx, uuid.New(), "x"), apperrors.ErrSignRequestNotFound)
}
