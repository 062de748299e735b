package delegate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/better-wallet/webconnect/internal/metrics"
	"github.com/better-wallet/webconnect/internal/signer"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completion struct {
	res *Result
	err error
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	m := metrics.New()
	deps := f.deps()
	deps.Metrics = m
	svc := NewService(deps, f.config(), nil)

	res, err := svc.Register(context.Background(), f.address)
	require.NoError(t, err)
	assert.Equal(t, f.address, res.Owner)

	_, running := svc.Running(f.address)
	assert.False(t, running)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandshakesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendCalls.WithLabelValues("1", "success")))
}

func TestService_RegisterRecordsFailureCode(t *testing.T) {
	f := newFixture(t)
	f.signer.Err = signer.ErrCancelled
	m := metrics.New()
	deps := f.deps()
	deps.Metrics = m
	svc := NewService(deps, f.config(), nil)

	_, err := svc.Register(context.Background(), f.address)
	assert.ErrorIs(t, err, apperrors.ErrSigningCancelled)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandshakesTotal.WithLabelValues(apperrors.ErrCodeSigningCancelled)))
}

// brokerFixture replaces the fixture signer with a broker so the handshake
// stays in StateAwaitingSignature until the test submits a signature
func brokerFixture(t *testing.T) (*fixture, *signer.Broker, Deps) {
	t.Helper()
	f := newFixture(t)
	broker := signer.NewBroker(types.KeyTypeLedgerNanoX)
	deps := f.deps()
	deps.Signer = broker
	return f, broker, deps
}

func waitPending(t *testing.T, broker *signer.Broker) signer.PendingRequest {
	t.Helper()
	require.Eventually(t, func() bool { return len(broker.Pending()) == 1 }, time.Second, time.Millisecond)
	return broker.Pending()[0]
}

func TestService_StartDeliversOnDispatcher(t *testing.T) {
	f, broker, deps := brokerFixture(t)
	dispatcher := NewSerialDispatcher(4)
	defer dispatcher.Close()
	svc := NewService(deps, f.config(), dispatcher)

	results := make(chan completion, 2)
	err := svc.Start(context.Background(), f.address, func(res *Result, err error) {
		results <- completion{res, err}
	})
	require.NoError(t, err)

	pending := waitPending(t, broker)
	state, running := svc.Running(f.address)
	assert.True(t, running)
	assert.Equal(t, StateAwaitingSignature, state)
	assert.Equal(t, SignTitle, pending.Title)

	sig, err := ethcrypto.Sign(pending.Message, f.owner)
	require.NoError(t, err)
	require.NoError(t, broker.Submit(context.Background(), pending.ID, sig))

	select {
	case c := <-results:
		require.NoError(t, c.err)
		assert.Equal(t, f.address, c.res.Owner)
	case <-time.After(time.Second):
		t.Fatal("completion not delivered")
	}

	select {
	case c := <-results:
		t.Fatalf("completion delivered twice: %+v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestService_SecondHandshakeForOwnerFailsFast(t *testing.T) {
	f, broker, deps := brokerFixture(t)
	svc := NewService(deps, f.config(), nil)

	results := make(chan completion, 1)
	require.NoError(t, svc.Start(context.Background(), f.address, func(res *Result, err error) {
		results <- completion{res, err}
	}))
	pending := waitPending(t, broker)

	_, err := svc.Register(context.Background(), f.address)
	assert.ErrorIs(t, err, apperrors.ErrHandshakeInProgress)
	err = svc.Start(context.Background(), f.address, nil)
	assert.ErrorIs(t, err, apperrors.ErrHandshakeInProgress)

	require.NoError(t, broker.Cancel(context.Background(), pending.ID))
	c := <-results
	assert.ErrorIs(t, c.err, apperrors.ErrSigningCancelled)
	assert.Nil(t, c.res)

	_, running := svc.Running(f.address)
	assert.False(t, running)
}

func TestService_OwnerReleasedAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.signer.Err = signer.ErrCancelled
	svc := NewService(f.deps(), f.config(), nil)

	_, err := svc.Register(context.Background(), f.address)
	require.ErrorIs(t, err, apperrors.ErrSigningCancelled)

	f.signer.Err = nil
	_, err = svc.Register(context.Background(), f.address)
	assert.NoError(t, err)
}

func TestService_DifferentOwnersRunConcurrently(t *testing.T) {
	f := newFixture(t)
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	otherAddr := ethcrypto.PubkeyToAddress(other.PublicKey)
	require.NoError(t, f.keys.Create(context.Background(), &types.OwnerKey{
		Address: otherAddr,
		KeyType: types.KeyTypeLedgerNanoX,
	}))

	broker := signer.NewBroker()
	deps := f.deps()
	deps.Signer = broker
	svc := NewService(deps, f.config(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, owner := range []common.Address{f.address, otherAddr} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), owner)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return len(broker.Pending()) == 2 }, time.Second, time.Millisecond)
	for _, p := range broker.Pending() {
		key := f.owner
		if p.Owner == otherAddr {
			key = other
		}
		sig, err := ethcrypto.Sign(p.Message, key)
		require.NoError(t, err)
		require.NoError(t, broker.Submit(context.Background(), p.ID, sig))
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestService_Chains(t *testing.T) {
	svc := NewService(Deps{}, Config{Chains: []string{"5", "11155111"}}, nil)
	chains := svc.Chains()
	assert.Equal(t, []string{"5", "11155111"}, chains)

	chains[0] = "changed"
	assert.Equal(t, "5", svc.Chains()[0])
}
