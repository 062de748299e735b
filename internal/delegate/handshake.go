// Package delegate registers device delegate keys for owner keys: a fresh key
// is generated, authorized by an owner signature, registered with the
// gateway on every configured chain and stored locally.
package delegate

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/better-wallet/webconnect/internal/crypto"
	"github.com/better-wallet/webconnect/internal/gateway"
	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/metrics"
	"github.com/better-wallet/webconnect/internal/notify"
	"github.com/better-wallet/webconnect/internal/signer"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/multierr"
)

const (
	// DefaultLabel names the delegate on the gateway
	DefaultLabel = "iOS Device Delegate"

	// DefaultBackendTimeout bounds the wait for all chain registrations
	DefaultBackendTimeout = 60 * time.Second

	// SignTitle is shown on the signing device
	SignTitle = "Confirm Push Notifications"
)

// Backend registers delegates with the gateway, once per chain
type Backend interface {
	CreateDelegate(ctx context.Context, req gateway.CreateDelegateRequest) error
}

// KeyStore holds owner key records. FindKey returns nil, nil when the owner
// is unknown.
type KeyStore interface {
	FindKey(ctx context.Context, owner common.Address) (*types.OwnerKey, error)
	Save(ctx context.Context, key *types.OwnerKey) error
}

// SecureStorage keeps delegate private keys
type SecureStorage interface {
	SaveKey(ctx context.Context, key *ecdsa.PrivateKey) error
}

// Notifier receives key events
type Notifier interface {
	Post(ctx context.Context, ev notify.Event)
}

// Deps are the collaborators of a handshake
type Deps struct {
	Signer   signer.Signer
	Backend  Backend
	Keys     KeyStore
	Secure   SecureStorage
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Config tunes a handshake. Zero values select the defaults.
type Config struct {
	Chains         []string
	Label          string
	BackendTimeout time.Duration
	// Entropy defaults to crypto/rand
	Entropy io.Reader
	Clock   clock.Clock
}

func (c Config) withDefaults() Config {
	if len(c.Chains) == 0 {
		c.Chains = types.DefaultDelegateChains
	}
	c.Chains = slices.Clone(c.Chains)
	if c.Label == "" {
		c.Label = DefaultLabel
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = DefaultBackendTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Result describes a completed handshake
type Result struct {
	Owner     common.Address `json:"owner"`
	Delegate  common.Address `json:"delegate"`
	Signature hexutil.Bytes  `json:"signature"`
	Chains    []string       `json:"chains"`
	// FailedChains lists chains whose registration call returned an error
	// before the barrier cleared. They do not fail the handshake.
	FailedChains []string `json:"failed_chains,omitempty"`
}

// Handshake registers one delegate key for one owner. Each Advance performs
// exactly one transition; any failure moves it to StateFailed.
type Handshake struct {
	owner common.Address
	deps  Deps
	cfg   Config

	// step serializes Advance calls
	step sync.Mutex

	mu    sync.RWMutex
	state State
	err   error

	key          *crypto.DelegateKey
	message      []byte
	signature    []byte
	failedChains []string
}

// NewHandshake creates a handshake in StateIdle
func NewHandshake(owner common.Address, deps Deps, cfg Config) *Handshake {
	return &Handshake{
		owner: owner,
		deps:  deps,
		cfg:   cfg.withDefaults(),
		state: StateIdle,
	}
}

// State returns the current state
func (h *Handshake) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the failure of a failed handshake
func (h *Handshake) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Owner returns the owner address the delegate is registered for
func (h *Handshake) Owner() common.Address {
	return h.owner
}

// Delegate returns the generated delegate address, zero before key generation
func (h *Handshake) Delegate() common.Address {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.key == nil {
		return common.Address{}
	}
	return h.key.Address
}

// Message returns the constructed message hash, nil before construction
func (h *Handshake) Message() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.message)
}

// Advance performs the next transition. The state moves to the target of the
// step before the step runs, so State reports StateAwaitingSignature while
// the signer is waiting.
func (h *Handshake) Advance(ctx context.Context) error {
	h.step.Lock()
	defer h.step.Unlock()

	current := h.State()
	if current.IsTerminal() {
		return apperrors.ErrHandshakeFinished
	}

	var err error
	switch current {
	case StateIdle:
		h.setState(StateKeyGenerated)
		err = h.generateKey()
	case StateKeyGenerated:
		h.setState(StateMessageConstructed)
		h.constructMessage()
	case StateMessageConstructed:
		h.setState(StateAwaitingSignature)
		err = h.requestSignature(ctx)
	case StateAwaitingSignature:
		h.setState(StateRegisteringWithBackend)
		err = h.registerWithBackend(ctx)
	case StateRegisteringWithBackend:
		err = h.complete(context.WithoutCancel(ctx))
		if err == nil {
			h.setState(StateCompleted)
		}
	}

	if err != nil {
		h.fail(err)
		logger.Warn(ctx, "delegate handshake failed",
			"owner", h.owner.Hex(),
			"state", current.String(),
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "delegate handshake advanced", "owner", h.owner.Hex(), "state", h.State().String())
	return nil
}

// Run advances until the handshake reaches a terminal state
func (h *Handshake) Run(ctx context.Context) (*Result, error) {
	for !h.State().IsTerminal() {
		if err := h.Advance(ctx); err != nil {
			return nil, err
		}
	}
	if err := h.Err(); err != nil {
		return nil, err
	}
	return h.result(), nil
}

// RequestPushRegistration asks for the device push registration to be
// refreshed with the new delegate
func (h *Handshake) RequestPushRegistration(ctx context.Context) {
	h.deps.Notifier.Post(ctx, notify.Event{
		Kind:     notify.PushRegistrationNeeded,
		Owner:    h.owner,
		Delegate: h.Delegate(),
	})
}

func (h *Handshake) result() *Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return &Result{
		Owner:        h.owner,
		Delegate:     h.key.Address,
		Signature:    slices.Clone(h.signature),
		Chains:       slices.Clone(h.cfg.Chains),
		FailedChains: slices.Clone(h.failedChains),
	}
}

func (h *Handshake) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handshake) fail(err error) {
	h.mu.Lock()
	h.state = StateFailed
	h.err = err
	h.mu.Unlock()
}

func (h *Handshake) generateKey() error {
	key, err := crypto.NewDelegateKey(h.cfg.Entropy)
	if err != nil {
		return apperrors.ErrEntropyUnavailable.Wrap(err)
	}

	h.mu.Lock()
	h.key = key
	h.mu.Unlock()
	return nil
}

func (h *Handshake) constructMessage() {
	msg := crypto.DelegateMessage(h.Delegate(), h.cfg.Clock.Now())

	h.mu.Lock()
	h.message = msg
	h.mu.Unlock()
}

func (h *Handshake) requestSignature(ctx context.Context) error {
	rec, err := h.deps.Keys.FindKey(ctx, h.owner)
	if err != nil {
		return apperrors.ErrStorageFailure.Wrap(err)
	}
	if rec == nil {
		return apperrors.ErrOwnerKeyNotFound
	}
	if !h.deps.Signer.Supports(rec.KeyType) {
		return apperrors.ErrUnsupportedSignerType.WithDetail(fmt.Sprintf("key type %s", rec.KeyType))
	}

	sig, err := h.deps.Signer.Sign(ctx, h.Message(), signer.Request{
		Owner:    h.owner,
		Title:    SignTitle,
		Tracking: map[string]string{"action": "confirm_push"},
	})
	if err != nil {
		return signerError(err)
	}

	recovered, err := crypto.RecoverSigner(h.Message(), sig, h.owner)
	if err != nil {
		return apperrors.SignerOther(err.Error())
	}
	if recovered != h.owner {
		return apperrors.SignerOther(fmt.Sprintf("signature recovers to %s", recovered.Hex()))
	}

	h.mu.Lock()
	h.signature = slices.Clone(sig)
	h.mu.Unlock()
	return nil
}

func signerError(err error) error {
	switch {
	case errors.Is(err, signer.ErrCancelled), errors.Is(err, context.Canceled):
		return apperrors.ErrSigningCancelled.Wrap(err)
	case errors.Is(err, signer.ErrUnsupported):
		return apperrors.ErrUnsupportedSignerType.Wrap(err)
	}
	return apperrors.SignerOther(err.Error())
}

// registerWithBackend fires one registration per chain and waits for all of
// them or the timeout, whichever comes first. The caller's cancellation does
// not reach the calls; they are cancelled once the barrier resolves.
func (h *Handshake) registerWithBackend(ctx context.Context) error {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	start := h.cfg.Clock.Now()
	timer := h.cfg.Clock.Timer(h.cfg.BackendTimeout)
	defer timer.Stop()

	h.mu.RLock()
	base := gateway.CreateDelegateRequest{
		Owner:     h.owner,
		Delegate:  h.key.Address,
		Signature: slices.Clone(h.signature),
		Label:     h.cfg.Label,
	}
	h.mu.RUnlock()

	chains := h.cfg.Chains
	errs := make([]error, len(chains))
	var wg sync.WaitGroup
	for i, chainID := range chains {
		wg.Add(1)
		go func(i int, chainID string) {
			defer wg.Done()
			req := base
			req.ChainID = chainID
			err := h.deps.Backend.CreateDelegate(callCtx, req)
			h.deps.Metrics.ObserveBackendCall(chainID, err)
			if err != nil {
				logger.Debug(ctx, "create delegate failed", "owner", h.owner.Hex(), "chain_id", chainID, "error", err)
				errs[i] = fmt.Errorf("chain %s: %w", chainID, err)
			}
		}(i, chainID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.deps.Metrics.ObserveBarrier(h.cfg.Clock.Since(start))
		var failed []string
		for i, err := range errs {
			if err != nil {
				failed = append(failed, chains[i])
			}
		}
		if err := multierr.Combine(errs...); err != nil {
			logger.Warn(ctx, "delegate registration failed on some chains",
				"owner", h.owner.Hex(),
				"failed_chains", failed,
				"error", err,
			)
		}
		h.mu.Lock()
		h.failedChains = failed
		h.mu.Unlock()
		return nil
	case <-timer.C:
		h.deps.Metrics.ObserveBarrier(h.cfg.Clock.Since(start))
		return apperrors.ErrBackendTimeout.WithDetail(fmt.Sprintf("not all of %d registrations finished within %s", len(chains), h.cfg.BackendTimeout))
	}
}

// complete attaches the delegate to the owner record and stores the private
// key. A storage failure reverts the record; the gateway registration stays.
func (h *Handshake) complete(ctx context.Context) error {
	rec, err := h.deps.Keys.FindKey(ctx, h.owner)
	if err != nil {
		return apperrors.ErrStorageFailure.Wrap(err)
	}
	if rec == nil {
		return apperrors.ErrOwnerKeyNotFound
	}

	h.mu.RLock()
	key := h.key
	h.mu.RUnlock()

	rec.SetDelegate(key.Address)
	if err := h.deps.Secure.SaveKey(ctx, key.PrivateKey); err != nil {
		rec.Rollback()
		return apperrors.ErrStorageFailure.Wrap(err)
	}
	if err := h.deps.Keys.Save(ctx, rec); err != nil {
		rec.Rollback()
		return apperrors.ErrStorageFailure.Wrap(err)
	}
	rec.Commit()

	logger.Info(ctx, "delegate key registered",
		"owner", h.owner.Hex(),
		"delegate", key.Address.Hex(),
		"chains", len(h.cfg.Chains),
	)

	h.deps.Notifier.Post(ctx, notify.Event{Kind: notify.KeyUpdated, Owner: h.owner, Delegate: key.Address})
	h.RequestPushRegistration(ctx)
	return nil
}
