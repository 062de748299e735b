// Package push keeps the device push notification registration in sync with
// the delegate keys of the owner keys.
package push

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/better-wallet/webconnect/internal/gateway"
	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/notify"
	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessagePrefix starts every registration preimage
const MessagePrefix = "gnosis-safe"

// DefaultDeviceType is reported when none is configured
const DefaultDeviceType = "IOS"

// KeyLoader loads delegate private keys, nil when absent
type KeyLoader interface {
	LoadKey(ctx context.Context, addr common.Address) (*ecdsa.PrivateKey, error)
}

// OwnerKeyLister lists the owner keys
type OwnerKeyLister interface {
	List(ctx context.Context) ([]*types.OwnerKey, error)
}

// Gateway registers devices
type Gateway interface {
	RegisterDevice(ctx context.Context, req gateway.RegisterDeviceRequest) error
}

// Config identifies the device
type Config struct {
	DeviceID   string
	PushToken  string
	DeviceType string
	Chains     []string
	Clock      clock.Clock
}

// Registrar registers the device with every delegate key it holds
type Registrar struct {
	keys    OwnerKeyLister
	secrets KeyLoader
	gw      Gateway
	cfg     Config

	wg sync.WaitGroup
}

// NewRegistrar creates a registrar
func NewRegistrar(keys OwnerKeyLister, secrets KeyLoader, gw Gateway, cfg Config) *Registrar {
	if cfg.DeviceType == "" {
		cfg.DeviceType = DefaultDeviceType
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = types.DefaultDelegateChains
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Registrar{keys: keys, secrets: secrets, gw: gw, cfg: cfg}
}

// Subscribe attaches the registrar to the center
func (r *Registrar) Subscribe(c *notify.Center) {
	c.Subscribe(notify.PushRegistrationNeeded, r.Handle)
}

// Handle starts a registration in the background. Errors are logged.
func (r *Registrar) Handle(ctx context.Context, ev notify.Event) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Register(ctx); err != nil {
			logger.Warn(ctx, "push registration failed", "owner", ev.Owner.Hex(), "error", err)
		}
	}()
}

// Wait blocks until background registrations finished
func (r *Registrar) Wait() {
	r.wg.Wait()
}

// Register signs the registration with every stored delegate key and sends
// it to the gateway. Without a push token there is nothing to register.
func (r *Registrar) Register(ctx context.Context) error {
	if r.cfg.PushToken == "" {
		logger.Debug(ctx, "push registration skipped, no push token")
		return nil
	}

	owners, err := r.keys.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owner keys: %w", err)
	}

	timestamp := strconv.FormatInt(r.cfg.Clock.Now().Unix(), 10)
	hash := Message(timestamp, r.cfg.DeviceID, r.cfg.PushToken)

	req := gateway.RegisterDeviceRequest{
		DeviceID:   r.cfg.DeviceID,
		PushToken:  r.cfg.PushToken,
		DeviceType: r.cfg.DeviceType,
		Timestamp:  timestamp,
		ChainIDs:   append([]string(nil), r.cfg.Chains...),
		Delegates:  []string{},
		Signatures: []string{},
	}

	for _, owner := range owners {
		if owner.DelegateAddress == nil {
			continue
		}
		delegate := *owner.DelegateAddress
		key, err := r.secrets.LoadKey(ctx, delegate)
		if err != nil {
			return fmt.Errorf("failed to load delegate key %s: %w", delegate.Hex(), err)
		}
		if key == nil {
			logger.Warn(ctx, "delegate key missing from secure storage", "owner", owner.Address.Hex(), "delegate", delegate.Hex())
			continue
		}

		sig, err := crypto.Sign(hash, key)
		if err != nil {
			return fmt.Errorf("failed to sign registration: %w", err)
		}
		sig[crypto.RecoveryIDOffset] += 27

		req.Delegates = append(req.Delegates, delegate.Hex())
		req.Signatures = append(req.Signatures, hexutil.Encode(sig))
	}

	if err := r.gw.RegisterDevice(ctx, req); err != nil {
		return err
	}
	logger.Info(ctx, "push registration sent", "delegates", len(req.Delegates), "chains", len(req.ChainIDs))
	return nil
}

// Message is the keccak256 hash signed by each delegate key
func Message(timestamp, deviceID, token string) []byte {
	return crypto.Keccak256([]byte(MessagePrefix + timestamp + deviceID + token))
}
