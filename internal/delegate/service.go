package delegate

import (
	"context"
	"sync"

	"github.com/better-wallet/webconnect/internal/logger"
	apperrors "github.com/better-wallet/webconnect/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
)

// Service runs delegate handshakes, at most one per owner at a time
type Service struct {
	deps       Deps
	cfg        Config
	dispatcher Dispatcher

	mu       sync.Mutex
	inFlight map[common.Address]*Handshake
}

// NewService creates a service. A nil dispatcher delivers completions on the
// goroutine that ran the handshake.
func NewService(deps Deps, cfg Config, dispatcher Dispatcher) *Service {
	return &Service{
		deps:       deps,
		cfg:        cfg.withDefaults(),
		dispatcher: dispatcher,
		inFlight:   make(map[common.Address]*Handshake),
	}
}

// Chains returns the chains delegates are registered on
func (s *Service) Chains() []string {
	return append([]string(nil), s.cfg.Chains...)
}

// Register runs a handshake for owner and waits for its outcome
func (s *Service) Register(ctx context.Context, owner common.Address) (*Result, error) {
	h, err := s.acquire(owner)
	if err != nil {
		return nil, err
	}
	defer s.release(owner)

	return s.run(ctx, h)
}

// Start runs a handshake for owner in the background. completion is called
// exactly once, on the service dispatcher. Start fails immediately when a
// handshake for owner is already running.
func (s *Service) Start(ctx context.Context, owner common.Address, completion func(*Result, error)) error {
	h, err := s.acquire(owner)
	if err != nil {
		return err
	}

	var once sync.Once
	deliver := func(res *Result, err error) {
		once.Do(func() {
			if completion == nil {
				return
			}
			if s.dispatcher == nil {
				completion(res, err)
				return
			}
			s.dispatcher.Dispatch(func() { completion(res, err) })
		})
	}

	go func() {
		res, err := s.run(ctx, h)
		s.release(owner)
		deliver(res, err)
	}()
	return nil
}

// Running reports the state of the handshake in flight for owner
func (s *Service) Running(owner common.Address) (State, bool) {
	s.mu.Lock()
	h, ok := s.inFlight[owner]
	s.mu.Unlock()
	if !ok {
		return StateIdle, false
	}
	return h.State(), true
}

// RequestPushRegistration asks for the device push registration to be
// refreshed without running a handshake
func (s *Service) RequestPushRegistration(ctx context.Context, owner common.Address) {
	NewHandshake(owner, s.deps, s.cfg).RequestPushRegistration(ctx)
}

func (s *Service) run(ctx context.Context, h *Handshake) (*Result, error) {
	start := s.cfg.Clock.Now()
	logger.Info(ctx, "delegate handshake started", "owner", h.Owner().Hex())

	res, err := h.Run(ctx)

	result := "success"
	if err != nil {
		result = apperrors.From(err).Code
	}
	s.deps.Metrics.ObserveHandshake(result, s.cfg.Clock.Since(start))
	return res, err
}

func (s *Service) acquire(owner common.Address) (*Handshake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[owner]; busy {
		return nil, apperrors.ErrHandshakeInProgress.WithDetail(owner.Hex())
	}
	h := NewHandshake(owner, s.deps, s.cfg)
	s.inFlight[owner] = h
	return h, nil
}

func (s *Service) release(owner common.Address) {
	s.mu.Lock()
	delete(s.inFlight, owner)
	s.mu.Unlock()
}
