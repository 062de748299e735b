// Package signer defines the owner-key signer used to authorize delegate
// keys and a broker that hands sign requests to a remote device.
package signer

import (
	"context"
	"errors"

	"github.com/better-wallet/webconnect/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrCancelled is returned when the user declines to sign
	ErrCancelled = errors.New("signing cancelled by user")

	// ErrUnsupported is returned when the signer can not sign with the owner key
	ErrUnsupported = errors.New("signer does not support this key")
)

// Request carries the context shown to the user while signing
type Request struct {
	Owner    common.Address
	Title    string
	Tracking map[string]string
}

// Signer signs a message with an owner key
type Signer interface {
	// Supports reports whether keys of type t can be signed with. It must not
	// contact the device.
	Supports(t types.KeyType) bool

	// Sign returns a 65-byte [R || S || V] signature of message
	Sign(ctx context.Context, message []byte, req Request) ([]byte, error)
}
