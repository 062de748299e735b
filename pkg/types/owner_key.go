package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// OwnerKey is a locally known owner key and the delegate registered for it
type OwnerKey struct {
	ID              uuid.UUID       `json:"id"`
	Address         common.Address  `json:"address"`
	Name            string          `json:"name"`
	KeyType         KeyType         `json:"key_type"`
	DelegateAddress *common.Address `json:"delegate_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// snapshot of DelegateAddress taken by the first SetDelegate since the
	// last Commit or Rollback
	prevDelegate *common.Address
	dirty        bool
}

// SetDelegate attaches a delegate address. The previous value is kept until
// Commit or Rollback.
func (k *OwnerKey) SetDelegate(addr common.Address) {
	if !k.dirty {
		k.prevDelegate = k.DelegateAddress
		k.dirty = true
	}
	a := addr
	k.DelegateAddress = &a
}

// Rollback reverts the delegate address to its value before SetDelegate
func (k *OwnerKey) Rollback() {
	if !k.dirty {
		return
	}
	k.DelegateAddress = k.prevDelegate
	k.prevDelegate = nil
	k.dirty = false
}

// Commit drops the rollback snapshot after a successful save
func (k *OwnerKey) Commit() {
	k.prevDelegate = nil
	k.dirty = false
}

// HasChanges reports whether SetDelegate was called since the last Commit or Rollback
func (k *OwnerKey) HasChanges() bool {
	return k.dirty
}

// Clone returns a copy without the rollback snapshot
func (k *OwnerKey) Clone() *OwnerKey {
	cp := *k
	if k.DelegateAddress != nil {
		a := *k.DelegateAddress
		cp.DelegateAddress = &a
	}
	cp.prevDelegate = nil
	cp.dirty = false
	return &cp
}
