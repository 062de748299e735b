package types

// KeyType identifies how an owner key signs
type KeyType string

// KeyType constants
const (
	KeyTypeDeviceImported  KeyType = "device_imported"
	KeyTypeDeviceGenerated KeyType = "device_generated"
	KeyTypeWalletConnect   KeyType = "wallet_connect"
	KeyTypeLedgerNanoX     KeyType = "ledger_nano_x"
)

// IsValid reports whether k is one of the known key types
func (k KeyType) IsValid() bool {
	switch k {
	case KeyTypeDeviceImported, KeyTypeDeviceGenerated, KeyTypeWalletConnect, KeyTypeLedgerNanoX:
		return true
	}
	return false
}

// CanPair reports whether a key of this type may be offered to a desktop
// pairing. Keys that are themselves connected over WalletConnect can not.
func (k KeyType) CanPair() bool {
	return k != KeyTypeWalletConnect
}

// Chain id constants
const (
	ChainIDEthereumMainnet = 1
)

// DefaultDelegateChains is the chain list delegates are registered on when
// nothing else is configured.
var DefaultDelegateChains = []string{"1", "10", "56", "100", "137", "42161", "43114", "8453"}
