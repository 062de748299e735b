// Package validation checks identifiers that arrive from configuration and
// from the HTTP API.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateEthereumAddress validates an Ethereum address. Mixed-case input
// must carry a valid EIP-55 checksum.
func ValidateEthereumAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}

	hex := address[2:]
	if hex != strings.ToLower(hex) && hex != strings.ToUpper(hex) {
		if common.HexToAddress(address).Hex() != address {
			return fmt.Errorf("invalid address checksum")
		}
	}

	if common.HexToAddress(address) == (common.Address{}) {
		return fmt.Errorf("zero address is not allowed")
	}

	return nil
}

// ValidateChainID validates a decimal chain id as used by the gateway
func ValidateChainID(id string) error {
	if id == "" {
		return fmt.Errorf("chain ID cannot be empty")
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || strconv.FormatUint(n, 10) != id {
		return fmt.Errorf("chain ID must be a decimal number: %q", id)
	}
	if n == 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	return nil
}

// ValidateChainIDs validates a non-empty list of distinct chain ids
func ValidateChainIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one chain ID is required")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if err := ValidateChainID(id); err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate chain ID %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
