package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEthereumAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid lowercase address",
			address: "0x9858effd232b4033e47d90003d41ec34ecaeda94",
		},
		{
			name:    "valid uppercase address",
			address: "0x9858EFFD232B4033E47D90003D41EC34ECAEDA94",
		},
		{
			name:    "valid checksum address",
			address: "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
		},
		{
			name:    "bad checksum",
			address: "0x9858EfFD232B4033E47d90003D41EC34EcaEda9A",
			wantErr: true,
			errMsg:  "checksum",
		},
		{
			name:    "empty address",
			address: "",
			wantErr: true,
			errMsg:  "address cannot be empty",
		},
		{
			name:    "missing prefix",
			address: "9858effd232b4033e47d90003d41ec34ecaeda94",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "too short",
			address: "0x9858effd",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "zero address",
			address: "0x0000000000000000000000000000000000000000",
			wantErr: true,
			errMsg:  "zero address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEthereumAddress(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateChainID(t *testing.T) {
	for _, id := range []string{"1", "100", "42161", "11155111"} {
		assert.NoError(t, ValidateChainID(id), id)
	}
	for _, id := range []string{"", "0", "-1", "0x1", "01", "1.0", " 1"} {
		assert.Error(t, ValidateChainID(id), id)
	}
}

func TestValidateChainIDs(t *testing.T) {
	assert.NoError(t, ValidateChainIDs([]string{"1", "10", "100"}))
	assert.Error(t, ValidateChainIDs(nil))
	assert.Error(t, ValidateChainIDs([]string{"1", "1"}))
	assert.Error(t, ValidateChainIDs([]string{"1", "x"}))
}
