package flow

import (
	"encoding/hex"

	"github.com/layer-3/flowauth/core"
	sdk "github.com/onflow/flow-go-sdk"
)

// DecodeAddress parses a hex Flow address, with or without 0x prefix, into 8 bytes
func DecodeAddress(address string) ([]byte, error) {
	normalized, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(normalized[2:])
}

// ToAddress parses address into the SDK address type.
// Unlike sdk.HexToAddress it rejects malformed input.
func ToAddress(address string) (sdk.Address, error) {
	b, err := DecodeAddress(address)
	if err != nil {
		return sdk.EmptyAddress, err
	}
	return sdk.BytesToAddress(b), nil
}
