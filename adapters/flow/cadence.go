package flow

import (
	"fmt"

	"github.com/onflow/cadence"
	jsoncdc "github.com/onflow/cadence/encoding/json"
)

func encodeArg(v cadence.Value) ([]byte, error) {
	b, err := jsoncdc.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cadence argument: %w", err)
	}
	return b, nil
}

// AddressArg encodes a Cadence Address argument
func AddressArg(address string) ([]byte, error) {
	addr, err := ToAddress(address)
	if err != nil {
		return nil, err
	}
	return encodeArg(cadence.Address(addr))
}

// UIntArg encodes a Cadence UInt argument
func UIntArg(v uint64) ([]byte, error) {
	return encodeArg(cadence.NewUInt(uint(v)))
}

// StringArg encodes a Cadence String argument
func StringArg(s string) ([]byte, error) {
	str, err := cadence.NewString(s)
	if err != nil {
		return nil, err
	}
	return encodeArg(str)
}
