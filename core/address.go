package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size of a Flow account address in bytes
const AddressLength = 8

// NormalizeAddress returns the canonical form of a Flow address: 0x followed by
// 16 lowercase hex digits. The prefix and leading zeros are optional on input.
func NormalizeAddress(address string) (string, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	if s == "" || len(s) > 2*AddressLength {
		return "", fmt.Errorf("invalid flow address %q", address)
	}
	s = strings.Repeat("0", 2*AddressLength-len(s)) + s

	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid flow address %q: %w", address, err)
	}
	return "0x" + s, nil
}
