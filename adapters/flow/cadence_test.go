package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xf8d6e0586b0a20c7", "f8d6e0586b0a20c7"},
		{"F8D6E0586B0A20C7", "f8d6e0586b0a20c7"},
		{"0x1", "0000000000000001"},
	}
	for _, tt := range tests {
		addr, err := ToAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, addr.Hex())
	}

	for _, bad := range []string{"", "0x", "0xzz", "0x0102030405060708ff"} {
		_, err := ToAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestCadenceArguments(t *testing.T) {
	arg, err := AddressArg("f8d6e0586b0a20c7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Address","value":"0xf8d6e0586b0a20c7"}`, string(arg))

	arg, err = UIntArg(2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"UInt","value":"2"}`, string(arg))

	arg, err = StringArg("pub contract X {}\n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"String","value":"pub contract X {}\n"}`, string(arg))

	_, err = AddressArg("nope")
	assert.Error(t, err)

	_, err = StringArg("\xff")
	assert.Error(t, err)
}
