package flow

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/layer-3/flowauth/core"
	sdk "github.com/onflow/flow-go-sdk"
	"github.com/onflow/flow-go-sdk/crypto"
	"github.com/stretchr/testify/require"
)

const (
	testAddress = "0xf8d6e0586b0a20c7"
	testAppID   = "DAO LLC Governance Portal (v0.1)"
	testNonce   = "3037366134636339643564666533303135333831316238373461376530356232"
)

type testKey struct {
	private  crypto.PrivateKey
	signer   crypto.Signer
	hashAlgo crypto.HashAlgorithm
}

func newTestKey(t *testing.T, sigAlgo crypto.SignatureAlgorithm, hashAlgo crypto.HashAlgorithm) *testKey {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)

	private, err := crypto.GeneratePrivateKey(sigAlgo, seed)
	require.NoError(t, err)

	signer, err := NewSigner(hex.EncodeToString(private.Encode()), sigAlgo.String(), hashAlgo.String())
	require.NoError(t, err)

	return &testKey{private: private, signer: signer, hashAlgo: hashAlgo}
}

func newP256Key(t *testing.T, hashAlgo crypto.HashAlgorithm) *testKey {
	return newTestKey(t, crypto.ECDSA_P256, hashAlgo)
}

func newSecp256k1Key(t *testing.T, hashAlgo crypto.HashAlgorithm) *testKey {
	return newTestKey(t, crypto.ECDSA_secp256k1, hashAlgo)
}

// accountKey is the verifier's view of k
func (k *testKey) accountKey(index, weight int) AccountKey {
	return AccountKey{
		Index:     index,
		PublicKey: k.private.PublicKey().Encode(),
		SigAlgo:   k.private.Algorithm().String(),
		HashAlgo:  k.hashAlgo.String(),
		Weight:    weight,
	}
}

// sdkKey is k as the access node reports it
func (k *testKey) sdkKey(index, weight int, sequence uint64) *sdk.AccountKey {
	return &sdk.AccountKey{
		Index:          index,
		PublicKey:      k.private.PublicKey(),
		SigAlgo:        k.private.Algorithm(),
		HashAlgo:       k.hashAlgo,
		Weight:         weight,
		SequenceNumber: sequence,
	}
}

// sign signs tag || message
func (k *testKey) sign(t *testing.T, tag, message []byte) []byte {
	t.Helper()
	sig, err := k.signer.Sign(append(append([]byte{}, tag...), message...))
	require.NoError(t, err)
	return sig
}

func testProof(t *testing.T, key *testKey) *core.AccountProof {
	t.Helper()
	return &core.AccountProof{
		Address:    testAddress,
		Nonce:      testNonce,
		KeyIDs:     []int{0},
		Signatures: []string{signProof(t, key, testAppID, testAddress, testNonce)},
	}
}

func signProof(t *testing.T, key *testKey, appID, address, nonce string) string {
	t.Helper()
	message, err := EncodeAccountProof(appID, address, nonce)
	require.NoError(t, err)
	return hex.EncodeToString(key.sign(t, UserDomainTag, message))
}
