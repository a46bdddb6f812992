package flow

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Signature and hash algorithm names as reported by the access node
const (
	SigAlgoP256      = "ECDSA_P256"
	SigAlgoSecp256k1 = "ECDSA_secp256k1"

	HashAlgoSHA2 = "SHA2_256"
	HashAlgoSHA3 = "SHA3_256"
)

const domainTagLength = 32

var (
	// UserDomainTag prefixes messages signed by user keys
	UserDomainTag = paddedDomainTag("FLOW-V0.0-user")

	// TransactionDomainTag prefixes transaction payloads and envelopes
	TransactionDomainTag = paddedDomainTag("FLOW-V0.0-transaction")
)

func paddedDomainTag(tag string) []byte {
	b := make([]byte, domainTagLength)
	copy(b, tag)
	return b
}

func newHasher(hashAlgo string) (hash.Hash, error) {
	switch hashAlgo {
	case HashAlgoSHA2:
		return sha256.New(), nil
	case HashAlgoSHA3:
		return sha3.New256(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", hashAlgo)
	}
}

// digest hashes tag || message with the given algorithm
func digest(hashAlgo string, tag, message []byte) ([]byte, error) {
	h, err := newHasher(hashAlgo)
	if err != nil {
		return nil, err
	}
	h.Write(tag)
	h.Write(message)
	return h.Sum(nil), nil
}

func curveFor(sigAlgo string) (elliptic.Curve, error) {
	switch sigAlgo {
	case SigAlgoP256:
		return elliptic.P256(), nil
	case SigAlgoSecp256k1:
		return crypto.S256(), nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", sigAlgo)
	}
}

// decodeHex accepts hex with or without 0x prefix
func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// verifySignature checks a raw r||s signature over digest(tag || message)
func verifySignature(key AccountKey, tag, message, signature []byte) bool {
	curve, err := curveFor(key.SigAlgo)
	if err != nil {
		return false
	}
	size := (curve.Params().BitSize + 7) / 8
	if len(key.PublicKey) != 2*size || len(signature) != 2*size {
		return false
	}

	sum, err := digest(key.HashAlgo, tag, message)
	if err != nil {
		return false
	}

	r := new(big.Int).SetBytes(signature[:size])
	s := new(big.Int).SetBytes(signature[size:])

	if key.SigAlgo == SigAlgoSecp256k1 {
		// go-ethereum only accepts low-S signatures; (r, n-s) is equally valid
		n := curve.Params().N
		if s.Cmp(new(big.Int).Rsh(n, 1)) > 0 {
			s.Sub(n, s)
		}
		sig := make([]byte, 2*size)
		r.FillBytes(sig[:size])
		s.FillBytes(sig[size:])
		return crypto.VerifySignature(append([]byte{0x04}, key.PublicKey...), sum, sig)
	}

	x := new(big.Int).SetBytes(key.PublicKey[:size])
	y := new(big.Int).SetBytes(key.PublicKey[size:])
	if !curve.IsOnCurve(x, y) {
		return false
	}
	return ecdsa.Verify(&ecdsa.PublicKey{Curve: curve, X: x, Y: y}, sum, r, s)
}
