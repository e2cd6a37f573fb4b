package crypto

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Signer is a secp256k1 signer for EVM-style chain owners. It signs with the
// personal-message scheme (EIP-191) wallet extensions use, so signatures it
// produces verify the same way a browser wallet's would.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return newSigner(pk), nil
}

// GenerateSigner creates a Signer over a fresh random key.
func GenerateSigner() (*Signer, error) {
	pk, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: generate key: %w", err)
	}
	return newSigner(pk), nil
}

func (s *Signer) keyHex() string {
	return hex.EncodeToString(ethcrypto.FromECDSA(s.privateKey))
}

func newSigner(pk *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
}

// Address returns the owner address in the lower-case form the chain uses.
func (s *Signer) Address(_ context.Context) (string, error) {
	return NormalizeOwner(s.address.Hex()), nil
}

// ContainsKey reports whether owner is the address of this signer's key.
func (s *Signer) ContainsKey(_ context.Context, owner string) (bool, error) {
	if !common.IsHexAddress(owner) {
		return false, nil
	}
	return common.HexToAddress(owner) == s.address, nil
}

// Sign signs msg on behalf of owner and returns a 0x-prefixed 65-byte
// signature (r || s || v with v in {27,28}).
func (s *Signer) Sign(ctx context.Context, owner string, msg []byte) (string, error) {
	ok, err := s.ContainsKey(ctx, owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("crypto/signer: %w: %s", domain.ErrUnknownOwner, owner)
	}

	sig, err := ethcrypto.Sign(accounts.TextHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverOwner returns the owner address that produced sigHex over msg.
func RecoverOwner(msg []byte, sigHex string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("crypto/signer: signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return NormalizeOwner(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

// NormalizeOwner lower-cases an owner address and ensures the 0x prefix.
func NormalizeOwner(owner string) string {
	o := strings.ToLower(strings.TrimSpace(owner))
	if !strings.HasPrefix(o, "0x") {
		o = "0x" + o
	}
	return o
}

var _ domain.Signer = (*Signer)(nil)
