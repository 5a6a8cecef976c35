package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUserRejected is returned when the account holder declines a request.
var ErrUserRejected = errors.New("user rejected the request")

// ConfirmFunc asks the account holder to approve a request described by
// summary. Returning false rejects it.
type ConfirmFunc func(summary string) bool

// Signer holds a local private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	confirm ConfirmFunc
}

// NewSigner parses a hex private key. A nil confirm approves every request.
func NewSigner(hexKey string, confirm ConfirmFunc) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return FromKey(key, confirm), nil
}

func FromKey(key *ecdsa.PrivateKey, confirm ConfirmFunc) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		confirm: confirm,
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Confirm runs the confirmation hook and maps a refusal to ErrUserRejected.
func (s *Signer) Confirm(summary string) error {
	if s.confirm != nil && !s.confirm(summary) {
		return ErrUserRejected
	}
	return nil
}

// SignHash signs a 32-byte digest, returning [R || S || V] with V in {0, 1}.
func (s *Signer) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != common.HashLength {
		return nil, fmt.Errorf("hash must be %d bytes, got %d", common.HashLength, len(hash))
	}
	return crypto.Sign(hash, s.key)
}

func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewLondonSigner(chainID), s.key)
}
