package permit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// DefaultDomainName is the EIP-712 name of SushiSwap LP tokens.
	DefaultDomainName = "SushiSwap LP Token"
	DomainVersion     = "1"
)

var ErrInvalidSignature = errors.New("invalid signature")

var permitTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Permit": {
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// Signature is a split permit signature together with the deadline it was
// signed for. It authorizes exactly one removal.
type Signature struct {
	V        uint8
	R        [32]byte
	S        [32]byte
	Deadline *big.Int
}

// Request describes an LP token permit for the router.
type Request struct {
	ChainID    *big.Int
	Pair       common.Address
	DomainName string
	Owner      common.Address
	Spender    common.Address
	Value      *big.Int
	Nonce      *big.Int
	Deadline   *big.Int
}

// HashSigner signs a 32-byte digest, returning [R || S || V].
type HashSigner interface {
	Confirm(summary string) error
	SignHash(hash []byte) ([]byte, error)
}

// TypedData builds the EIP-712 payload for a request.
func TypedData(req Request) apitypes.TypedData {
	name := req.DomainName
	if name == "" {
		name = DefaultDomainName
	}
	return apitypes.TypedData{
		Types:       permitTypes,
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(req.ChainID)),
			VerifyingContract: req.Pair.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"owner":    req.Owner.Hex(),
			"spender":  req.Spender.Hex(),
			"value":    req.Value.String(),
			"nonce":    req.Nonce.String(),
			"deadline": req.Deadline.String(),
		},
	}
}

// Digest returns the EIP-712 hash that gets signed.
func Digest(req Request) ([]byte, error) {
	if req.ChainID == nil || req.Value == nil || req.Nonce == nil || req.Deadline == nil {
		return nil, fmt.Errorf("permit request is incomplete")
	}
	hash, _, err := apitypes.TypedDataAndHash(TypedData(req))
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return hash, nil
}

// Sign asks signer to approve and sign the permit.
func Sign(req Request, signer HashSigner) (*Signature, error) {
	digest, err := Digest(req)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("permit %s to spend %s LP of %s until %s", req.Spender.Hex(), req.Value, req.Pair.Hex(), req.Deadline)
	if err := signer.Confirm(summary); err != nil {
		return nil, err
	}
	raw, err := signer.SignHash(digest)
	if err != nil {
		return nil, err
	}
	return Split(raw, req.Deadline)
}

// Split converts a 65-byte [R || S || V] signature into its parts. V is
// normalized to 27 or 28.
func Split(raw []byte, deadline *big.Int) (*Signature, error) {
	if len(raw) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(raw))
	}
	sig := &Signature{V: raw[64], Deadline: new(big.Int).Set(deadline)}
	if sig.V < 27 {
		sig.V += 27
	}
	if sig.V != 27 && sig.V != 28 {
		return nil, fmt.Errorf("%w: v=%d", ErrInvalidSignature, raw[64])
	}
	copy(sig.R[:], raw[:32])
	copy(sig.S[:], raw[32:64])
	return sig, nil
}

// Recover returns the address that produced sig over the request.
func Recover(req Request, sig *Signature) (common.Address, error) {
	digest, err := Digest(req)
	if err != nil {
		return common.Address{}, err
	}
	raw := make([]byte, crypto.SignatureLength)
	copy(raw[:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = sig.V - 27
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
