package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityDesk/internal/amount"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeBackend struct {
	sent *types.Transaction
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10)}, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = tx
	return nil
}

func TestSignHashRecovers(t *testing.T) {
	signer, err := NewSigner("0x"+testKey, nil)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	hash := crypto.Keccak256([]byte("liquidity"))
	sig, err := signer.SignHash(hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != signer.Address() {
		t.Fatalf("recovered address mismatch")
	}
	if _, err := signer.SignHash([]byte{1, 2}); err == nil {
		t.Fatalf("expected error for short digest")
	}
}

func TestSubmitterSendsDynamicFeeTx(t *testing.T) {
	signer, err := NewSigner(testKey, nil)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	backend := &fakeBackend{}
	submitter := NewSubmitter(backend, signer, amount.NativeCurrency(1, "ETH"), nil)

	to := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	hash, err := submitter.Submit(context.Background(), to, []byte{0xde, 0xad}, big.NewInt(5), 110000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	tx := backend.sent
	if tx == nil || tx.Hash() != hash {
		t.Fatalf("sent tx mismatch")
	}
	if tx.Nonce() != 7 || tx.Gas() != 110000 || tx.GasFeeCap().Int64() != 22 || tx.Value().Int64() != 5 {
		t.Fatalf("unexpected tx fields: nonce=%d gas=%d feeCap=%s value=%s", tx.Nonce(), tx.Gas(), tx.GasFeeCap(), tx.Value())
	}
	from, err := types.Sender(types.NewLondonSigner(big.NewInt(1)), tx)
	if err != nil || from != signer.Address() {
		t.Fatalf("sender mismatch: %s err=%v", from.Hex(), err)
	}
}

func TestSubmitterRejected(t *testing.T) {
	var prompted string
	signer, err := NewSigner(testKey, func(summary string) bool {
		prompted = summary
		return false
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	backend := &fakeBackend{}
	submitter := NewSubmitter(backend, signer, amount.NativeCurrency(1, "ETH"), nil)

	_, err = submitter.Submit(context.Background(), common.Address{}, nil, nil, 21000)
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	if backend.sent != nil || prompted == "" {
		t.Fatalf("rejected request must not be sent")
	}
}
