package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityDesk/internal/analytics"
	"liquidityDesk/internal/intent"
	"liquidityDesk/internal/liquidity"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/permit"
	"liquidityDesk/internal/wallet"
)

var (
	router  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	account = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	txHash  = common.HexToHash("0xabc1")
)

type fakeSubmitter struct {
	hash  common.Hash
	err   error
	calls int
	value *big.Int
}

func (s *fakeSubmitter) Submit(_ context.Context, _ common.Address, _ []byte, value *big.Int, _ uint64) (common.Hash, error) {
	s.calls++
	s.value = value
	return s.hash, s.err
}

type rpcCodeError struct{ code int }

func (e rpcCodeError) Error() string  { return "rpc error" }
func (e rpcCodeError) ErrorCode() int { return e.code }

type recordingHistory struct {
	mu   sync.Mutex
	recs []model.TransactionRecord
}

func (h *recordingHistory) PutTransaction(_ context.Context, rec model.TransactionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	return nil
}

type recordingEvents struct {
	events []analytics.Event
}

func (r *recordingEvents) Track(event analytics.Event) { r.events = append(r.events, event) }

type fakeReceipts struct {
	receipt *types.Receipt
}

func (f fakeReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func preparedFor(method string, gotSig **permit.Signature) PrepareFunc {
	return func(_ context.Context, sig *permit.Signature) (*Prepared, error) {
		if gotSig != nil {
			*gotSig = sig
		}
		return &Prepared{
			Selection: &intent.Selection{
				Intent:   intent.Intent{Method: method, Value: big.NewInt(7)},
				To:       router,
				Data:     []byte{0x01},
				GasLimit: 110000,
			},
			Summary: "Add 1 TKA and 2 TKB",
			Event:   analytics.Event{Category: analytics.CategoryLiquidity, Action: analytics.ActionAdd, Label: "TKA/TKB"},
		}, nil
	}
}

func TestSubmitSuccessRecordsHashHistoryAndEvent(t *testing.T) {
	sub := &fakeSubmitter{hash: txHash}
	history := &recordingHistory{}
	events := &recordingEvents{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := New(Config{ChainID: 1, From: account, Submitter: sub, History: history, Events: events, Now: func() time.Time { return now }})

	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.Phase() != AwaitingConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", f.Phase())
	}
	hash, err := f.Submit(context.Background(), preparedFor(intent.MethodAddLiquidity, nil))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash != txHash || f.Hash() != txHash || f.Phase() != Success || !f.Attempting() {
		t.Fatalf("unexpected state: hash=%s phase=%s", hash.Hex(), f.Phase())
	}
	if sub.value.Int64() != 7 {
		t.Fatalf("value not forwarded: %s", sub.value)
	}
	if len(history.recs) != 1 {
		t.Fatalf("expected one history record, got %d", len(history.recs))
	}
	rec := history.recs[0]
	if rec.Hash != txHash.Hex() || rec.Status != model.TxStatusSubmitted || rec.Method != intent.MethodAddLiquidity || rec.SubmittedAt != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(events.events) != 1 || events.events[0].Label != "TKA/TKB" {
		t.Fatalf("unexpected events: %+v", events.events)
	}
}

func TestSubmitUserRejectionReturnsToConfirmation(t *testing.T) {
	for name, rejection := range map[string]error{
		"wallet": wallet.ErrUserRejected,
		"rpc":    rpcCodeError{code: 4001},
	} {
		t.Run(name, func(t *testing.T) {
			history := &recordingHistory{}
			f := New(Config{Submitter: &fakeSubmitter{err: rejection}, History: history})
			if err := f.Open(); err != nil {
				t.Fatalf("open: %v", err)
			}
			hash, err := f.Submit(context.Background(), preparedFor(intent.MethodAddLiquidity, nil))
			if err != nil || hash != (common.Hash{}) {
				t.Fatalf("rejection should be silent, got %s %v", hash.Hex(), err)
			}
			if f.Phase() != AwaitingConfirmation || f.Attempting() {
				t.Fatalf("expected awaiting confirmation, got %s", f.Phase())
			}
			if len(history.recs) != 0 {
				t.Fatalf("nothing should be recorded")
			}
		})
	}
}

func TestSubmitRejectionDuringPrepareReturnsToConfirmation(t *testing.T) {
	for name, rejection := range map[string]error{
		"wallet": fmt.Errorf("sign permit: %w", wallet.ErrUserRejected),
		"rpc":    fmt.Errorf("sign permit: %w", rpcCodeError{code: 4001}),
	} {
		t.Run(name, func(t *testing.T) {
			sub := &fakeSubmitter{hash: txHash}
			f := New(Config{Submitter: sub})
			if err := f.Open(); err != nil {
				t.Fatalf("open: %v", err)
			}
			hash, err := f.Submit(context.Background(), func(context.Context, *permit.Signature) (*Prepared, error) {
				return nil, rejection
			})
			if err != nil || hash != (common.Hash{}) {
				t.Fatalf("rejection should be silent, got %s %v", hash.Hex(), err)
			}
			if f.Phase() != AwaitingConfirmation || f.Attempting() || f.Err() != nil {
				t.Fatalf("expected awaiting confirmation, got %s err=%v", f.Phase(), f.Err())
			}
			if sub.calls != 0 {
				t.Fatalf("nothing should be sent after a rejected prepare")
			}
			if _, err := f.Submit(context.Background(), preparedFor(intent.MethodAddLiquidity, nil)); err != nil || f.Phase() != Success {
				t.Fatalf("retry after rejection should succeed, got %v phase=%s", err, f.Phase())
			}
		})
	}
}

func TestSubmitFailure(t *testing.T) {
	f := New(Config{Submitter: &fakeSubmitter{err: rpcCodeError{code: -32000}}})
	_ = f.Open()
	_, err := f.Submit(context.Background(), preparedFor(intent.MethodAddLiquidity, nil))
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	if f.Phase() != Failed || !errors.Is(f.Err(), ErrSubmitFailed) {
		t.Fatalf("expected failed phase, got %s", f.Phase())
	}
	if err := f.Open(); err != nil {
		t.Fatalf("reopen after failure: %v", err)
	}
}

func TestSubmitEstimationFailureIsReported(t *testing.T) {
	sub := &fakeSubmitter{hash: txHash}
	f := New(Config{Submitter: sub})
	_ = f.Open()
	_, err := f.Submit(context.Background(), func(context.Context, *permit.Signature) (*Prepared, error) {
		return nil, intent.ErrAllEstimatesFailed
	})
	if !errors.Is(err, intent.ErrAllEstimatesFailed) || f.Phase() != Failed {
		t.Fatalf("expected estimate failure, got %v phase=%s", err, f.Phase())
	}
	if sub.calls != 0 {
		t.Fatalf("nothing should be sent when estimation fails")
	}
}

func TestSubmitRequiresDependenciesAndPhase(t *testing.T) {
	f := New(Config{})
	_ = f.Open()
	if _, err := f.Submit(context.Background(), preparedFor("x", nil)); !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}

	f = New(Config{Submitter: &fakeSubmitter{}})
	if _, err := f.Submit(context.Background(), preparedFor("x", nil)); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("submit without open should fail, got %v", err)
	}
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("wait without receipts should fail, got %v", err)
	}
}

func TestDismissAfterRemoveClearsSignatureAndResetsPercent(t *testing.T) {
	burn := liquidity.NewBurnState()
	burn.TypeInput(liquidity.LiquidityPercent, "75")

	f := New(Config{
		Submitter:   &fakeSubmitter{hash: txHash},
		ResetInputs: func() { burn.TypeInput(liquidity.LiquidityPercent, "0") },
	})
	sig := &permit.Signature{V: 27, Deadline: big.NewInt(100)}
	f.SetSignature(sig)
	_ = f.Open()

	var used *permit.Signature
	if _, err := f.Submit(context.Background(), preparedFor(intent.MethodRemoveLiquidityWithPermit, &used)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if used != sig {
		t.Fatalf("prepare should receive the stored signature")
	}

	f.Dismiss()
	if f.Signature() != nil {
		t.Fatalf("signature should be cleared")
	}
	if burn.IndependentField != liquidity.LiquidityPercent || burn.TypedValue != "0" {
		t.Fatalf("inputs not reset: %+v", burn)
	}
	if f.Phase() != Idle || f.Hash() != (common.Hash{}) {
		t.Fatalf("expected idle, got %s", f.Phase())
	}
}

func TestDismissWithoutHashKeepsInputs(t *testing.T) {
	mint := liquidity.MintState{IndependentField: liquidity.CurrencyA, TypedValue: "1.5"}
	f := New(Config{Submitter: &fakeSubmitter{}, ResetInputs: mint.Reset})
	f.SetSignature(&permit.Signature{})
	_ = f.Open()
	f.Dismiss()
	if mint.TypedValue != "1.5" {
		t.Fatalf("inputs should survive a dismiss without a transaction")
	}
	if f.Signature() != nil {
		t.Fatalf("signature should be cleared on any dismiss")
	}
}

func TestOnUserInputClearsSignature(t *testing.T) {
	f := New(Config{})
	f.SetSignature(&permit.Signature{V: 28})
	f.OnUserInput()
	if f.Signature() != nil {
		t.Fatalf("signature should be cleared after input")
	}
}

func TestWaitUpdatesHistory(t *testing.T) {
	history := &recordingHistory{}
	receipt := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(99)}
	f := New(Config{
		Submitter:    &fakeSubmitter{hash: txHash},
		History:      history,
		Receipts:     fakeReceipts{receipt: receipt},
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})
	_ = f.Open()
	if _, err := f.Submit(context.Background(), preparedFor(intent.MethodAddLiquidityETH, nil)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	report, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if report.Status != model.TxStatusConfirmed {
		t.Fatalf("unexpected status: %s", report.Status)
	}
	if len(history.recs) != 2 {
		t.Fatalf("expected submit and confirm records, got %d", len(history.recs))
	}
	last := history.recs[1]
	if last.Status != model.TxStatusConfirmed || last.BlockNumber != 99 || last.Hash != txHash.Hex() {
		t.Fatalf("unexpected confirm record: %+v", last)
	}
}

func TestIsUserRejection(t *testing.T) {
	if IsUserRejection(nil) || IsUserRejection(errors.New("boom")) {
		t.Fatalf("plain errors are not rejections")
	}
	wrapped := errors.Join(errors.New("send"), rpcCodeError{code: 4001})
	if !IsUserRejection(wrapped) {
		t.Fatalf("wrapped 4001 should be a rejection")
	}
}
