package approval

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"pgregory.net/rapid"
)

type fakeChain struct {
	mu        sync.Mutex
	allowance *big.Int
	receipt   *types.Receipt
	approved  *big.Int
	failSend  bool
	failRead  bool
}

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return nil, errors.New("rpc unavailable")
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeChain) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return common.Hash{}, errors.New("user rejected")
	}
	f.approved = amount
	f.receipt = nil
	return common.HexToHash("0x01"), nil
}

func (f *fakeChain) set(fn func(*fakeChain)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeChain) mine(status uint64, allowance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipt = &types.Receipt{Status: status}
	f.allowance = allowance
}

var testCfg = Config{
	Token:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	Owner:   common.HexToAddress("0x0000000000000000000000000000000000000001"),
	Spender: common.HexToAddress("0x0000000000000000000000000000000000000002"),
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]State]bool{
		{Unknown, NotApproved}: true,
		{Unknown, Approved}:    true,
		{NotApproved, Pending}: true,
		{Pending, Approved}:    true,
		{Pending, NotApproved}: true,
	}
	states := []State{Unknown, NotApproved, Pending, Approved}
	for _, from := range states {
		for _, to := range states {
			want := from == to || allowed[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTrackerKeepsSettledStateForSameAmount(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(100)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()

	if state, err := tracker.Refresh(ctx, big.NewInt(50)); err != nil || state != Approved {
		t.Fatalf("expected Approved, got %s err=%v", state, err)
	}
	chain.set(func(f *fakeChain) { f.allowance = big.NewInt(10) })
	if state, err := tracker.Refresh(ctx, big.NewInt(50)); err != nil || state != Approved {
		t.Fatalf("same amount must keep Approved, got %s err=%v", state, err)
	}
	chain.set(func(f *fakeChain) { f.failRead = true })
	if state, err := tracker.Refresh(ctx, big.NewInt(50)); err != nil || state != Approved {
		t.Fatalf("settled state must survive a failing reader, got %s err=%v", state, err)
	}

	// A different amount is a new epoch and is derived from scratch.
	if _, err := tracker.Refresh(ctx, big.NewInt(60)); err == nil {
		t.Fatalf("expected read error for the new epoch")
	}
	if tracker.State() != Unknown {
		t.Fatalf("failed read in a new epoch should leave Unknown, got %s", tracker.State())
	}
	chain.set(func(f *fakeChain) { f.failRead = false })
	if state, err := tracker.Refresh(ctx, big.NewInt(60)); err != nil || state != NotApproved {
		t.Fatalf("expected NotApproved for the new epoch, got %s err=%v", state, err)
	}
}

func TestTrackerReset(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()

	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := tracker.Reset(big.NewInt(5)); err != nil || tracker.State() != Unknown {
		t.Fatalf("reset should return to Unknown, got %s err=%v", tracker.State(), err)
	}
	chain.set(func(f *fakeChain) { f.allowance = big.NewInt(5) })
	if state, _ := tracker.Refresh(ctx, big.NewInt(5)); state != Approved {
		t.Fatalf("expected Approved after reset, got %s", state)
	}

	chain.set(func(f *fakeChain) { f.allowance = big.NewInt(0) })
	if err := tracker.Reset(big.NewInt(9)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := tracker.Refresh(ctx, big.NewInt(9)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := tracker.Approve(ctx, chain); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tracker.Reset(big.NewInt(9)); !errors.Is(err, ErrApprovalInFlight) {
		t.Fatalf("reset while pending should fail, got %v", err)
	}
	if tracker.State() != Pending {
		t.Fatalf("expected Pending, got %s", tracker.State())
	}
}

func TestTrackerTransitionsAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	rapid.Check(t, func(rt *rapid.T) {
		chain := &fakeChain{allowance: big.NewInt(rapid.Int64Range(0, 200).Draw(rt, "allowance"))}
		tracker := NewTracker(testCfg, chain, chain, nil)
		required := big.NewInt(100)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			before := tracker.State()
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				tracker.Refresh(ctx, required)
			case 1:
				fail := rapid.Bool().Draw(rt, "failSend")
				chain.set(func(f *fakeChain) { f.failSend = fail })
				tracker.Approve(ctx, chain)
			case 2:
				tracker.Observe(ctx)
			case 3:
				allowance := rapid.Int64Range(0, 200).Draw(rt, "newAllowance")
				chain.set(func(f *fakeChain) { f.allowance = big.NewInt(allowance) })
			case 4:
				status := uint64(rapid.IntRange(0, 1).Draw(rt, "status"))
				chain.mine(status, big.NewInt(rapid.Int64Range(0, 200).Draw(rt, "minedAllowance")))
			case 5:
				fail := rapid.Bool().Draw(rt, "failRead")
				chain.set(func(f *fakeChain) { f.failRead = fail })
			}
			if after := tracker.State(); !CanTransition(before, after) {
				rt.Fatalf("step %d: %s -> %s is not an allowed transition", i, before, after)
			}
		}
	})
}

// reentrantApprover reads the tracker from inside Approve, the way a
// confirmation prompt rendering the current state would.
type reentrantApprover struct {
	tracker *Tracker
	seen    State
}

func (a *reentrantApprover) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	a.seen = a.tracker.State()
	if _, err := a.tracker.Approve(ctx, a); !errors.Is(err, ErrApprovalInFlight) {
		return common.Hash{}, errors.New("nested approve was not refused")
	}
	return common.HexToHash("0x02"), nil
}

func TestTrackerApproveReleasesLock(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()
	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	approver := &reentrantApprover{tracker: tracker}
	done := make(chan error, 1)
	go func() {
		_, err := tracker.Approve(ctx, approver)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("approve held the tracker lock while the approver ran")
	}
	if approver.seen != NotApproved {
		t.Fatalf("approver saw %s, want NotApproved", approver.seen)
	}
	if tracker.State() != Pending || tracker.PendingTx() != common.HexToHash("0x02") {
		t.Fatalf("expected Pending on 0x02, got %s %s", tracker.State(), tracker.PendingTx().Hex())
	}
}

func TestTrackerApproveFlow(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()

	if tracker.State() != Unknown {
		t.Fatalf("initial state should be Unknown")
	}
	state, err := tracker.Refresh(ctx, big.NewInt(100))
	if err != nil || state != NotApproved {
		t.Fatalf("expected NotApproved, got %s err=%v", state, err)
	}

	hash, err := tracker.Approve(ctx, chain)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if tracker.State() != Pending || tracker.PendingTx() != hash || chain.approved.Int64() != 100 {
		t.Fatalf("expected Pending with tx %s", hash.Hex())
	}

	// A refresh while pending must not override the in-flight approval.
	if state, _ := tracker.Refresh(ctx, big.NewInt(100)); state != Pending {
		t.Fatalf("refresh overrode pending state: %s", state)
	}
	if state, _ := tracker.Observe(ctx); state != Pending {
		t.Fatalf("unmined approval should stay Pending, got %s", state)
	}

	chain.mine(types.ReceiptStatusSuccessful, big.NewInt(1000))
	state, err = tracker.Observe(ctx)
	if err != nil || state != Approved {
		t.Fatalf("expected Approved, got %s err=%v", state, err)
	}
	if _, err := tracker.Approve(ctx, chain); !errors.Is(err, ErrNotRequired) {
		t.Fatalf("expected ErrNotRequired, got %v", err)
	}
}

func TestTrackerRevertedApproval(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()

	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := tracker.Approve(ctx, chain); err != nil {
		t.Fatalf("approve: %v", err)
	}
	chain.mine(types.ReceiptStatusFailed, big.NewInt(0))
	if state, _ := tracker.Observe(ctx); state != NotApproved {
		t.Fatalf("reverted approval should return to NotApproved, got %s", state)
	}
}

func TestTrackerApproveRejected(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0), failSend: true}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()

	if _, err := tracker.Approve(ctx, chain); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approving before refresh should be rejected, got %v", err)
	}
	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := tracker.Approve(ctx, chain); err == nil {
		t.Fatalf("expected send error")
	}
	if tracker.State() != NotApproved {
		t.Fatalf("failed send must leave NotApproved, got %s", tracker.State())
	}
}

func TestTrackerNativeAlwaysApproved(t *testing.T) {
	cfg := testCfg
	cfg.Native = true
	tracker := NewTracker(cfg, nil, nil, nil)
	state, err := tracker.Refresh(context.Background(), big.NewInt(1))
	if err != nil || state != Approved {
		t.Fatalf("native currency should be Approved, got %s err=%v", state, err)
	}
}

func TestWatcherSettlesPending(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx := context.Background()
	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := tracker.Approve(ctx, chain); err != nil {
		t.Fatalf("approve: %v", err)
	}

	watcher := NewWatcher(time.Millisecond, 1000, nil, tracker)
	done := watcher.Start(ctx)
	chain.mine(types.ReceiptStatusSuccessful, big.NewInt(5))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop")
	}
	if tracker.State() != Approved {
		t.Fatalf("expected Approved, got %s", tracker.State())
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	chain := &fakeChain{allowance: big.NewInt(0)}
	tracker := NewTracker(testCfg, chain, chain, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := tracker.Refresh(ctx, big.NewInt(5)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := tracker.Approve(ctx, chain); err != nil {
		t.Fatalf("approve: %v", err)
	}

	done := NewWatcher(time.Millisecond, 1000, nil, tracker).Start(ctx)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher ignored cancellation")
	}
	if tracker.State() != Pending {
		t.Fatalf("abandoned approval should stay Pending, got %s", tracker.State())
	}
}
