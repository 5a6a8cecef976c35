package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// AllowanceReader reads ERC20 allowances.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// ReceiptReader returns ethereum.NotFound while a transaction is pending.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Approver sends an approval transaction and returns its hash.
type Approver interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

var (
	ErrNotRequired      = errors.New("approval not required")
	ErrApprovalInFlight = errors.New("approval already in flight")
)

// Config identifies what a Tracker watches.
type Config struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	// Native currencies need no allowance and are always approved.
	Native bool
}

// Tracker follows the approval state of one token for one spender.
type Tracker struct {
	cfg      Config
	reader   AllowanceReader
	receipts ReceiptReader
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	required  *big.Int
	pendingTx common.Hash
	approving bool
}

func NewTracker(cfg Config, reader AllowanceReader, receipts ReceiptReader, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:      cfg,
		reader:   reader,
		receipts: receipts,
		logger:   logger.With(zap.String("token", cfg.Token.Hex()), zap.String("spender", cfg.Spender.Hex())),
	}
}

func (t *Tracker) Token() common.Address { return t.cfg.Token }

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// PendingTx is the approval transaction being waited on, if any.
func (t *Tracker) PendingTx() common.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingTx
}

// Refresh derives the state for a required amount. A settled state for the
// same amount is kept as is; a different amount starts a new epoch through
// Reset. A pending approval is left alone until Observe resolves it.
func (t *Tracker) Refresh(ctx context.Context, required *big.Int) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Pending || t.approving {
		return t.state, nil
	}
	if !sameAmount(t.required, required) {
		t.resetLocked(required)
	}
	if t.state != Unknown {
		return t.state, nil
	}

	if t.cfg.Native {
		return t.moveLocked(Approved)
	}
	if t.required == nil {
		return t.state, nil
	}
	allowance, err := t.reader.Allowance(ctx, t.cfg.Token, t.cfg.Owner, t.cfg.Spender)
	if err != nil {
		return t.state, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(t.required) >= 0 {
		return t.moveLocked(Approved)
	}
	return t.moveLocked(NotApproved)
}

// Reset starts a new epoch for required: the tracker forgets its settled
// state and returns to Unknown. It is refused while an approval is pending.
func (t *Tracker) Reset(required *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Pending || t.approving {
		return ErrApprovalInFlight
	}
	t.resetLocked(required)
	return nil
}

func (t *Tracker) resetLocked(required *big.Int) {
	if t.state != Unknown {
		t.logger.Debug("approval epoch reset", zap.Stringer("from", t.state))
	}
	t.state = Unknown
	if required != nil {
		t.required = new(big.Int).Set(required)
	} else {
		t.required = nil
	}
}

func sameAmount(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// Approve submits an approval and moves to Pending. Only NotApproved may be
// approved; on failure the state is unchanged. The lock is not held while
// the approver runs, since it may prompt or wait on the network.
func (t *Tracker) Approve(ctx context.Context, approver Approver) (common.Hash, error) {
	t.mu.Lock()
	if t.state == Approved {
		t.mu.Unlock()
		return common.Hash{}, ErrNotRequired
	}
	if t.approving {
		t.mu.Unlock()
		return common.Hash{}, ErrApprovalInFlight
	}
	if err := checkTransition(t.state, Pending); err != nil {
		t.mu.Unlock()
		return common.Hash{}, err
	}
	t.approving = true
	var amount *big.Int
	if t.required != nil {
		amount = new(big.Int).Set(t.required)
	}
	t.mu.Unlock()

	hash, err := approver.Approve(ctx, t.cfg.Token, t.cfg.Spender, amount)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.approving = false
	if err != nil {
		t.logger.Warn("approve failed", zap.Error(err))
		return common.Hash{}, err
	}
	if _, err := t.moveLocked(Pending); err != nil {
		return hash, err
	}
	t.pendingTx = hash
	t.logger.Info("approval submitted", zap.String("tx", hash.Hex()))
	return hash, nil
}

// Observe polls the pending approval once. A mined success re-reads the
// allowance; a revert returns to NotApproved.
func (t *Tracker) Observe(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Pending {
		return t.state, nil
	}
	receipt, err := t.receipts.TransactionReceipt(ctx, t.pendingTx)
	if errors.Is(err, ethereum.NotFound) {
		return t.state, nil
	}
	if err != nil {
		return t.state, fmt.Errorf("approval receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.logger.Warn("approval reverted", zap.String("tx", t.pendingTx.Hex()))
		t.pendingTx = common.Hash{}
		return t.moveLocked(NotApproved)
	}

	allowance, err := t.reader.Allowance(ctx, t.cfg.Token, t.cfg.Owner, t.cfg.Spender)
	if err != nil {
		return t.state, fmt.Errorf("read allowance: %w", err)
	}
	t.pendingTx = common.Hash{}
	if t.required == nil || allowance.Cmp(t.required) >= 0 {
		return t.moveLocked(Approved)
	}
	return t.moveLocked(NotApproved)
}

func (t *Tracker) moveLocked(to State) (State, error) {
	if err := checkTransition(t.state, to); err != nil {
		return t.state, err
	}
	if t.state != to {
		t.logger.Debug("approval state", zap.Stringer("from", t.state), zap.Stringer("to", to))
	}
	t.state = to
	return t.state, nil
}
