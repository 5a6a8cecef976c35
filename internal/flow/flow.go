package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"liquidityDesk/internal/analytics"
	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/intent"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/permit"
	"liquidityDesk/internal/storage"
	"liquidityDesk/internal/wallet"
)

// Phase is the confirmation flow state.
type Phase int

const (
	Idle Phase = iota
	AwaitingConfirmation
	Submitting
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrSubmitFailed      = errors.New("transaction submission failed")
	ErrInvalidPhase      = errors.New("invalid flow phase")
)

// userRejectedCode is the EIP-1193 "user rejected request" error code.
const userRejectedCode = 4001

// IsUserRejection reports whether err means the account holder declined.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, wallet.ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode
}

// Prepared is a transaction ready to send.
type Prepared struct {
	Selection *intent.Selection
	Summary   string
	Event     analytics.Event
}

// PrepareFunc builds intents and selects a variant. It runs inside Submit so
// estimation always uses the arguments that are sent. sig is the current
// permit signature, nil when the approval path is used.
type PrepareFunc func(ctx context.Context, sig *permit.Signature) (*Prepared, error)

// Config wires a Flow. Submitter is required; the rest are optional.
type Config struct {
	ChainID     uint64
	From        common.Address
	Submitter   intent.Submitter
	Events      analytics.Sink
	History     storage.Sink
	Receipts    chain.ReceiptReader
	ResetInputs func()
	Logger      *zap.Logger
	Now         func() time.Time

	PollInterval time.Duration
	Timeout      time.Duration
	MaxRetries   int
}

// Report is the outcome of waiting for a submitted transaction.
type Report struct {
	Receipt *types.Receipt
	Status  string
	Events  []model.LiquidityEvent
}

// Flow tracks one confirmation modal.
type Flow struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	phase      Phase
	attempting bool
	attempt    uint64
	hash       common.Hash
	signature  *permit.Signature
	err        error
	record     *model.TransactionRecord
}

func New(cfg Config) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Flow{cfg: cfg, logger: logger}
}

func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Attempting reports whether a submission is being tracked.
func (f *Flow) Attempting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempting
}

// Hash returns the recorded transaction hash, zero before success.
func (f *Flow) Hash() common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hash
}

// Err returns the error that moved the flow to Failed.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) Signature() *permit.Signature {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signature
}

// SetSignature stores a permit signature for the next submission.
func (f *Flow) SetSignature(sig *permit.Signature) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signature = sig
}

func (f *Flow) ClearSignature() {
	f.SetSignature(nil)
}

// OnUserInput invalidates the signature; it was made for the old inputs.
func (f *Flow) OnUserInput() {
	f.ClearSignature()
}

// Open shows the confirmation modal. Nothing is sent.
func (f *Flow) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.phase {
	case Idle, Failed:
	default:
		return fmt.Errorf("%w: open from %s", ErrInvalidPhase, f.phase)
	}
	f.phase = AwaitingConfirmation
	f.err = nil
	return nil
}

// Submit prepares, estimates and sends the transaction. A user rejection
// returns the flow to AwaitingConfirmation with no error.
func (f *Flow) Submit(ctx context.Context, prepare PrepareFunc) (common.Hash, error) {
	if f.cfg.Submitter == nil || prepare == nil {
		return common.Hash{}, fmt.Errorf("%w: submitter and prepare are required", ErrMissingDependency)
	}

	f.mu.Lock()
	if f.phase != AwaitingConfirmation {
		phase := f.phase
		f.mu.Unlock()
		return common.Hash{}, fmt.Errorf("%w: submit from %s", ErrInvalidPhase, phase)
	}
	f.phase = Submitting
	f.attempting = true
	f.attempt++
	attempt := f.attempt
	sig := f.signature
	f.mu.Unlock()

	prepared, err := prepare(ctx, sig)
	if err == nil && (prepared == nil || prepared.Selection == nil) {
		err = fmt.Errorf("%w: prepare returned no selection", ErrMissingDependency)
	}
	if err != nil {
		if IsUserRejection(err) {
			f.logger.Debug("prepare rejected by user", zap.Error(err))
			f.rejected(attempt)
			return common.Hash{}, nil
		}
		return common.Hash{}, f.fail(attempt, err)
	}

	sel := prepared.Selection
	hash, err := f.cfg.Submitter.Submit(ctx, sel.To, sel.Data, sel.Intent.Value, sel.GasLimit)
	if err != nil {
		if IsUserRejection(err) {
			f.logger.Debug("submission rejected by user", zap.String("method", sel.Intent.Method))
			f.rejected(attempt)
			return common.Hash{}, nil
		}
		return common.Hash{}, f.fail(attempt, fmt.Errorf("%w: %v", ErrSubmitFailed, err))
	}

	f.logger.Info("transaction submitted",
		zap.String("hash", hash.Hex()),
		zap.String("method", sel.Intent.Method),
		zap.Uint64("gas_limit", sel.GasLimit),
		zap.String("summary", prepared.Summary),
	)

	rec := model.TransactionRecord{
		ChainID:     f.cfg.ChainID,
		Hash:        hash.Hex(),
		From:        f.cfg.From.Hex(),
		To:          sel.To.Hex(),
		Method:      sel.Intent.Method,
		Summary:     prepared.Summary,
		Status:      model.TxStatusSubmitted,
		GasLimit:    sel.GasLimit,
		SubmittedAt: f.cfg.Now().UTC().Format(time.RFC3339),
	}
	f.putHistory(ctx, rec)
	if f.cfg.Events != nil && prepared.Event.Action != "" {
		f.cfg.Events.Track(prepared.Event)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// A dismissed modal stops reflecting the transaction; it may still mine.
	if f.attempt != attempt || !f.attempting {
		return hash, nil
	}
	f.phase = Success
	f.hash = hash
	f.record = &rec
	return hash, nil
}

// rejected puts a declined attempt back in front of the user.
func (f *Flow) rejected(attempt uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == attempt && f.attempting {
		f.phase = AwaitingConfirmation
		f.attempting = false
	}
}

func (f *Flow) fail(attempt uint64, err error) error {
	f.logger.Warn("submission failed", zap.Error(err))
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == attempt && f.attempting {
		f.phase = Failed
		f.attempting = false
		f.err = err
	}
	return err
}

// Dismiss closes the modal. The signature is always discarded; inputs are
// reset only when a transaction hash was recorded.
func (f *Flow) Dismiss() {
	f.mu.Lock()
	hadHash := f.hash != (common.Hash{})
	f.phase = Idle
	f.attempting = false
	f.signature = nil
	f.hash = common.Hash{}
	f.err = nil
	f.record = nil
	reset := f.cfg.ResetInputs
	f.mu.Unlock()

	if hadHash && reset != nil {
		reset()
	}
}

// Wait blocks until the submitted transaction is mined and decodes the pair
// events from its receipt. History is updated with the final status.
func (f *Flow) Wait(ctx context.Context) (*Report, error) {
	if f.cfg.Receipts == nil {
		return nil, fmt.Errorf("%w: receipt reader is required", ErrMissingDependency)
	}
	f.mu.Lock()
	hash := f.hash
	var rec model.TransactionRecord
	if f.record != nil {
		rec = *f.record
	}
	f.mu.Unlock()
	if hash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: no submitted transaction", ErrInvalidPhase)
	}

	receipt, err := chain.WaitMined(ctx, f.cfg.Receipts, hash, f.cfg.PollInterval, f.cfg.Timeout, f.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	report := &Report{Receipt: receipt, Status: model.TxStatusConfirmed}
	if receipt.Status != types.ReceiptStatusSuccessful {
		report.Status = model.TxStatusReverted
	} else {
		events, err := dex.DecodeReceipt(receipt.Logs)
		if err != nil {
			f.logger.Warn("decode receipt failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}
		report.Events = events
	}

	if rec.Hash != "" {
		rec.Status = report.Status
		if receipt.BlockNumber != nil {
			rec.BlockNumber = receipt.BlockNumber.Uint64()
		}
		rec.UpdatedAt = f.cfg.Now().UTC().Format(time.RFC3339)
		f.putHistory(ctx, rec)
	}
	return report, nil
}

func (f *Flow) putHistory(ctx context.Context, rec model.TransactionRecord) {
	if f.cfg.History == nil {
		return
	}
	if err := f.cfg.History.PutTransaction(ctx, rec); err != nil {
		f.logger.Warn("record transaction failed", zap.String("hash", rec.Hash), zap.Error(err))
	}
}
