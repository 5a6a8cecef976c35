package intent

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/slippage"
)

var ErrAllEstimatesFailed = errors.New("all gas estimates failed")

// GasEstimator runs eth_estimateGas.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Submitter signs and sends a call.
type Submitter interface {
	Submit(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error)
}

// Selection is the variant chosen for submission.
type Selection struct {
	Intent   Intent
	To       common.Address
	Data     []byte
	GasLimit uint64
}

// Select estimates every candidate concurrently and returns the first one,
// in candidate order, whose estimate succeeds. The gas limit carries a 10%
// margin. Estimation must run immediately before submission.
func Select(ctx context.Context, estimator GasEstimator, from, to common.Address, candidates []Intent, logger *zap.Logger) (*Selection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrAllEstimatesFailed)
	}

	type result struct {
		data []byte
		gas  uint64
		err  error
	}
	results := make([]result, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate Intent) {
			defer wg.Done()
			data, err := candidate.Pack()
			if err != nil {
				results[i] = result{err: err}
				return
			}
			gas, err := estimator.EstimateGas(ctx, ethereum.CallMsg{
				From:  from,
				To:    &to,
				Value: candidate.Value,
				Data:  data,
			})
			results[i] = result{data: data, gas: gas, err: err}
		}(i, candidate)
	}
	wg.Wait()

	var errs []error
	for i, r := range results {
		if r.err != nil {
			logger.Warn("estimate gas failed",
				zap.String("method", candidates[i].Method),
				zap.Error(r.err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", candidates[i].Method, r.err))
			continue
		}
		logger.Debug("estimate gas",
			zap.String("method", candidates[i].Method),
			zap.Uint64("gas", r.gas),
		)
		return &Selection{
			Intent:   candidates[i],
			To:       to,
			Data:     r.data,
			GasLimit: slippage.GasMargin(r.gas),
		}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllEstimatesFailed, errors.Join(errs...))
}

// Approver sends ERC20 approvals, preferring an unlimited allowance and
// falling back to the exact amount when the token refuses it.
type Approver struct {
	Estimator GasEstimator
	Submitter Submitter
	From      common.Address
	ExactOnly bool
	Logger    *zap.Logger
}

func (a *Approver) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil {
		return common.Hash{}, ErrMissingAmount
	}
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	amounts := []*big.Int{new(big.Int).Set(amount)}
	if !a.ExactOnly {
		amounts = []*big.Int{new(big.Int).Set(maxUint256), new(big.Int).Set(amount)}
	}

	var errs []error
	for _, value := range amounts {
		data, err := erc20.Pack("approve", spender, value)
		if err != nil {
			return common.Hash{}, fmt.Errorf("pack approve: %w", err)
		}
		gas, err := a.Estimator.EstimateGas(ctx, ethereum.CallMsg{From: a.From, To: &token, Data: data})
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("estimate approve failed", zap.String("amount", value.String()), zap.Error(err))
			}
			errs = append(errs, err)
			continue
		}
		return a.Submitter.Submit(ctx, token, data, nil, slippage.GasMargin(gas))
	}
	return common.Hash{}, fmt.Errorf("%w: %w", ErrAllEstimatesFailed, errors.Join(errs...))
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
