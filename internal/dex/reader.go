package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/model"
)

var ErrIdenticalTokens = errors.New("identical tokens")

// BalanceReader reads native coin balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// FetchPair loads a pair snapshot through the factory. A nil pair with a nil
// error means the factory has no pair for the tokens yet. Both currencies must
// already be wrapped.
func FetchPair(ctx context.Context, caller ethereum.ContractCaller, factory common.Address, tokenA, tokenB amount.Currency, cache *PairMetaCache) (*Pair, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if tokenA.Native || tokenB.Native {
		return nil, fmt.Errorf("pair lookup requires wrapped tokens")
	}
	if tokenA.Equals(tokenB) {
		return nil, ErrIdenticalTokens
	}

	meta, ok := model.PairMeta{}, false
	if cache != nil {
		meta, ok = cache.Get(tokenA.Address, tokenB.Address)
	}
	if !ok {
		factoryABI, err := FactoryABI()
		if err != nil {
			return nil, fmt.Errorf("parse factory abi: %w", err)
		}
		values, err := callMethod(ctx, caller, factory, factoryABI, "getPair", nil, tokenA.Address, tokenB.Address)
		if err != nil {
			return nil, err
		}
		pairAddress, err := asAddress(values[0])
		if err != nil {
			return nil, fmt.Errorf("getPair: %w", err)
		}
		if pairAddress == (common.Address{}) {
			return nil, nil
		}
		token0, token1 := tokenA.Address, tokenB.Address
		if !SortsBefore(tokenA, tokenB) {
			token0, token1 = token1, token0
		}
		meta = model.PairMeta{Address: pairAddress.Hex(), Token0: token0.Hex(), Token1: token1.Hex()}
		if cache != nil {
			cache.Set(tokenA.Address, tokenB.Address, meta)
		}
	}

	pairABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	pairAddress := common.HexToAddress(meta.Address)

	values, err := callMethod(ctx, caller, pairAddress, pairABI, "getReserves", nil)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("getReserves: expected 3 values, got %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("reserve1: %w", err)
	}

	values, err = callMethod(ctx, caller, pairAddress, pairABI, "totalSupply", nil)
	if err != nil {
		return nil, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("totalSupply: %w", err)
	}

	reserveA, reserveB := reserve0, reserve1
	if common.HexToAddress(meta.Token0) != tokenA.Address {
		reserveA, reserveB = reserve1, reserve0
	}
	return NewPair(pairAddress, tokenA, tokenB, reserveA, reserveB, supply), nil
}

// TokenReader answers the per-account questions the liquidity pages ask:
// balances, allowances and permit nonces.
type TokenReader struct {
	Caller   ethereum.ContractCaller
	Balances BalanceReader
}

// Allowance returns how much spender may move of owner's token.
func (r TokenReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.Caller, token, erc20, "allowance", nil, owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf returns owner's balance in c, reading the native balance for
// native currencies.
func (r TokenReader) BalanceOf(ctx context.Context, c amount.Currency, owner common.Address) (amount.CurrencyAmount, error) {
	if c.Native {
		if r.Balances == nil {
			return amount.CurrencyAmount{}, fmt.Errorf("native balance reader is nil")
		}
		raw, err := r.Balances.BalanceAt(ctx, owner, nil)
		if err != nil {
			return amount.CurrencyAmount{}, fmt.Errorf("native balance: %w", err)
		}
		return amount.New(c, raw), nil
	}
	raw, err := r.tokenBalance(ctx, c.Address, owner)
	if err != nil {
		return amount.CurrencyAmount{}, err
	}
	return amount.New(c, raw), nil
}

// LiquidityBalance returns owner's LP token balance for a pair.
func (r TokenReader) LiquidityBalance(ctx context.Context, pair *Pair, owner common.Address) (*big.Int, error) {
	if pair == nil {
		return new(big.Int), nil
	}
	return r.tokenBalance(ctx, pair.Address, owner)
}

// PermitNonce returns the pair's EIP-2612 nonce for owner.
func (r TokenReader) PermitNonce(ctx context.Context, pair, owner common.Address) (*big.Int, error) {
	pairABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, r.Caller, pair, pairABI, "nonces", nil, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (r TokenReader) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.Caller, token, erc20, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}
