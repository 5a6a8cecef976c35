package intent

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/permit"
)

// Router method names.
const (
	MethodAddLiquidity                              = "addLiquidity"
	MethodAddLiquidityETH                           = "addLiquidityETH"
	MethodRemoveLiquidity                           = "removeLiquidity"
	MethodRemoveLiquidityETH                        = "removeLiquidityETH"
	MethodRemoveLiquidityETHSupportingFee           = "removeLiquidityETHSupportingFeeOnTransferTokens"
	MethodRemoveLiquidityWithPermit                 = "removeLiquidityWithPermit"
	MethodRemoveLiquidityETHWithPermit              = "removeLiquidityETHWithPermit"
	MethodRemoveLiquidityETHWithPermitSupportingFee = "removeLiquidityETHWithPermitSupportingFeeOnTransferTokens"
)

var (
	ErrNoAuthorization   = errors.New("no allowance or signature for liquidity")
	ErrIdenticalCurrency = errors.New("identical currencies")
	ErrMissingAmount     = errors.New("missing amount")
)

// Intent is one candidate router call.
type Intent struct {
	Method string
	Args   []interface{}
	Value  *big.Int
}

// Pack ABI-encodes the call against the router.
func (i Intent) Pack() ([]byte, error) {
	routerABI, err := dex.RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	data, err := routerABI.Pack(i.Method, i.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", i.Method, err)
	}
	return data, nil
}

// AddParams carries everything needed to add liquidity. Amounts are raw.
type AddParams struct {
	CurrencyA     amount.Currency
	CurrencyB     amount.Currency
	AmountA       *big.Int
	AmountB       *big.Int
	MinA          *big.Int
	MinB          *big.Int
	WrappedNative common.Address
	To            common.Address
	Deadline      *big.Int
	// DisableNative forces the token variant on chains without native
	// router methods.
	DisableNative bool
}

// BuildAdd returns the candidate calls for an add, in preference order.
func BuildAdd(p AddParams) ([]Intent, error) {
	if p.CurrencyA.Equals(p.CurrencyB) {
		return nil, ErrIdenticalCurrency
	}
	if p.AmountA == nil || p.AmountB == nil || p.MinA == nil || p.MinB == nil || p.Deadline == nil {
		return nil, ErrMissingAmount
	}

	if (p.CurrencyA.Native || p.CurrencyB.Native) && !p.DisableNative {
		tokenIsB := p.CurrencyA.Native
		token, amountToken, minToken, minETH, value := p.CurrencyA.Address, p.AmountA, p.MinA, p.MinB, p.AmountB
		if tokenIsB {
			token, amountToken, minToken, minETH, value = p.CurrencyB.Address, p.AmountB, p.MinB, p.MinA, p.AmountA
		}
		return []Intent{{
			Method: MethodAddLiquidityETH,
			Args:   []interface{}{token, amountToken, minToken, minETH, p.To, p.Deadline},
			Value:  new(big.Int).Set(value),
		}}, nil
	}

	return []Intent{{
		Method: MethodAddLiquidity,
		Args: []interface{}{
			addressOf(p.CurrencyA, p.WrappedNative), addressOf(p.CurrencyB, p.WrappedNative),
			p.AmountA, p.AmountB, p.MinA, p.MinB, p.To, p.Deadline,
		},
		Value: new(big.Int),
	}}, nil
}

// RemoveParams carries everything needed to remove liquidity.
type RemoveParams struct {
	CurrencyA     amount.Currency
	CurrencyB     amount.Currency
	Liquidity     *big.Int
	MinA          *big.Int
	MinB          *big.Int
	WrappedNative common.Address
	To            common.Address
	Deadline      *big.Int
	// Approved means the router holds enough LP allowance; it wins over a
	// signature when both are present.
	Approved      bool
	Signature     *permit.Signature
	DisableNative bool
}

// BuildRemove returns the candidate calls for a removal, in preference order.
func BuildRemove(p RemoveParams) ([]Intent, error) {
	if p.CurrencyA.Equals(p.CurrencyB) {
		return nil, ErrIdenticalCurrency
	}
	if p.Liquidity == nil || p.MinA == nil || p.MinB == nil {
		return nil, ErrMissingAmount
	}
	native := (p.CurrencyA.Native || p.CurrencyB.Native) && !p.DisableNative

	var token common.Address
	var minToken, minETH *big.Int
	if native {
		token, minToken, minETH = p.CurrencyA.Address, p.MinA, p.MinB
		if p.CurrencyA.Native {
			token, minToken, minETH = p.CurrencyB.Address, p.MinB, p.MinA
		}
	}
	tokenA, tokenB := addressOf(p.CurrencyA, p.WrappedNative), addressOf(p.CurrencyB, p.WrappedNative)

	switch {
	case p.Approved:
		if p.Deadline == nil {
			return nil, ErrMissingAmount
		}
		if native {
			args := []interface{}{token, p.Liquidity, minToken, minETH, p.To, p.Deadline}
			return []Intent{
				{Method: MethodRemoveLiquidityETH, Args: args, Value: new(big.Int)},
				{Method: MethodRemoveLiquidityETHSupportingFee, Args: args, Value: new(big.Int)},
			}, nil
		}
		return []Intent{{
			Method: MethodRemoveLiquidity,
			Args:   []interface{}{tokenA, tokenB, p.Liquidity, p.MinA, p.MinB, p.To, p.Deadline},
			Value:  new(big.Int),
		}}, nil
	case p.Signature != nil:
		sig := p.Signature
		if native {
			args := []interface{}{token, p.Liquidity, minToken, minETH, p.To, sig.Deadline, false, sig.V, sig.R, sig.S}
			return []Intent{
				{Method: MethodRemoveLiquidityETHWithPermit, Args: args, Value: new(big.Int)},
				{Method: MethodRemoveLiquidityETHWithPermitSupportingFee, Args: args, Value: new(big.Int)},
			}, nil
		}
		return []Intent{{
			Method: MethodRemoveLiquidityWithPermit,
			Args:   []interface{}{tokenA, tokenB, p.Liquidity, p.MinA, p.MinB, p.To, sig.Deadline, false, sig.V, sig.R, sig.S},
			Value:  new(big.Int),
		}}, nil
	default:
		return nil, ErrNoAuthorization
	}
}

func addressOf(c amount.Currency, wrappedNative common.Address) common.Address {
	if c.Native {
		return wrappedNative
	}
	return c.Address
}
