package dex

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/amount"
)

// MinimumLiquidity is burned by the pair on the first deposit.
const MinimumLiquidity = 1000

// LiquidityTokenSymbol is the symbol used for LP token amounts.
const LiquidityTokenSymbol = "SLP"

var (
	ErrInsufficientReserves    = errors.New("insufficient reserves")
	ErrInsufficientInputAmount = errors.New("insufficient input amount")
	ErrTokenNotInPair          = errors.New("token not in pair")
)

// Pair is a snapshot of a constant-product pool. Token0 sorts before Token1.
type Pair struct {
	Address     common.Address
	Token0      amount.Currency
	Token1      amount.Currency
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
}

// NewPair sorts the tokens and their reserves by address.
func NewPair(address common.Address, tokenA, tokenB amount.Currency, reserveA, reserveB, totalSupply *big.Int) *Pair {
	if !SortsBefore(tokenA, tokenB) {
		tokenA, tokenB = tokenB, tokenA
		reserveA, reserveB = reserveB, reserveA
	}
	return &Pair{
		Address:     address,
		Token0:      tokenA,
		Token1:      tokenB,
		Reserve0:    copyOrZero(reserveA),
		Reserve1:    copyOrZero(reserveB),
		TotalSupply: copyOrZero(totalSupply),
	}
}

func SortsBefore(a, b amount.Currency) bool {
	return bytes.Compare(a.Address.Bytes(), b.Address.Bytes()) < 0
}

func (p *Pair) Involves(c amount.Currency) bool {
	return c.Equals(p.Token0) || c.Equals(p.Token1)
}

// HasLiquidity reports whether both reserves and the LP supply are non-zero.
func (p *Pair) HasLiquidity() bool {
	return p != nil && p.Reserve0.Sign() > 0 && p.Reserve1.Sign() > 0 && p.TotalSupply.Sign() > 0
}

// LiquidityToken describes the pair's own LP token.
func (p *Pair) LiquidityToken() amount.Currency {
	return amount.Currency{
		ChainID:  p.Token0.ChainID,
		Address:  p.Address,
		Decimals: 18,
		Symbol:   LiquidityTokenSymbol,
		Name:     p.Token0.Symbol + "-" + p.Token1.Symbol + " LP",
	}
}

func (p *Pair) ReserveOf(c amount.Currency) (*big.Int, error) {
	switch {
	case c.Equals(p.Token0):
		return new(big.Int).Set(p.Reserve0), nil
	case c.Equals(p.Token1):
		return new(big.Int).Set(p.Reserve1), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrTokenNotInPair, c)
	}
}

func (p *Pair) Other(c amount.Currency) (amount.Currency, error) {
	switch {
	case c.Equals(p.Token0):
		return p.Token1, nil
	case c.Equals(p.Token1):
		return p.Token0, nil
	default:
		return amount.Currency{}, fmt.Errorf("%w: %s", ErrTokenNotInPair, c)
	}
}

// Quote returns the amount of the other token equal in value to in at the
// current reserve ratio, rounding down.
func (p *Pair) Quote(in amount.CurrencyAmount) (amount.CurrencyAmount, error) {
	reserveIn, err := p.ReserveOf(in.Currency)
	if err != nil {
		return amount.CurrencyAmount{}, err
	}
	out, _ := p.Other(in.Currency)
	reserveOut, _ := p.ReserveOf(out)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return amount.CurrencyAmount{}, ErrInsufficientReserves
	}
	raw := new(big.Int).Mul(in.Raw(), reserveOut)
	raw.Quo(raw, reserveIn)
	return amount.New(out, raw), nil
}

// PriceOf returns the mid price of c denominated in the other token.
func (p *Pair) PriceOf(c amount.Currency) (amount.Price, error) {
	reserve, err := p.ReserveOf(c)
	if err != nil {
		return amount.Price{}, err
	}
	other, _ := p.Other(c)
	otherReserve, _ := p.ReserveOf(other)
	return amount.NewPrice(c, other, reserve, otherReserve), nil
}

// LiquidityMinted returns the LP tokens a deposit of a and b would mint.
func (p *Pair) LiquidityMinted(a, b amount.CurrencyAmount) (*big.Int, error) {
	reserveA, err := p.ReserveOf(a.Currency)
	if err != nil {
		return nil, err
	}
	reserveB, err := p.ReserveOf(b.Currency)
	if err != nil {
		return nil, err
	}
	return LiquidityMinted(p.TotalSupply, reserveA, reserveB, a.Raw(), b.Raw())
}

// LiquidityMinted is the pair contract's mint formula. An empty pool mints
// sqrt(a*b) minus MinimumLiquidity.
func LiquidityMinted(totalSupply, reserveA, reserveB, amountA, amountB *big.Int) (*big.Int, error) {
	var minted *big.Int
	if totalSupply == nil || totalSupply.Sign() == 0 {
		minted = new(big.Int).Mul(amountA, amountB)
		minted.Sqrt(minted)
		minted.Sub(minted, big.NewInt(MinimumLiquidity))
	} else {
		if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
			return nil, ErrInsufficientReserves
		}
		fromA := new(big.Int).Mul(amountA, totalSupply)
		fromA.Quo(fromA, reserveA)
		fromB := new(big.Int).Mul(amountB, totalSupply)
		fromB.Quo(fromB, reserveB)
		minted = fromA
		if fromB.Cmp(fromA) < 0 {
			minted = fromB
		}
	}
	if minted.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	return minted, nil
}

// LiquidityValue returns the share of token's reserve redeemable for liquidity
// LP tokens.
func (p *Pair) LiquidityValue(token amount.Currency, liquidity *big.Int) (amount.CurrencyAmount, error) {
	reserve, err := p.ReserveOf(token)
	if err != nil {
		return amount.CurrencyAmount{}, err
	}
	if p.TotalSupply.Sign() == 0 {
		return amount.CurrencyAmount{}, ErrInsufficientReserves
	}
	if liquidity.Cmp(p.TotalSupply) > 0 {
		return amount.CurrencyAmount{}, fmt.Errorf("liquidity %s exceeds total supply %s", liquidity, p.TotalSupply)
	}
	raw := new(big.Int).Mul(liquidity, reserve)
	raw.Quo(raw, p.TotalSupply)
	return amount.New(token, raw), nil
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
