package liquidity

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
)

var (
	tokenA = amount.Currency{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000000aa"), Decimals: 18, Symbol: "TKA"}
	tokenB = amount.Currency{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000000bb"), Decimals: 18, Symbol: "TKB"}
	weth   = amount.Currency{ChainID: 1, Address: common.HexToAddress("0x00000000000000000000000000000000000000ee"), Decimals: 18, Symbol: "WETH"}
	native = amount.NativeCurrency(1, "ETH")
	pairAt = common.HexToAddress("0x0000000000000000000000000000000000000abc")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func mustAmount(t *testing.T, text string, c amount.Currency) *amount.CurrencyAmount {
	t.Helper()
	a, err := amount.Parse(text, c)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return &a
}

func TestDeriveMintQuotesDependentField(t *testing.T) {
	pair := dex.NewPair(pairAt, tokenA, tokenB, ether(1000), ether(2000), ether(100))
	info := DeriveMint(MintInput{
		State:     MintState{IndependentField: CurrencyA, TypedValue: "1.5"},
		CurrencyA: &tokenA,
		CurrencyB: &tokenB,
		Pair:      pair,
	})

	if info.DependentField != CurrencyB {
		t.Fatalf("dependent field mismatch: %v", info.DependentField)
	}
	if got := info.FormattedAmounts[CurrencyB]; got != "3" {
		t.Fatalf("dependent amount mismatch: %q", got)
	}
	if got := info.FormattedAmounts[CurrencyA]; got != "1.5" {
		t.Fatalf("independent amount should echo input, got %q", got)
	}
	if info.Price == nil || info.Price.ToSignificant(6) != "2" {
		t.Fatalf("price mismatch: %+v", info.Price)
	}
	if info.NoLiquidity || !info.PriceKnown {
		t.Fatalf("unexpected flags: noLiquidity=%v priceKnown=%v", info.NoLiquidity, info.PriceKnown)
	}
	if info.Err != nil {
		t.Fatalf("unexpected error: %v", info.Err)
	}
	// min(1.5*100/1000, 3*100/2000) = 0.15 LP; share = 0.15/100.15.
	if info.LiquidityMinted == nil || info.LiquidityMinted.Cmp(new(big.Int).Div(ether(15), big.NewInt(100))) != 0 {
		t.Fatalf("minted mismatch: %v", info.LiquidityMinted)
	}
	if info.PoolShare == nil || info.PoolShare.ToSignificant(4) != "0.1498" {
		t.Fatalf("pool share mismatch: %v", info.PoolShare.ToSignificant(4))
	}
}

func TestDeriveMintNativeSide(t *testing.T) {
	pair := dex.NewPair(pairAt, weth, tokenB, ether(10), ether(20), ether(10))
	info := DeriveMint(MintInput{
		State:         MintState{IndependentField: CurrencyB, TypedValue: "4"},
		CurrencyA:     &native,
		CurrencyB:     &tokenB,
		WrappedNative: weth,
		Pair:          pair,
	})
	dep := info.ParsedAmounts[CurrencyA]
	if dep == nil || !dep.Currency.Native || dep.ToSignificant(6) != "2" {
		t.Fatalf("native dependent amount mismatch: %+v", dep)
	}
}

func TestDeriveMintNoLiquidity(t *testing.T) {
	info := DeriveMint(MintInput{
		State:     MintState{IndependentField: CurrencyA, TypedValue: "4", OtherTypedValue: "1"},
		CurrencyA: &tokenA,
		CurrencyB: &tokenB,
	})
	if !info.NoLiquidity {
		t.Fatalf("expected NoLiquidity without pair")
	}
	if info.FormattedAmounts[CurrencyB] != "1" {
		t.Fatalf("dependent field should show other typed value, got %q", info.FormattedAmounts[CurrencyB])
	}
	if info.Price == nil || info.Price.ToSignificant(6) != "0.25" {
		t.Fatalf("price from typed amounts mismatch: %+v", info.Price)
	}
	// sqrt(4e18 * 1e18) - 1000 = 2e18 - 1000; the creator owns 100%.
	want := new(big.Int).Sub(ether(2), big.NewInt(dex.MinimumLiquidity))
	if info.LiquidityMinted == nil || info.LiquidityMinted.Cmp(want) != 0 {
		t.Fatalf("minted mismatch: %v", info.LiquidityMinted)
	}
	if info.PoolShare == nil || info.PoolShare.ToFixed(0) != "100" {
		t.Fatalf("pool share mismatch")
	}
}

func TestDeriveMintPairPending(t *testing.T) {
	info := DeriveMint(MintInput{
		State:       MintState{IndependentField: CurrencyA, TypedValue: "1"},
		CurrencyA:   &tokenA,
		CurrencyB:   &tokenB,
		PairPending: true,
	})
	if info.NoLiquidity || info.PriceKnown {
		t.Fatalf("pending pair must not look like an empty pool: %+v", info)
	}
	if info.FormattedAmounts[CurrencyB] != "" {
		t.Fatalf("dependent field should be empty while loading, got %q", info.FormattedAmounts[CurrencyB])
	}
	if !errors.Is(info.Err, ErrNoAmount) {
		t.Fatalf("expected ErrNoAmount, got %v", info.Err)
	}
}

func TestDeriveMintErrors(t *testing.T) {
	pair := dex.NewPair(pairAt, tokenA, tokenB, ether(1000), ether(2000), ether(100))

	info := DeriveMint(MintInput{State: MintState{TypedValue: "1"}, CurrencyA: &tokenA, Pair: pair})
	if !errors.Is(info.Err, ErrSelectToken) {
		t.Fatalf("expected ErrSelectToken, got %v", info.Err)
	}

	info = DeriveMint(MintInput{State: MintState{TypedValue: "abc"}, CurrencyA: &tokenA, CurrencyB: &tokenB, Pair: pair})
	if !errors.Is(info.Err, ErrNoAmount) || info.ParsedAmounts[CurrencyA] != nil {
		t.Fatalf("unparseable text should yield no amount, got %v", info.Err)
	}

	info = DeriveMint(MintInput{State: MintState{TypedValue: "1"}, CurrencyA: &tokenA, CurrencyB: &tokenA})
	if !errors.Is(info.Err, ErrInvalidPair) {
		t.Fatalf("expected ErrInvalidPair, got %v", info.Err)
	}

	info = DeriveMint(MintInput{
		State:     MintState{IndependentField: CurrencyA, TypedValue: "1.5"},
		CurrencyA: &tokenA,
		CurrencyB: &tokenB,
		Pair:      pair,
		BalanceA:  mustAmount(t, "10", tokenA),
		BalanceB:  mustAmount(t, "2.9", tokenB),
	})
	if !errors.Is(info.Err, ErrInsufficientBalance) || !IsBalanceError(info.Err) {
		t.Fatalf("expected insufficient balance, got %v", info.Err)
	}
	if info.Err.Error() != "insufficient TKB balance" {
		t.Fatalf("balance error should name the currency: %v", info.Err)
	}
}

func TestDeriveMintDeterministic(t *testing.T) {
	pair := dex.NewPair(pairAt, tokenA, tokenB, ether(1000), ether(2000), ether(100))
	in := MintInput{
		State:     MintState{IndependentField: CurrencyB, TypedValue: "7"},
		CurrencyA: &tokenA,
		CurrencyB: &tokenB,
		Pair:      pair,
	}
	first, second := DeriveMint(in), DeriveMint(in)
	if !reflect.DeepEqual(first.FormattedAmounts, second.FormattedAmounts) || first.LiquidityMinted.Cmp(second.LiquidityMinted) != 0 {
		t.Fatalf("derivation is not deterministic")
	}
}

func TestMintStateTypeInput(t *testing.T) {
	var s MintState
	s.TypeInput(CurrencyA, "1", false)
	s.TypeInput(CurrencyB, "5", false)
	if s.IndependentField != CurrencyB || s.TypedValue != "5" || s.OtherTypedValue != "" {
		t.Fatalf("priced pool should keep one independent field: %+v", s)
	}

	s.Reset()
	s.TypeInput(CurrencyA, "4", true)
	s.TypeInput(CurrencyB, "1", true)
	if s.IndependentField != CurrencyB || s.TypedValue != "1" || s.OtherTypedValue != "4" {
		t.Fatalf("empty pool should keep both inputs: %+v", s)
	}
	s.TypeInput(CurrencyB, "2", true)
	if s.TypedValue != "2" || s.OtherTypedValue != "4" {
		t.Fatalf("retyping the independent field should not touch the other: %+v", s)
	}
}
