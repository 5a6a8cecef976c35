package liquidity

import (
	"math/big"
	"strings"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
)

var (
	hundredPercent = amount.NewPercent(big.NewInt(1), big.NewInt(1))
	onePercent     = amount.NewPercent(big.NewInt(1), big.NewInt(100))
)

// BurnInput is everything the remove page knows at one instant.
type BurnInput struct {
	State         BurnState
	CurrencyA     *amount.Currency
	CurrencyB     *amount.Currency
	WrappedNative amount.Currency
	Pair          *dex.Pair
	UserLiquidity *big.Int
}

// BurnInfo is derived from a BurnInput. ParsedAmounts holds the LP amount
// under Liquidity and the redeemable amounts under CurrencyA and CurrencyB.
type BurnInfo struct {
	Percent          *amount.Percent
	ParsedAmounts    map[Field]*amount.CurrencyAmount
	FormattedAmounts map[Field]string
	Err              error
}

// DeriveBurn computes the remove page's derived state.
func DeriveBurn(in BurnInput) BurnInfo {
	info := BurnInfo{
		ParsedAmounts:    map[Field]*amount.CurrencyAmount{},
		FormattedAmounts: map[Field]string{},
	}
	if in.CurrencyA == nil || in.CurrencyB == nil {
		info.Err = ErrSelectToken
		info.FormattedAmounts[in.State.IndependentField] = in.State.TypedValue
		return info
	}
	if in.Pair == nil {
		info.Err = ErrInvalidPair
		info.FormattedAmounts[in.State.IndependentField] = in.State.TypedValue
		return info
	}

	userLiquidity := new(big.Int)
	if in.UserLiquidity != nil {
		userLiquidity.Set(in.UserLiquidity)
	}
	lpToken := in.Pair.LiquidityToken()
	values := map[Field]*amount.CurrencyAmount{
		CurrencyA: liquidityValue(in.Pair, *in.CurrencyA, in.WrappedNative, userLiquidity),
		CurrencyB: liquidityValue(in.Pair, *in.CurrencyB, in.WrappedNative, userLiquidity),
	}

	var percent *amount.Percent
	switch field := in.State.IndependentField; field {
	case LiquidityPercent:
		if n, ok := new(big.Int).SetString(strings.TrimSpace(in.State.TypedValue), 10); ok && n.Sign() >= 0 {
			p := amount.NewPercent(n, big.NewInt(100))
			percent = &p
		}
	case Liquidity:
		if typed := parseFor(in.State.TypedValue, &lpToken); typed != nil && userLiquidity.Sign() > 0 {
			p := amount.NewPercent(typed.Raw(), userLiquidity)
			percent = &p
		}
	case CurrencyA, CurrencyB:
		currency := in.CurrencyA
		if field == CurrencyB {
			currency = in.CurrencyB
		}
		if typed := parseFor(in.State.TypedValue, currency); typed != nil && values[field] != nil && !values[field].IsZero() {
			p := amount.NewPercent(typed.Raw(), values[field].Raw())
			percent = &p
		}
	}
	info.Percent = percent

	over := percent != nil && percent.Cmp(hundredPercent) > 0
	if percent != nil && !over {
		liquidity := amount.New(lpToken, userLiquidity).Mul(*percent)
		info.ParsedAmounts[Liquidity] = &liquidity
		for _, field := range []Field{CurrencyA, CurrencyB} {
			if values[field] != nil {
				share := values[field].Mul(*percent)
				info.ParsedAmounts[field] = &share
			}
		}
	}

	info.FormattedAmounts[LiquidityPercent] = formatPercent(percent)
	for _, field := range []Field{Liquidity, CurrencyA, CurrencyB} {
		switch {
		case field == in.State.IndependentField:
			info.FormattedAmounts[field] = in.State.TypedValue
		case info.ParsedAmounts[field] != nil:
			info.FormattedAmounts[field] = info.ParsedAmounts[field].ToSignificant(6)
		default:
			info.FormattedAmounts[field] = ""
		}
	}

	switch {
	case over:
		info.Err = ErrInsufficientLiquidity
	case info.ParsedAmounts[Liquidity] == nil || info.ParsedAmounts[CurrencyA] == nil || info.ParsedAmounts[CurrencyB] == nil:
		info.Err = ErrNoAmount
	case info.ParsedAmounts[Liquidity].IsZero():
		info.Err = ErrNoAmount
	}
	return info
}

func liquidityValue(pair *dex.Pair, currency, wrappedNative amount.Currency, liquidity *big.Int) *amount.CurrencyAmount {
	value, err := pair.LiquidityValue(currency.Wrap(wrappedNative), liquidity)
	if err != nil {
		return nil
	}
	out := amount.New(currency, value.Raw())
	return &out
}

func formatPercent(p *amount.Percent) string {
	switch {
	case p == nil:
		return ""
	case p.Cmp(hundredPercent) >= 0:
		return "100"
	case p.IsZero():
		return "0"
	case p.Cmp(onePercent) < 0:
		return "<1"
	default:
		return p.ToFixed(0)
	}
}
