package liquidity

import (
	"errors"
	"math/big"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
)

// MintInput is everything the add page knows at one instant. Pair is nil when
// the factory has no pair yet, or while PairPending is set; balances are nil
// when unknown.
type MintInput struct {
	State         MintState
	CurrencyA     *amount.Currency
	CurrencyB     *amount.Currency
	WrappedNative amount.Currency
	Pair          *dex.Pair
	PairPending   bool
	BalanceA      *amount.CurrencyAmount
	BalanceB      *amount.CurrencyAmount
}

// MintInfo is derived from a MintInput and never stored.
type MintInfo struct {
	DependentField   Field
	ParsedAmounts    map[Field]*amount.CurrencyAmount
	FormattedAmounts map[Field]string
	Price            *amount.Price
	// PriceKnown is false while pair data is missing and the dependent amount
	// cannot be derived.
	PriceKnown      bool
	NoLiquidity     bool
	LiquidityMinted *big.Int
	PoolShare       *amount.Percent
	Err             error
}

// DeriveMint computes the add page's derived state.
func DeriveMint(in MintInput) MintInfo {
	indep := in.State.IndependentField
	dep := CurrencyB
	if indep == CurrencyB {
		dep = CurrencyA
	}
	info := MintInfo{
		DependentField:   dep,
		ParsedAmounts:    map[Field]*amount.CurrencyAmount{},
		FormattedAmounts: map[Field]string{},
		NoLiquidity:      !in.PairPending && !in.Pair.HasLiquidity(),
	}

	currencies := map[Field]*amount.Currency{CurrencyA: in.CurrencyA, CurrencyB: in.CurrencyB}

	independentAmount := parseFor(in.State.TypedValue, currencies[indep])
	var dependentAmount *amount.CurrencyAmount
	if info.NoLiquidity {
		dependentAmount = parseFor(in.State.OtherTypedValue, currencies[dep])
		info.PriceKnown = true
	} else if in.Pair != nil && independentAmount != nil && currencies[dep] != nil {
		quoted, err := in.Pair.Quote(amount.New(independentAmount.Currency.Wrap(in.WrappedNative), independentAmount.Raw()))
		if err == nil {
			out := amount.New(*currencies[dep], quoted.Raw())
			dependentAmount = &out
			info.PriceKnown = true
		}
	} else if in.Pair != nil {
		info.PriceKnown = true
	}
	info.ParsedAmounts[indep] = independentAmount
	info.ParsedAmounts[dep] = dependentAmount

	info.FormattedAmounts[indep] = in.State.TypedValue
	switch {
	case info.NoLiquidity:
		info.FormattedAmounts[dep] = in.State.OtherTypedValue
	case dependentAmount != nil:
		info.FormattedAmounts[dep] = dependentAmount.ToSignificant(6)
	default:
		info.FormattedAmounts[dep] = ""
	}

	parsedA, parsedB := info.ParsedAmounts[CurrencyA], info.ParsedAmounts[CurrencyB]
	if in.CurrencyA != nil && in.CurrencyB != nil {
		if info.NoLiquidity {
			if parsedA != nil && parsedB != nil && !parsedA.IsZero() && !parsedB.IsZero() {
				price := amount.NewPrice(*in.CurrencyA, *in.CurrencyB, parsedA.Raw(), parsedB.Raw())
				info.Price = &price
			}
		} else if in.Pair != nil {
			wrappedA := in.CurrencyA.Wrap(in.WrappedNative)
			if mid, err := in.Pair.PriceOf(wrappedA); err == nil {
				price := amount.NewPrice(*in.CurrencyA, *in.CurrencyB, mid.Raw().Denom(), mid.Raw().Num())
				info.Price = &price
			}
		}
	}

	if parsedA != nil && parsedB != nil && in.CurrencyA != nil && in.CurrencyB != nil {
		info.LiquidityMinted, info.PoolShare = mintedShare(in, *parsedA, *parsedB)
	}

	info.Err = mintError(in, parsedA, parsedB)
	return info
}

func mintedShare(in MintInput, a, b amount.CurrencyAmount) (*big.Int, *amount.Percent) {
	wrappedA := amount.New(a.Currency.Wrap(in.WrappedNative), a.Raw())
	wrappedB := amount.New(b.Currency.Wrap(in.WrappedNative), b.Raw())

	var (
		minted *big.Int
		supply = new(big.Int)
		err    error
	)
	if in.Pair != nil && in.Pair.TotalSupply.Sign() > 0 {
		supply = new(big.Int).Set(in.Pair.TotalSupply)
		minted, err = in.Pair.LiquidityMinted(wrappedA, wrappedB)
	} else {
		minted, err = dex.LiquidityMinted(nil, nil, nil, wrappedA.Raw(), wrappedB.Raw())
	}
	if err != nil {
		return nil, nil
	}
	share := amount.NewPercent(minted, new(big.Int).Add(supply, minted))
	return minted, &share
}

func mintError(in MintInput, parsedA, parsedB *amount.CurrencyAmount) error {
	if in.CurrencyA == nil || in.CurrencyB == nil {
		return ErrSelectToken
	}
	if in.CurrencyA.Wrap(in.WrappedNative).Equals(in.CurrencyB.Wrap(in.WrappedNative)) {
		return ErrInvalidPair
	}
	if parsedA == nil || parsedB == nil || parsedA.IsZero() || parsedB.IsZero() {
		return ErrNoAmount
	}
	if in.BalanceA != nil && in.BalanceA.Cmp(*parsedA) < 0 {
		return insufficientBalance(in.CurrencyA)
	}
	if in.BalanceB != nil && in.BalanceB.Cmp(*parsedB) < 0 {
		return insufficientBalance(in.CurrencyB)
	}
	return nil
}

// BalanceError carries the currency whose balance is short.
type BalanceError struct {
	Currency amount.Currency
}

func (e *BalanceError) Error() string {
	return "insufficient " + e.Currency.String() + " balance"
}

func (e *BalanceError) Unwrap() error { return ErrInsufficientBalance }

func insufficientBalance(c *amount.Currency) error {
	return &BalanceError{Currency: *c}
}

// IsBalanceError reports whether err is a shortfall in some currency.
func IsBalanceError(err error) bool {
	var be *BalanceError
	return errors.As(err, &be)
}

func parseFor(text string, currency *amount.Currency) *amount.CurrencyAmount {
	if currency == nil {
		return nil
	}
	parsed, err := amount.Parse(text, *currency)
	if err != nil {
		return nil
	}
	return &parsed
}
