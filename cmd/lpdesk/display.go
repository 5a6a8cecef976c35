package main

import (
	"fmt"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/route"
	"liquidityDesk/internal/slippage"
)

// routePath renders the page and pair the way the route argument accepts it.
func routePath(page string, currencyA, currencyB *amount.Currency) string {
	r := route.Route{Page: page}
	if currencyA != nil {
		r.CurrencyIDA = route.CurrencyID(*currencyA)
	}
	if currencyB != nil {
		r.CurrencyIDB = route.CurrencyID(*currencyB)
	}
	return r.Path()
}

// poolLabel names a pair by its tokens with the wrapped native token shown
// as the native currency.
func poolLabel(pair *dex.Pair, weth, native amount.Currency) string {
	return amount.Label(pair.Token0.Unwrap(weth, native), pair.Token1.Unwrap(weth, native))
}

// boundsText is the accepted range around amt at bps.
func boundsText(amt *amount.CurrencyAmount, bps int) string {
	low, high := slippage.Bounds(amt.Raw(), bps)
	return fmt.Sprintf("min %s, max %s",
		amount.New(amt.Currency, low).ToSignificant(6),
		amount.New(amt.Currency, high).ToSignificant(6))
}

// burnValue is what a removal is worth in currency B: outB plus outA
// converted at the pool price.
func burnValue(pair *dex.Pair, currencyA, weth amount.Currency, outA, outB amount.CurrencyAmount) (amount.CurrencyAmount, error) {
	price, err := pair.PriceOf(currencyA.Wrap(weth))
	if err != nil {
		return amount.CurrencyAmount{}, err
	}
	return outB.Add(price.Convert(outA)), nil
}
