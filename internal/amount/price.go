package amount

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Price is the amount of Quote one unit of Base buys, kept as a ratio of
// raw amounts.
type Price struct {
	Base  Currency
	Quote Currency
	ratio *big.Rat
}

// NewPrice builds a price from raw amounts of base and quote.
func NewPrice(base, quote Currency, baseRaw, quoteRaw *big.Int) Price {
	if baseRaw == nil || baseRaw.Sign() == 0 || quoteRaw == nil {
		return Price{Base: base, Quote: quote, ratio: new(big.Rat)}
	}
	return Price{Base: base, Quote: quote, ratio: new(big.Rat).SetFrac(quoteRaw, baseRaw)}
}

// Raw returns quote-raw per base-raw.
func (p Price) Raw() *big.Rat {
	if p.ratio == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(p.ratio)
}

// Adjusted scales the raw ratio by both currencies' decimals.
func (p Price) Adjusted() *big.Rat {
	out := p.Raw()
	out.Mul(out, new(big.Rat).SetInt(pow10(p.Base.Decimals)))
	return out.Quo(out, new(big.Rat).SetInt(pow10(p.Quote.Decimals)))
}

func (p Price) IsZero() bool {
	return p.ratio == nil || p.ratio.Sign() == 0
}

func (p Price) Invert() Price {
	if p.IsZero() {
		return Price{Base: p.Quote, Quote: p.Base, ratio: new(big.Rat)}
	}
	return Price{Base: p.Quote, Quote: p.Base, ratio: new(big.Rat).Inv(p.ratio)}
}

// Convert quotes amount (in Base) into Quote, rounding down.
func (p Price) Convert(amount CurrencyAmount) CurrencyAmount {
	r := new(big.Rat).Mul(new(big.Rat).SetInt(amount.Raw()), p.Raw())
	return New(p.Quote, new(big.Int).Quo(r.Num(), r.Denom()))
}

func (p Price) ToSignificant(n int) string {
	value, err := decimal.NewFromString(p.Adjusted().FloatString(18))
	if err != nil {
		return "0"
	}
	return significant(value, n)
}
