package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// CurrencyAmount is an integer amount in the currency's smallest unit.
// Values are never mutated after construction.
type CurrencyAmount struct {
	Currency Currency
	raw      *big.Int
}

func New(currency Currency, raw *big.Int) CurrencyAmount {
	value := new(big.Int)
	if raw != nil {
		value.Set(raw)
	}
	return CurrencyAmount{Currency: currency, raw: value}
}

// Parse converts user text such as "1.5" into a raw amount. Empty text,
// non-numeric text, negative values and more fractional digits than the
// currency supports all fail with ErrInvalidAmount.
func Parse(text string, currency Currency) (CurrencyAmount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CurrencyAmount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return CurrencyAmount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if value.IsNegative() {
		return CurrencyAmount{}, fmt.Errorf("%w: negative %q", ErrInvalidAmount, text)
	}
	if !value.Equal(value.Truncate(int32(currency.Decimals))) {
		return CurrencyAmount{}, fmt.Errorf("%w: %q exceeds %d decimals", ErrInvalidAmount, text, currency.Decimals)
	}
	return New(currency, value.Shift(int32(currency.Decimals)).BigInt()), nil
}

// Raw returns a copy of the smallest-unit amount.
func (a CurrencyAmount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a CurrencyAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a CurrencyAmount) Cmp(other CurrencyAmount) int {
	return a.Raw().Cmp(other.Raw())
}

func (a CurrencyAmount) Add(other CurrencyAmount) CurrencyAmount {
	return New(a.Currency, new(big.Int).Add(a.Raw(), other.Raw()))
}

func (a CurrencyAmount) Sub(other CurrencyAmount) CurrencyAmount {
	return New(a.Currency, new(big.Int).Sub(a.Raw(), other.Raw()))
}

// Mul scales the amount by a percent, rounding down.
func (a CurrencyAmount) Mul(p Percent) CurrencyAmount {
	r := new(big.Rat).Mul(new(big.Rat).SetInt(a.Raw()), p.Rat())
	return New(a.Currency, new(big.Int).Quo(r.Num(), r.Denom()))
}

// Decimal returns the human-scaled value.
func (a CurrencyAmount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.Currency.Decimals))
}

// ToSignificant renders at most n significant digits, rounding half up and
// dropping trailing zeros.
func (a CurrencyAmount) ToSignificant(n int) string {
	return significant(a.Decimal(), n)
}

// ToExact renders every decimal digit the amount carries.
func (a CurrencyAmount) ToExact() string {
	return a.Decimal().String()
}

func (a CurrencyAmount) String() string {
	return a.ToSignificant(6) + " " + a.Currency.String()
}

func significant(value decimal.Decimal, n int) string {
	if value.IsZero() {
		return "0"
	}
	coefficient := new(big.Int).Abs(value.Coefficient())
	digits := int32(len(coefficient.String()))
	places := int32(n) - digits - value.Exponent()
	return value.Round(places).String()
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
