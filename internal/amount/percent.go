package amount

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Percent is a fraction where 1 means 100%.
type Percent struct {
	r *big.Rat
}

func NewPercent(num, den *big.Int) Percent {
	if den == nil || den.Sign() == 0 {
		return Percent{r: new(big.Rat)}
	}
	return Percent{r: new(big.Rat).SetFrac(num, den)}
}

// FromBasisPoints converts bps (1/100 of a percent) into a Percent.
func FromBasisPoints(bps int64) Percent {
	return Percent{r: big.NewRat(bps, 10000)}
}

// Rat returns a copy of the underlying fraction.
func (p Percent) Rat() *big.Rat {
	if p.r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(p.r)
}

func (p Percent) IsZero() bool {
	return p.r == nil || p.r.Sign() == 0
}

func (p Percent) Cmp(other Percent) int {
	return p.Rat().Cmp(other.Rat())
}

// ToFixed renders the percentage (not the fraction) with the given places.
func (p Percent) ToFixed(places int) string {
	return new(big.Rat).Mul(p.Rat(), big.NewRat(100, 1)).FloatString(places)
}

func (p Percent) ToSignificant(n int) string {
	hundred := new(big.Rat).Mul(p.Rat(), big.NewRat(100, 1))
	value, err := decimal.NewFromString(hundred.FloatString(18))
	if err != nil {
		return "0"
	}
	return significant(value, n)
}
