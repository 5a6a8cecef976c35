package liquidity

import "errors"

// Field identifies one of the user-editable inputs.
type Field int

const (
	CurrencyA Field = iota
	CurrencyB
	Liquidity
	LiquidityPercent
)

func (f Field) String() string {
	switch f {
	case CurrencyA:
		return "CURRENCY_A"
	case CurrencyB:
		return "CURRENCY_B"
	case Liquidity:
		return "LIQUIDITY"
	case LiquidityPercent:
		return "LIQUIDITY_PERCENT"
	default:
		return "UNKNOWN"
	}
}

// Errors reported through the derived info; any of them disables submission.
var (
	ErrSelectToken           = errors.New("select a token")
	ErrNoAmount              = errors.New("enter an amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidPair           = errors.New("invalid pair")
)
