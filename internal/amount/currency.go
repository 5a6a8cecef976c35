package amount

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"liquidityDesk/internal/model"
)

// Currency is either an ERC20 token or the chain's native coin.
type Currency struct {
	ChainID  uint64
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
	Native   bool
}

// NativeCurrency returns the 18-decimal native coin for a chain.
func NativeCurrency(chainID uint64, symbol string) Currency {
	return Currency{
		ChainID:  chainID,
		Decimals: 18,
		Symbol:   symbol,
		Name:     symbol,
		Native:   true,
	}
}

// TokenFromMeta builds a token currency from fetched ERC20 metadata.
func TokenFromMeta(chainID uint64, meta model.TokenMeta) Currency {
	return Currency{
		ChainID:  chainID,
		Address:  common.HexToAddress(meta.Address),
		Decimals: meta.Decimals,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
	}
}

func (c Currency) Equals(other Currency) bool {
	if c.ChainID != other.ChainID || c.Native != other.Native {
		return false
	}
	if c.Native {
		return true
	}
	return c.Address == other.Address
}

// Wrap returns the wrapped token for a native currency and c otherwise.
func (c Currency) Wrap(wrapped Currency) Currency {
	if c.Native {
		return wrapped
	}
	return c
}

// Unwrap maps the wrapped native token back to the native currency.
func (c Currency) Unwrap(wrapped Currency, native Currency) Currency {
	if !c.Native && c.Address == wrapped.Address {
		return native
	}
	return c
}

func (c Currency) String() string {
	if c.Symbol != "" {
		return c.Symbol
	}
	if c.Native {
		return "NATIVE"
	}
	return c.Address.Hex()
}

// Label joins two symbols the way analytics and summaries expect ("A/B").
func Label(a, b Currency) string {
	return strings.Join([]string{a.String(), b.String()}, "/")
}
