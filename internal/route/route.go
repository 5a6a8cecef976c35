package route

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/dex"
)

// Pages.
const (
	PageAdd    = "add"
	PageCreate = "create"
	PageRemove = "remove"
)

var (
	ErrUnknownPage     = errors.New("unknown page")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Route is a liquidity page with up to two selected currencies.
type Route struct {
	Page        string
	CurrencyIDA string
	CurrencyIDB string
}

// Parse accepts /add, /create and /remove paths with zero, one or two
// currency segments. Extra segments are an error.
func Parse(path string) (Route, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	parts := strings.Split(trimmed, "/")
	if trimmed == "" || len(parts) > 3 {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownPage, path)
	}
	switch parts[0] {
	case PageAdd, PageCreate, PageRemove:
	default:
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownPage, path)
	}
	r := Route{Page: parts[0]}
	if len(parts) > 1 {
		r.CurrencyIDA = parts[1]
	}
	if len(parts) > 2 {
		r.CurrencyIDB = parts[2]
	}
	return r, nil
}

// Path renders the route. An empty A with a set B renders B as the only
// segment.
func (r Route) Path() string {
	segments := []string{"", r.Page}
	for _, id := range []string{r.CurrencyIDA, r.CurrencyIDB} {
		if id != "" {
			segments = append(segments, id)
		}
	}
	return strings.Join(segments, "/")
}

// SelectA picks currency A. Picking the current B swaps the pair.
func SelectA(r Route, id string) Route {
	if r.CurrencyIDB != "" && strings.EqualFold(id, r.CurrencyIDB) {
		return Route{Page: r.Page, CurrencyIDA: r.CurrencyIDB, CurrencyIDB: r.CurrencyIDA}
	}
	return Route{Page: r.Page, CurrencyIDA: id, CurrencyIDB: r.CurrencyIDB}
}

// SelectB picks currency B. Picking the current A swaps the pair.
func SelectB(r Route, id string) Route {
	if r.CurrencyIDA != "" && strings.EqualFold(id, r.CurrencyIDA) {
		return Route{Page: r.Page, CurrencyIDA: r.CurrencyIDB, CurrencyIDB: r.CurrencyIDA}
	}
	return Route{Page: r.Page, CurrencyIDA: r.CurrencyIDA, CurrencyIDB: id}
}

// CurrencyID is the native symbol or the token's checksum address.
func CurrencyID(c amount.Currency) string {
	if c.Native {
		return c.Symbol
	}
	return c.Address.Hex()
}

// Resolver turns currency IDs into currencies.
type Resolver struct {
	ChainID      uint64
	NativeSymbol string
	Caller       ethereum.ContractCaller
	Cache        *dex.TokenMetaCache
	Logger       *zap.Logger
}

// Resolve returns nil for an empty id.
func (r *Resolver) Resolve(ctx context.Context, id string) (*amount.Currency, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	if strings.EqualFold(id, r.NativeSymbol) {
		native := amount.NativeCurrency(r.ChainID, r.NativeSymbol)
		return &native, nil
	}
	if !common.IsHexAddress(id) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, id)
	}
	if r.Cache == nil {
		r.Cache = dex.NewTokenMetaCache()
	}
	meta, err := dex.CachedTokenMeta(ctx, r.Caller, r.Cache, common.HexToAddress(id), r.Logger)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	token := amount.TokenFromMeta(r.ChainID, meta)
	return &token, nil
}
