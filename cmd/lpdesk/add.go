package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/analytics"
	"liquidityDesk/internal/approval"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/flow"
	"liquidityDesk/internal/intent"
	"liquidityDesk/internal/liquidity"
	"liquidityDesk/internal/permit"
	"liquidityDesk/internal/route"
	"liquidityDesk/internal/slippage"
)

type session struct {
	app    *app
	cfg    config.LiquidityConfig
	ctx    context.Context
	logger *zap.Logger
	stop   func()
}

func (s *session) Close() {
	s.app.Close()
	s.stop()
	_ = s.logger.Sync()
}

func newSession(cmd *cobra.Command, args []string, needSigner bool) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLiquidity(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		var flagA, flagB string
		if cmd.Flags().Changed("a") {
			flagA = cfg.CurrencyA
		}
		if cmd.Flags().Changed("b") {
			flagB = cfg.CurrencyB
		}
		r, err := pairFromRoute(args[0], routePages[cmd.Name()], flagA, flagB)
		if err != nil {
			return nil, err
		}
		if r.CurrencyIDA != "" {
			cfg.CurrencyA = r.CurrencyIDA
		}
		if r.CurrencyIDB != "" {
			cfg.CurrencyB = r.CurrencyIDB
		}
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a, err := newApp(ctx, cfg.Config, logger, cmd.OutOrStdout(), appOptions{
		needSigner: needSigner,
		yes:        cfg.Yes,
		in:         cmd.InOrStdin(),
	})
	if err != nil {
		stop()
		_ = logger.Sync()
		return nil, err
	}
	return &session{app: a, cfg: cfg, ctx: ctx, logger: logger, stop: stop}, nil
}

// routePages lists the pages each command accepts as its route argument.
var routePages = map[string][]string{
	"add":          {route.PageAdd, route.PageCreate},
	"quote-add":    {route.PageAdd, route.PageCreate},
	"remove":       {route.PageRemove},
	"quote-remove": {route.PageRemove},
}

// pairFromRoute parses a route such as /add/ETH/0x... and applies the --a
// and --b flags on top of it. A flag naming the other side's currency swaps
// the pair instead of selecting the same currency twice.
func pairFromRoute(path string, pages []string, flagA, flagB string) (route.Route, error) {
	r, err := route.Parse(path)
	if err != nil {
		return route.Route{}, err
	}
	accepted := false
	for _, page := range pages {
		accepted = accepted || r.Page == page
	}
	if !accepted {
		return route.Route{}, fmt.Errorf("%w: %q here, expected %s", route.ErrUnknownPage, r.Page, strings.Join(pages, " or "))
	}
	if flagA != "" {
		r = route.SelectA(r, flagA)
	}
	if flagB != "" {
		r = route.SelectB(r, flagB)
	}
	return r, nil
}

// mintState maps the amount flags onto the add page's input state.
func mintState(cfg config.LiquidityConfig) liquidity.MintState {
	if cfg.AmountA == "" && cfg.AmountB != "" {
		return liquidity.MintState{IndependentField: liquidity.CurrencyB, TypedValue: cfg.AmountB}
	}
	return liquidity.MintState{
		IndependentField: liquidity.CurrencyA,
		TypedValue:       cfg.AmountA,
		OtherTypedValue:  cfg.AmountB,
	}
}

func (s *session) deriveMint(state liquidity.MintState) (liquidity.MintInput, liquidity.MintInfo, error) {
	ctx, a := s.ctx, s.app
	currencyA, currencyB, err := a.resolvePair(ctx, s.cfg.CurrencyA, s.cfg.CurrencyB)
	if err != nil {
		return liquidity.MintInput{}, liquidity.MintInfo{}, err
	}
	pair, err := a.loadPair(ctx, currencyA, currencyB)
	if err != nil {
		return liquidity.MintInput{}, liquidity.MintInfo{}, err
	}
	balanceA, err := a.balance(ctx, currencyA)
	if err != nil {
		return liquidity.MintInput{}, liquidity.MintInfo{}, err
	}
	balanceB, err := a.balance(ctx, currencyB)
	if err != nil {
		return liquidity.MintInput{}, liquidity.MintInfo{}, err
	}
	in := liquidity.MintInput{
		State:         state,
		CurrencyA:     currencyA,
		CurrencyB:     currencyB,
		WrappedNative: a.weth,
		Pair:          pair,
		BalanceA:      balanceA,
		BalanceB:      balanceB,
	}
	return in, liquidity.DeriveMint(in), nil
}

func printMint(s *session, in liquidity.MintInput, info liquidity.MintInfo, bps int) {
	out := s.app.out
	symbol := func(c *amount.Currency) string {
		if c == nil {
			return "?"
		}
		return c.Symbol
	}
	page := route.PageAdd
	if info.NoLiquidity {
		page = route.PageCreate
	}
	fmt.Fprintf(out, "route: %s\n", routePath(page, in.CurrencyA, in.CurrencyB))
	if in.Pair != nil {
		fmt.Fprintf(out, "pool: %s (%s)\n", poolLabel(in.Pair, s.app.weth, s.app.native), in.Pair.Address.Hex())
	}
	if info.NoLiquidity {
		fmt.Fprintln(out, "You are the first liquidity provider; the ratio you add sets the price.")
	}
	fmt.Fprintf(out, "%s: %s\n", symbol(in.CurrencyA), info.FormattedAmounts[liquidity.CurrencyA])
	fmt.Fprintf(out, "%s: %s\n", symbol(in.CurrencyB), info.FormattedAmounts[liquidity.CurrencyB])
	bps = slippage.EffectiveTolerance(bps, info.NoLiquidity)
	for _, field := range []liquidity.Field{liquidity.CurrencyA, liquidity.CurrencyB} {
		if parsed := info.ParsedAmounts[field]; parsed != nil && !parsed.IsZero() {
			fmt.Fprintf(out, "%s range: %s\n", parsed.Currency.Symbol, boundsText(parsed, bps))
		}
	}
	if info.Price != nil && !info.Price.IsZero() {
		fmt.Fprintf(out, "price: 1 %s = %s %s\n", symbol(in.CurrencyA), info.Price.ToSignificant(6), symbol(in.CurrencyB))
		fmt.Fprintf(out, "price: 1 %s = %s %s\n", symbol(in.CurrencyB), info.Price.Invert().ToSignificant(6), symbol(in.CurrencyA))
	} else if !info.PriceKnown {
		fmt.Fprintln(out, "price: loading")
	}
	if info.LiquidityMinted != nil {
		lpToken := amount.Currency{Decimals: 18, Symbol: dex.LiquidityTokenSymbol}
		if in.Pair != nil {
			lpToken = in.Pair.LiquidityToken()
		}
		fmt.Fprintf(out, "pool tokens: %s\n", amount.New(lpToken, info.LiquidityMinted).ToSignificant(6))
	}
	if info.PoolShare != nil {
		fmt.Fprintf(out, "share of pool: %s%%\n", info.PoolShare.ToSignificant(4))
	}
	if info.Err != nil {
		fmt.Fprintf(out, "status: %s\n", info.Err)
	}
}

func runQuoteAdd(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args, false)
	if err != nil {
		return err
	}
	defer s.Close()

	in, info, err := s.deriveMint(mintState(s.cfg))
	if err != nil {
		return err
	}
	policy, err := s.app.policy(s.ctx, s.cfg.Slippage, s.cfg.Deadline)
	if err != nil {
		return err
	}
	printMint(s, in, info, policy.Bps)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args, true)
	if err != nil {
		return err
	}
	defer s.Close()
	a, ctx := s.app, s.ctx

	state := mintState(s.cfg)
	in, info, err := s.deriveMint(state)
	if err != nil {
		return err
	}
	policy, err := a.policy(ctx, s.cfg.Slippage, s.cfg.Deadline)
	if err != nil {
		return err
	}
	printMint(s, in, info, policy.Bps)
	if info.Err != nil {
		return info.Err
	}
	parsedA, parsedB := info.ParsedAmounts[liquidity.CurrencyA], info.ParsedAmounts[liquidity.CurrencyB]

	trackerA := a.tracker(in.CurrencyA.Address, in.CurrencyA.Native)
	trackerB := a.tracker(in.CurrencyB.Address, in.CurrencyB.Native)
	if err := a.ensureApproved(ctx, s.cfg.Approve, s.cfg.ExactOnly, map[*approval.Tracker]*big.Int{
		trackerA: parsedA.Raw(),
		trackerB: parsedB.Raw(),
	}); err != nil {
		return err
	}

	f := flow.New(a.flowConfig(state.Reset))
	if err := f.Open(); err != nil {
		return err
	}
	prepare := func(ctx context.Context, _ *permit.Signature) (*flow.Prepared, error) {
		bps := slippage.EffectiveTolerance(policy.Bps, info.NoLiquidity)
		deadline, err := a.expiry(ctx, policy)
		if err != nil {
			return nil, err
		}
		candidates, err := intent.BuildAdd(intent.AddParams{
			CurrencyA:     *in.CurrencyA,
			CurrencyB:     *in.CurrencyB,
			AmountA:       parsedA.Raw(),
			AmountB:       parsedB.Raw(),
			MinA:          slippage.MinimumAmount(parsedA.Raw(), bps),
			MinB:          slippage.MinimumAmount(parsedB.Raw(), bps),
			WrappedNative: a.weth.Address,
			To:            a.owner(),
			Deadline:      deadline,
			DisableNative: a.cfg.DisableNative,
		})
		if err != nil {
			return nil, err
		}
		sel, err := intent.Select(ctx, a.client, a.owner(), a.router, candidates, a.logger)
		if err != nil {
			return nil, err
		}
		return &flow.Prepared{
			Selection: sel,
			Summary:   fmt.Sprintf("Add %s %s and %s %s", parsedA.ToSignificant(3), in.CurrencyA.Symbol, parsedB.ToSignificant(3), in.CurrencyB.Symbol),
			Event:     analytics.LiquidityEvent(analytics.ActionAdd, *in.CurrencyA, *in.CurrencyB),
		}, nil
	}
	return a.submit(ctx, f, prepare, s.cfg.Wait)
}
