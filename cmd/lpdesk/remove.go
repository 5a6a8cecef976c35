package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/analytics"
	"liquidityDesk/internal/approval"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/flow"
	"liquidityDesk/internal/intent"
	"liquidityDesk/internal/liquidity"
	"liquidityDesk/internal/permit"
	"liquidityDesk/internal/route"
	"liquidityDesk/internal/slippage"
)

// burnState maps the burn flags onto the remove page's input state. The
// first flag set wins in the order percent, liquidity, amount A, amount B.
func burnState(cfg config.LiquidityConfig) liquidity.BurnState {
	state := liquidity.NewBurnState()
	switch {
	case cfg.Percent != "":
		state.TypeInput(liquidity.LiquidityPercent, cfg.Percent)
	case cfg.Liquidity != "":
		state.TypeInput(liquidity.Liquidity, cfg.Liquidity)
	case cfg.AmountA != "":
		state.TypeInput(liquidity.CurrencyA, cfg.AmountA)
	case cfg.AmountB != "":
		state.TypeInput(liquidity.CurrencyB, cfg.AmountB)
	}
	return state
}

func (s *session) deriveBurn(state liquidity.BurnState) (liquidity.BurnInput, liquidity.BurnInfo, error) {
	ctx, a := s.ctx, s.app
	currencyA, currencyB, err := a.resolvePair(ctx, s.cfg.CurrencyA, s.cfg.CurrencyB)
	if err != nil {
		return liquidity.BurnInput{}, liquidity.BurnInfo{}, err
	}
	pair, err := a.loadPair(ctx, currencyA, currencyB)
	if err != nil {
		return liquidity.BurnInput{}, liquidity.BurnInfo{}, err
	}
	userLiquidity := new(big.Int)
	if pair != nil && a.signer != nil {
		if userLiquidity, err = a.reader.LiquidityBalance(ctx, pair, a.owner()); err != nil {
			return liquidity.BurnInput{}, liquidity.BurnInfo{}, err
		}
	}
	in := liquidity.BurnInput{
		State:         state,
		CurrencyA:     currencyA,
		CurrencyB:     currencyB,
		WrappedNative: a.weth,
		Pair:          pair,
		UserLiquidity: userLiquidity,
	}
	return in, liquidity.DeriveBurn(in), nil
}

func printBurn(s *session, in liquidity.BurnInput, info liquidity.BurnInfo, bps int) {
	out := s.app.out
	fmt.Fprintf(out, "route: %s\n", routePath(route.PageRemove, in.CurrencyA, in.CurrencyB))
	if in.Pair != nil {
		fmt.Fprintf(out, "pool: %s (%s)\n", poolLabel(in.Pair, s.app.weth, s.app.native), in.Pair.Address.Hex())
	}
	fmt.Fprintf(out, "percent: %s%%\n", info.FormattedAmounts[liquidity.LiquidityPercent])
	fmt.Fprintf(out, "pool tokens: %s\n", info.FormattedAmounts[liquidity.Liquidity])
	if in.CurrencyA != nil && in.CurrencyB != nil {
		fmt.Fprintf(out, "%s: %s\n", in.CurrencyA.Symbol, info.FormattedAmounts[liquidity.CurrencyA])
		fmt.Fprintf(out, "%s: %s\n", in.CurrencyB.Symbol, info.FormattedAmounts[liquidity.CurrencyB])
	}
	for _, field := range []liquidity.Field{liquidity.CurrencyA, liquidity.CurrencyB} {
		if parsed := info.ParsedAmounts[field]; parsed != nil && !parsed.IsZero() {
			fmt.Fprintf(out, "%s range: %s\n", parsed.Currency.Symbol, boundsText(parsed, bps))
		}
	}
	if in.Pair != nil && in.CurrencyA != nil && in.CurrencyB != nil {
		if price, err := in.Pair.PriceOf(in.CurrencyA.Wrap(s.app.weth)); err == nil {
			fmt.Fprintf(out, "price: 1 %s = %s %s\n", in.CurrencyA.Symbol, price.ToSignificant(6), in.CurrencyB.Symbol)
		}
		outA, outB := info.ParsedAmounts[liquidity.CurrencyA], info.ParsedAmounts[liquidity.CurrencyB]
		if outA != nil && outB != nil {
			if value, err := burnValue(in.Pair, *in.CurrencyA, s.app.weth, *outA, *outB); err == nil {
				fmt.Fprintf(out, "value: %s %s\n", value.ToSignificant(6), in.CurrencyB.Symbol)
			}
		}
	}
	if info.Err != nil {
		fmt.Fprintf(out, "status: %s\n", info.Err)
	}
}

func runQuoteRemove(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args, false)
	if err != nil {
		return err
	}
	defer s.Close()

	in, info, err := s.deriveBurn(burnState(s.cfg))
	if err != nil {
		return err
	}
	policy, err := s.app.policy(s.ctx, s.cfg.Slippage, s.cfg.Deadline)
	if err != nil {
		return err
	}
	printBurn(s, in, info, policy.Bps)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args, true)
	if err != nil {
		return err
	}
	defer s.Close()
	a, ctx := s.app, s.ctx

	state := burnState(s.cfg)
	in, info, err := s.deriveBurn(state)
	if err != nil {
		return err
	}
	policy, err := a.policy(ctx, s.cfg.Slippage, s.cfg.Deadline)
	if err != nil {
		return err
	}
	printBurn(s, in, info, policy.Bps)
	if info.Err != nil {
		return info.Err
	}
	lp := info.ParsedAmounts[liquidity.Liquidity]
	outA, outB := info.ParsedAmounts[liquidity.CurrencyA], info.ParsedAmounts[liquidity.CurrencyB]

	f := flow.New(a.flowConfig(func() { state.TypeInput(liquidity.LiquidityPercent, "0") }))
	lpTracker := a.tracker(in.Pair.Address, false)

	if s.cfg.Permit {
		sig, err := a.signPermit(ctx, in, lp, policy)
		switch {
		case err == nil:
			f.SetSignature(sig)
		case flow.IsUserRejection(err):
			fmt.Fprintln(a.out, "permit rejected")
			return nil
		default:
			a.logger.Warn("permit signing failed, falling back to approval", zap.Error(err))
		}
	}
	if f.Signature() == nil {
		if err := a.ensureApproved(ctx, s.cfg.Approve, s.cfg.ExactOnly, map[*approval.Tracker]*big.Int{lpTracker: lp.Raw()}); err != nil {
			return err
		}
	}

	if err := f.Open(); err != nil {
		return err
	}
	prepare := func(ctx context.Context, sig *permit.Signature) (*flow.Prepared, error) {
		var deadline *big.Int
		if sig == nil {
			var err error
			if deadline, err = a.expiry(ctx, policy); err != nil {
				return nil, err
			}
		}
		candidates, err := intent.BuildRemove(intent.RemoveParams{
			CurrencyA:     *in.CurrencyA,
			CurrencyB:     *in.CurrencyB,
			Liquidity:     lp.Raw(),
			MinA:          slippage.MinimumAmount(outA.Raw(), policy.Bps),
			MinB:          slippage.MinimumAmount(outB.Raw(), policy.Bps),
			WrappedNative: a.weth.Address,
			To:            a.owner(),
			Deadline:      deadline,
			Approved:      sig == nil && lpTracker.State() == approval.Approved,
			Signature:     sig,
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
			Summary:   fmt.Sprintf("Remove %s %s and %s %s", outA.ToSignificant(3), in.CurrencyA.Symbol, outB.ToSignificant(3), in.CurrencyB.Symbol),
			Event:     analytics.LiquidityEvent(analytics.ActionRemove, *in.CurrencyA, *in.CurrencyB),
		}, nil
	}
	return a.submit(ctx, f, prepare, s.cfg.Wait)
}

// signPermit signs an LP permit for the router covering lp until the policy
// deadline.
func (a *app) signPermit(ctx context.Context, in liquidity.BurnInput, lp *amount.CurrencyAmount, policy slippage.Policy) (*permit.Signature, error) {
	if a.signer == nil {
		return nil, errors.New("permit requires a signer")
	}
	nonce, err := a.reader.PermitNonce(ctx, in.Pair.Address, a.owner())
	if err != nil {
		return nil, fmt.Errorf("permit nonce: %w", err)
	}
	deadline, err := a.expiry(ctx, policy)
	if err != nil {
		return nil, err
	}
	return permit.Sign(permit.Request{
		ChainID:    new(big.Int).SetUint64(a.chainID),
		Pair:       in.Pair.Address,
		DomainName: a.cfg.PermitDomain,
		Owner:      a.owner(),
		Spender:    a.router,
		Value:      lp.Raw(),
		Nonce:      nonce,
		Deadline:   deadline,
	}, a.signer)
}
