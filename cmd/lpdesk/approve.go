package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/approval"
)

func runApprove(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, nil, true)
	if err != nil {
		return err
	}
	defer s.Close()
	a, ctx := s.app, s.ctx

	token, err := a.resolver.Resolve(ctx, s.cfg.Token)
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("token is required")
	}
	required, err := amount.Parse(s.cfg.Amount, *token)
	if err != nil {
		return err
	}

	tracker := a.tracker(token.Address, token.Native)
	if err := a.ensureApproved(ctx, true, s.cfg.ExactOnly, map[*approval.Tracker]*big.Int{tracker: required.Raw()}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", token.Symbol, tracker.State())
	return nil
}
