package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"liquidityDesk/internal/config"
	"liquidityDesk/internal/settings"
	"liquidityDesk/internal/slippage"
	"liquidityDesk/internal/storage/postgres"
	"liquidityDesk/internal/wallet"
)

// openSettings returns the preference store without touching the chain.
func openSettings(ctx context.Context, cfg config.SettingsConfig) (settings.Store, func(), error) {
	account := cfg.Account
	if account == "" && cfg.PrivateKey != "" {
		signer, err := wallet.NewSigner(cfg.PrivateKey, nil)
		if err != nil {
			return nil, nil, err
		}
		account = signer.Address().Hex()
	}
	if account == "" {
		account = "default"
	}

	if cfg.PGDSN == "" {
		return &settings.FileStore{Path: cfg.SettingsFile}, func() {}, nil
	}
	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &settings.DBStore{Backend: pg, Account: account}, pg.Close, nil
}

func loadSettingsCommand(cmd *cobra.Command) (config.SettingsConfig, settings.Store, func(), error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSettings(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, nil, nil, err
	}
	store, closeStore, err := openSettings(cmd.Context(), cfg)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, store, closeStore, nil
}

func printPreferences(cmd *cobra.Command, prefs settings.Preferences) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "slippage: %.2f%%\n", float64(prefs.SlippageBps)/100)
	fmt.Fprintf(out, "deadline: %d minutes\n", prefs.DeadlineSeconds/60)
	if warning := slippage.Validate(prefs.SlippageBps); warning != slippage.WarningNone {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	cfg, store, closeStore, err := loadSettingsCommand(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	prefs, err := settings.LoadOrDefault(cmd.Context(), store, logger)
	if err != nil {
		return err
	}
	printPreferences(cmd, prefs)
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	cfg, store, closeStore, err := loadSettingsCommand(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	prefs, err := settings.LoadOrDefault(ctx, store, logger)
	if err != nil {
		return err
	}
	if cfg.Slippage != "" {
		bps, err := slippage.ParseCustom(cfg.Slippage)
		if err != nil {
			return err
		}
		prefs.SlippageBps = bps
	}
	if cfg.Deadline != "" {
		deadline, err := slippage.ParseCustomDeadline(cfg.Deadline)
		if err != nil {
			return err
		}
		prefs.DeadlineSeconds = int64(deadline / time.Second)
	}
	if err := prefs.Validate(); err != nil {
		return err
	}
	if err := store.Save(ctx, prefs); err != nil {
		return err
	}
	printPreferences(cmd, prefs)
	return nil
}

