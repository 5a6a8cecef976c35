package config

import (
	"github.com/spf13/pflag"
)

// LiquidityConfig holds configuration for the quote, add, remove and approve
// commands.
type LiquidityConfig struct {
	Config

	CurrencyA string
	CurrencyB string
	AmountA   string
	AmountB   string
	Percent   string
	Liquidity string
	Token     string
	Amount    string
	Slippage  string
	Deadline  string
	Approve   bool
	Permit    bool
	ExactOnly bool
	Wait      bool
	Yes       bool
}

// LoadLiquidity merges config file, environment variables, and flags into
// LiquidityConfig. Empty slippage or deadline means the stored preference.
func LoadLiquidity(cfgFile string, flags *pflag.FlagSet) (LiquidityConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return LiquidityConfig{}, err
	}
	return LiquidityConfig{
		Config:    fromViper(v),
		CurrencyA: v.GetString("a"),
		CurrencyB: v.GetString("b"),
		AmountA:   v.GetString("amount-a"),
		AmountB:   v.GetString("amount-b"),
		Percent:   v.GetString("percent"),
		Liquidity: v.GetString("liquidity"),
		Token:     v.GetString("token"),
		Amount:    v.GetString("amount"),
		Slippage:  v.GetString("slippage"),
		Deadline:  v.GetString("deadline"),
		Approve:   v.GetBool("approve"),
		Permit:    v.GetBool("permit"),
		ExactOnly: v.GetBool("exact-approval"),
		Wait:      v.GetBool("wait"),
		Yes:       v.GetBool("yes"),
	}, nil
}

// SettingsConfig holds configuration for the settings command.
type SettingsConfig struct {
	Config

	Account  string
	Slippage string
	Deadline string
}

// LoadSettings merges config file, environment variables, and flags into
// SettingsConfig.
func LoadSettings(cfgFile string, flags *pflag.FlagSet) (SettingsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SettingsConfig{}, err
	}
	return SettingsConfig{
		Config:   fromViper(v),
		Account:  v.GetString("account"),
		Slippage: v.GetString("slippage"),
		Deadline: v.GetString("deadline"),
	}, nil
}
