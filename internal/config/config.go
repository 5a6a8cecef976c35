package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds settings shared by every command, loaded from flags, env,
// or config file.
type Config struct {
	RPCURL         string
	ChainID        uint64
	Router         string
	Factory        string
	WETH           string
	NativeSymbol   string
	PermitDomain   string
	DisableNative  bool
	PrivateKey     string
	SettingsFile   string
	PGDSN          string
	History        string
	LogLevel       string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MetricsAddr    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v), nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("native-symbol", "ETH")
	v.SetDefault("permit-domain", "SushiSwap LP Token")
	v.SetDefault("settings-file", "./data/settings.json")
	v.SetDefault("history", "./data/transactions.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("confirm-timeout", 5*time.Minute)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		RPCURL:         v.GetString("rpc"),
		ChainID:        v.GetUint64("chain-id"),
		Router:         v.GetString("router"),
		Factory:        v.GetString("factory"),
		WETH:           v.GetString("weth"),
		NativeSymbol:   v.GetString("native-symbol"),
		PermitDomain:   v.GetString("permit-domain"),
		DisableNative:  v.GetBool("disable-native"),
		PrivateKey:     v.GetString("private-key"),
		SettingsFile:   v.GetString("settings-file"),
		PGDSN:          v.GetString("pg-dsn"),
		History:        v.GetString("history"),
		LogLevel:       v.GetString("log-level"),
		ConfirmTimeout: v.GetDuration("confirm-timeout"),
		PollInterval:   v.GetDuration("poll-interval"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MetricsAddr:    v.GetString("metrics-addr"),
	}
}

// Validate checks the addresses a chain-facing command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	for name, value := range map[string]string{"router": c.Router, "factory": c.Factory, "weth": c.WETH} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("%s must be a hex address, got %q", name, value)
		}
	}
	return nil
}
