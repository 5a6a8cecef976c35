package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"liquidityDesk/internal/amount"
	"liquidityDesk/internal/analytics"
	"liquidityDesk/internal/approval"
	"liquidityDesk/internal/chain"
	"liquidityDesk/internal/config"
	"liquidityDesk/internal/dex"
	"liquidityDesk/internal/flow"
	"liquidityDesk/internal/intent"
	"liquidityDesk/internal/model"
	"liquidityDesk/internal/route"
	"liquidityDesk/internal/settings"
	"liquidityDesk/internal/slippage"
	"liquidityDesk/internal/storage"
	"liquidityDesk/internal/storage/postgres"
	"liquidityDesk/internal/wallet"
)

// app holds the wiring shared by the chain-facing commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	client  *chain.Client
	chainID uint64
	router  common.Address
	factory common.Address
	native  amount.Currency
	weth    amount.Currency

	reader    dex.TokenReader
	resolver  *route.Resolver
	pairCache *dex.PairMetaCache

	signer    *wallet.Signer
	submitter *wallet.Submitter

	pg       *postgres.Store
	settings settings.Store
	history  storage.Sink

	events  *analytics.Emitter
	metrics *analytics.MetricsServer
}

type appOptions struct {
	needSigner bool
	yes        bool
	in         io.Reader
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer, opts appOptions) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a := &app{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		client:    client,
		router:    common.HexToAddress(cfg.Router),
		factory:   common.HexToAddress(cfg.Factory),
		reader:    dex.TokenReader{Caller: client, Balances: client},
		pairCache: dex.NewPairMetaCache(),
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if cfg.ChainID != 0 && cfg.ChainID != chainID.Uint64() {
		a.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", chainID, cfg.ChainID)
	}
	a.chainID = chainID.Uint64()
	a.native = amount.NativeCurrency(a.chainID, cfg.NativeSymbol)
	a.resolver = &route.Resolver{
		ChainID:      a.chainID,
		NativeSymbol: cfg.NativeSymbol,
		Caller:       client,
		Cache:        dex.NewTokenMetaCache(),
		Logger:       logger,
	}
	weth, err := a.resolver.Resolve(ctx, cfg.WETH)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("wrapped native token: %w", err)
	}
	a.weth = *weth

	if cfg.PrivateKey != "" {
		signer, err := wallet.NewSigner(cfg.PrivateKey, promptConfirm(opts.in, out, opts.yes))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.signer = signer
		a.submitter = wallet.NewSubmitter(client, signer, a.native, logger)
	} else if opts.needSigner {
		a.Close()
		return nil, fmt.Errorf("private key is required (set LPDESK_PRIVATE_KEY)")
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	promSink, err := analytics.NewPromSink(registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.events = analytics.NewEmitter(analytics.Multi{analytics.LogSink{Logger: logger}, promSink}, 64, logger)
	a.metrics = analytics.NewMetricsServer(cfg.MetricsAddr, registry)
	if a.metrics != nil {
		go func() {
			if err := a.metrics.Start(); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	return a, nil
}

// openStores picks Postgres when a DSN is configured, else local files.
func (a *app) openStores(ctx context.Context) error {
	account := a.account()
	if a.cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.pg = pg
		a.settings = &settings.DBStore{Backend: pg, Account: account}
		a.history = pg
		return nil
	}
	a.settings = &settings.FileStore{Path: a.cfg.SettingsFile}
	if a.cfg.History != "" {
		a.history = storage.NewJsonlStorage(a.cfg.History)
	} else {
		a.history = storage.Nop{}
	}
	return nil
}

func (a *app) account() string {
	if a.signer != nil {
		return a.signer.Address().Hex()
	}
	return "default"
}

func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Stop(ctx); err != nil {
			a.logger.Warn("stop metrics server", zap.Error(err))
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
}

// owner is the account balances are read for; zero without a signer.
func (a *app) owner() common.Address {
	if a.signer == nil {
		return common.Address{}
	}
	return a.signer.Address()
}

func (a *app) resolvePair(ctx context.Context, idA, idB string) (*amount.Currency, *amount.Currency, error) {
	currencyA, err := a.resolver.Resolve(ctx, idA)
	if err != nil {
		return nil, nil, err
	}
	currencyB, err := a.resolver.Resolve(ctx, idB)
	if err != nil {
		return nil, nil, err
	}
	return currencyA, currencyB, nil
}

// loadPair returns nil when either currency is missing, both wrap to the same
// token, or the factory has no pair.
func (a *app) loadPair(ctx context.Context, currencyA, currencyB *amount.Currency) (*dex.Pair, error) {
	if currencyA == nil || currencyB == nil {
		return nil, nil
	}
	wrappedA, wrappedB := currencyA.Wrap(a.weth), currencyB.Wrap(a.weth)
	if wrappedA.Equals(wrappedB) {
		return nil, nil
	}
	return dex.FetchPair(ctx, a.client, a.factory, wrappedA, wrappedB, a.pairCache)
}

func (a *app) balance(ctx context.Context, c *amount.Currency) (*amount.CurrencyAmount, error) {
	if c == nil || a.signer == nil {
		return nil, nil
	}
	bal, err := a.reader.BalanceOf(ctx, *c, a.owner())
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// policy applies command-line overrides to the stored preferences.
func (a *app) policy(ctx context.Context, slippageText, deadlineText string) (slippage.Policy, error) {
	prefs, err := settings.LoadOrDefault(ctx, a.settings, a.logger)
	if err != nil {
		a.logger.Warn("load settings failed, using defaults", zap.Error(err))
	}
	policy := prefs.Policy()
	if slippageText != "" {
		bps, err := slippage.ParseCustom(slippageText)
		if err != nil {
			return policy, err
		}
		policy.Bps = bps
	}
	if deadlineText != "" {
		deadline, err := slippage.ParseCustomDeadline(deadlineText)
		if err != nil {
			return policy, err
		}
		policy.Deadline = deadline
	}
	if warning := slippage.CheckInput(slippageText, policy.Bps); warning != slippage.WarningNone {
		fmt.Fprintf(a.out, "warning: %s\n", warning)
	}
	return policy, nil
}

// expiry is the deadline measured from the latest block's timestamp.
func (a *app) expiry(ctx context.Context, policy slippage.Policy) (*big.Int, error) {
	blockTime, err := a.client.BlockTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}
	return slippage.Expiry(blockTime, policy.Deadline), nil
}

func (a *app) approver(exactOnly bool) *intent.Approver {
	return &intent.Approver{
		Estimator: a.client,
		Submitter: a.submitter,
		From:      a.owner(),
		ExactOnly: exactOnly,
		Logger:    a.logger,
	}
}

func (a *app) tracker(token common.Address, native bool) *approval.Tracker {
	return approval.NewTracker(approval.Config{
		Token:   token,
		Owner:   a.owner(),
		Spender: a.router,
		Native:  native,
	}, a.reader, a.client, a.logger)
}

// ensureApproved refreshes each tracker against its required amount and,
// when allowed, sends the missing approvals and waits for them to settle.
func (a *app) ensureApproved(ctx context.Context, approve, exactOnly bool, required map[*approval.Tracker]*big.Int) error {
	var missing []*approval.Tracker
	for tracker, amt := range required {
		state, err := tracker.Refresh(ctx, amt)
		if err != nil {
			return err
		}
		if state == approval.NotApproved {
			missing = append(missing, tracker)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if !approve {
		tokens := make([]string, 0, len(missing))
		for _, tracker := range missing {
			tokens = append(tokens, tracker.Token().Hex())
		}
		return fmt.Errorf("router is not approved for %s; rerun with --approve", strings.Join(tokens, ", "))
	}

	approver := a.approver(exactOnly)
	for _, tracker := range missing {
		hash, err := tracker.Approve(ctx, approver)
		if err != nil {
			return fmt.Errorf("approve %s: %w", tracker.Token().Hex(), err)
		}
		fmt.Fprintf(a.out, "approval sent: %s\n", hash.Hex())
	}
	return a.waitApprovals(ctx, missing...)
}

func (a *app) waitApprovals(ctx context.Context, trackers ...*approval.Tracker) error {
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.ConfirmTimeout)
	defer cancel()
	<-approval.NewWatcher(a.cfg.PollInterval, 5, a.logger, trackers...).Start(waitCtx)

	for _, tracker := range trackers {
		if state := tracker.State(); state != approval.Approved {
			return fmt.Errorf("approval for %s is %s", tracker.Token().Hex(), state)
		}
	}
	return nil
}

// promptConfirm asks on out and reads y/N from in. yes approves everything.
func promptConfirm(in io.Reader, out io.Writer, yes bool) wallet.ConfirmFunc {
	if yes || in == nil {
		return func(string) bool { return true }
	}
	var mu sync.Mutex
	reader := bufio.NewReader(in)
	return func(summary string) bool {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "%s\nconfirm? [y/N] ", summary)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func (a *app) flowConfig(reset func()) flow.Config {
	return flow.Config{
		ChainID:      a.chainID,
		From:         a.owner(),
		Submitter:    a.submitter,
		Events:       a.events,
		History:      a.history,
		Receipts:     a.client,
		ResetInputs:  reset,
		Logger:       a.logger,
		PollInterval: a.cfg.PollInterval,
		Timeout:      a.cfg.ConfirmTimeout,
		MaxRetries:   a.cfg.MaxRetries,
	}
}

// submit runs the confirmation flow and optionally waits for the receipt.
// Declining the prompt is not an error.
func (a *app) submit(ctx context.Context, f *flow.Flow, prepare flow.PrepareFunc, wait bool) error {
	defer f.Dismiss()

	hash, err := f.Submit(ctx, prepare)
	if err != nil {
		return err
	}
	if f.Phase() == flow.AwaitingConfirmation {
		fmt.Fprintln(a.out, "transaction rejected")
		return nil
	}
	fmt.Fprintf(a.out, "submitted: %s\n", hash.Hex())
	if !wait {
		return nil
	}

	report, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "status: %s (block %s)\n", report.Status, report.Receipt.BlockNumber)
	for _, event := range report.Events {
		fmt.Fprintf(a.out, "%s on %s: amount0=%s amount1=%s\n", event.Name, event.Pair, event.Amount0, event.Amount1)
	}
	if report.Status == model.TxStatusReverted {
		return fmt.Errorf("transaction %s reverted", hash.Hex())
	}
	return nil
}
