package swap

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/wallet"
	"OpenMCP-Swap/internal/web3"
	"OpenMCP-Swap/pkg/logger"
)

// Orchestrator runs swaps end to end. It holds no per-swap state and is safe
// for concurrent use.
type Orchestrator struct {
	cfg       Config
	confirmed bool
	pools     *PoolLocator
	decimals  *DecimalsResolver
	quotes    *QuoteEngine
	slippage  SlippageGuard
	approvals *ApprovalCoordinator
	executor  *Executor
	now       func() time.Time
	log       *slog.Logger
}

type options struct {
	cache  DecimalsCache
	waiter ReceiptWaiter
	now    func() time.Time
	log    *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*options)

// WithDecimalsCache caches successful decimals reads.
func WithDecimalsCache(cache DecimalsCache) Option {
	return func(o *options) { o.cache = cache }
}

// WithApprovalConfirmation waits for sell approvals to be mined before the
// swap is submitted.
func WithApprovalConfirmation(waiter ReceiptWaiter) Option {
	return func(o *options) { o.waiter = waiter }
}

// WithClock replaces time.Now for deadline computation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// NewOrchestrator wires the swap components from cfg.
func NewOrchestrator(cfg Config, index LiquidityIndex, chain Chain, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if index == nil || chain == nil {
		return nil, fmt.Errorf("swap: liquidity index and chain are required")
	}
	guard, err := NewSlippageGuard(cfg.TolerancePerMille)
	if err != nil {
		return nil, err
	}
	o := options{now: time.Now, log: logger.Named("swap")}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Orchestrator{
		cfg:       cfg,
		confirmed: o.waiter != nil,
		pools:     NewPoolLocator(index, cfg.IndexChain, cfg.FeeTier),
		decimals:  NewDecimalsResolver(chain, o.cache, o.log),
		quotes:    NewQuoteEngine(chain),
		slippage:  guard,
		approvals: NewApprovalCoordinator(chain, cfg.Router, o.waiter, o.log),
		executor:  NewExecutor(chain, cfg.WETH, cfg.Deadline),
		now:       o.now,
		log:       o.log,
	}, nil
}

// Quote runs pool discovery, normalization, quoting and slippage without
// touching the wallet.
func (o *Orchestrator) Quote(ctx context.Context, intent Intent) (Preview, error) {
	return o.preview(ctx, o.begin(intent))
}

// Execute performs the swap described by intent with signer. It never returns
// an error: failures are reported through Result.
func (o *Orchestrator) Execute(ctx context.Context, intent Intent, signer wallet.Signer) (result Result) {
	run := o.begin(intent)
	result = Result{
		RequestID: run.id,
		Direction: intent.Direction,
		Token:     strings.TrimSpace(intent.Token),
		State:     StateIdle,
	}
	defer func() {
		if r := recover(); r != nil {
			o.fail(run, &result, xerrors.New(CodeSwapExecutionFailed, fmt.Sprintf("panic: %v", r),
				xerrors.WithMetadata("step", string(result.State))))
		}
	}()
	if signer == nil {
		o.fail(run, &result, newInvalidInput("wallet", "wallet is required"))
		return result
	}

	preview, err := o.preview(ctx, run)
	result.Warnings = preview.Warnings
	if preview.AmountIn != nil {
		result.AmountIn = preview.AmountIn.String()
	}
	if err != nil {
		result.State = run.state
		o.fail(run, &result, err)
		return result
	}
	result.QuotedOut = preview.QuotedOut.String()
	result.MinAmountOut = preview.MinAmountOut.String()
	result.State = StateQuoted

	if preview.Direction == Sell {
		hash, err := o.approvals.Approve(ctx, signer, preview.Token, preview.AmountIn)
		if hash != (common.Hash{}) {
			result.ApprovalTxHash = hash.Hex()
		}
		if err != nil {
			o.fail(run, &result, err)
			return result
		}
		o.step(run, StateApproved)
		result.State = StateApproved
	}

	plan := o.executor.Plan(preview.Direction, preview.Token, PoolInfo{Address: preview.Pool, FeeTier: preview.FeeTier},
		signer.Address(), preview.AmountIn, preview.MinAmountOut, o.now())
	if preview.Direction == Sell && !o.confirmed {
		plan.GasLimit = o.cfg.SellGasLimit
	}
	hash, err := o.executor.Submit(ctx, signer, plan)
	if err != nil {
		o.fail(run, &result, err)
		return result
	}
	o.step(run, StateSubmitted)

	result.Success = true
	result.State = StateCompleted
	result.TxHash = hash.Hex()
	result.Message = successMessage(preview.Direction, hash)
	o.step(run, StateCompleted)
	o.log.Info("swap completed",
		slog.String("request_id", run.id),
		slog.String("direction", string(preview.Direction)),
		slog.String("token", preview.Token.Hex()),
		slog.String("tx_hash", result.TxHash))
	return result
}

type swapRun struct {
	id     string
	intent Intent
	state  State
}

func (o *Orchestrator) begin(intent Intent) *swapRun {
	return &swapRun{id: uuid.NewString(), intent: intent, state: StateIdle}
}

func (o *Orchestrator) step(run *swapRun, state State) {
	run.state = state
	o.log.Debug("swap step", slog.String("request_id", run.id), slog.String("state", string(state)))
}

func (o *Orchestrator) preview(ctx context.Context, run *swapRun) (Preview, error) {
	intent := run.intent
	if !intent.Direction.Valid() {
		return Preview{}, newInvalidInput("direction", fmt.Sprintf("unknown direction %q", intent.Direction))
	}
	if !web3.IsHexAddress(strings.TrimSpace(intent.Token)) {
		return Preview{}, newInvalidInput("token", fmt.Sprintf("invalid token address %q", intent.Token))
	}
	amount, err := ParseAmount(intent.AmountIn)
	if err != nil {
		return Preview{}, err
	}
	token := common.HexToAddress(strings.TrimSpace(intent.Token))
	preview := Preview{Token: token, Direction: intent.Direction}

	pool, err := o.pools.Locate(ctx, token)
	if err != nil {
		return preview, err
	}
	preview.Pool, preview.FeeTier = pool.Address, pool.FeeTier
	o.step(run, StatePoolResolved)

	preview.Decimals = NativeDecimals
	if intent.Direction == Sell {
		decimals := o.decimals.Resolve(ctx, token)
		preview.Decimals = decimals.Value
		if decimals.Fallback {
			attrs := append([]any{slog.String("request_id", run.id)}, logAttrs(decimals.Err)...)
			o.log.Warn("token decimals unavailable, assuming 18", attrs...)
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("could not read decimals for %s, assumed %d", token.Hex(), FallbackDecimals))
		}
	}
	amountIn, err := ToBaseUnits(amount, preview.Decimals)
	if err != nil {
		return preview, err
	}
	preview.AmountIn = amountIn
	o.step(run, StateAmountNormalized)

	preview.TokenIn, preview.TokenOut = o.executor.Route(intent.Direction, token)
	quote := o.quotes.Quote(ctx, preview.TokenIn, preview.TokenOut, pool.FeeTier, amountIn)
	if quote.Err != nil {
		return preview, quote.Err
	}
	preview.QuotedOut = quote.AmountOut
	preview.MinAmountOut = o.slippage.MinAmountOut(quote.AmountOut)
	preview.TolerancePerMille = o.slippage.TolerancePerMille()
	o.step(run, StateQuoted)
	return preview, nil
}

func (o *Orchestrator) fail(run *swapRun, result *Result, err error) {
	result.Success = false
	result.TxHash = ""
	result.Code = xerrors.CodeOf(err)
	result.Message = Render(err)
	failedAt := result.State
	result.State = StateFailed
	attrs := []any{
		slog.String("request_id", run.id),
		slog.String("failed_after", string(failedAt)),
		slog.String("direction", string(run.intent.Direction)),
		slog.String("token", run.intent.Token),
	}
	o.log.Warn("swap failed", append(attrs, logAttrs(err)...)...)
}

func logAttrs(err error) []any {
	if e, ok := xerrors.From(err); ok {
		return e.LogAttrs()
	}
	return []any{slog.String("error", err.Error())}
}

func successMessage(direction Direction, hash common.Hash) string {
	what := "ETH for tokens"
	if direction == Sell {
		what = "tokens for ETH"
	}
	return fmt.Sprintf("Successfully swapped %s. Transaction: %s", what, hash.Hex())
}

// Describe renders a preview for display. Buy outputs are shown in base
// units because the bought token's decimals are never read.
func (p Preview) Describe() string {
	if p.Direction == Sell {
		return fmt.Sprintf("%s tokens -> %s ETH (min %s) via pool %s, fee %d",
			FormatAmount(p.AmountIn, p.Decimals), FormatAmount(p.QuotedOut, NativeDecimals),
			FormatAmount(p.MinAmountOut, NativeDecimals), p.Pool.Hex(), p.FeeTier) + p.slippageSuffix()
	}
	return fmt.Sprintf("%s ETH -> %s token base units (min %s) via pool %s, fee %d",
		FormatAmount(p.AmountIn, NativeDecimals), bigString(p.QuotedOut),
		bigString(p.MinAmountOut), p.Pool.Hex(), p.FeeTier) + p.slippageSuffix()
}

func (p Preview) slippageSuffix() string {
	if p.TolerancePerMille == 0 {
		return ""
	}
	return fmt.Sprintf(", slippage %g%%", float64(p.TolerancePerMille)/10)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
