package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"OpenMCP-Swap/internal/dexscreener"
	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/observability/metrics"
	"OpenMCP-Swap/internal/storage/mysql"
	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/internal/wallet"
	"OpenMCP-Swap/internal/web3"
	"OpenMCP-Swap/internal/web3/contracts"
	"OpenMCP-Swap/pkg/logger"
)

// Action 表示调度器支持的工具动作。
type Action string

const (
	ActionSwap       Action = "swap"
	ActionQuote      Action = "quote"
	ActionBalance    Action = "balance"
	ActionTokenInfo  Action = "token_info"
	ActionWalletInfo Action = "wallet_info"
)

// Engine 是调度器所需的兑换引擎能力，由 swap.Orchestrator 实现。
type Engine interface {
	Execute(ctx context.Context, intent swap.Intent, signer wallet.Signer) swap.Result
	Quote(ctx context.Context, intent swap.Intent) (swap.Preview, error)
}

// TokenReader 读取账户持有的 ERC20 余额，由 swap.BoundChain 实现。
type TokenReader interface {
	TokenHolding(ctx context.Context, token, owner common.Address) (contracts.Holding, error)
}

// TokenIndex 提供代币行情概览，由 dexscreener.Client 实现。
type TokenIndex interface {
	TokenInfo(ctx context.Context, chain, token string) (dexscreener.TokenInfo, error)
}

// Request 描述一次调度请求。
type Request struct {
	Action  Action      `json:"action"`
	Wallet  string      `json:"wallet,omitempty"`
	Intent  swap.Intent `json:"intent"`
	Address string      `json:"address,omitempty"`
	Tokens  []string    `json:"tokens,omitempty"`
	TaskID  string      `json:"task_id,omitempty"`
}

// SwapRequest 是异步任务提交给调度器的兑换请求。
type SwapRequest struct {
	TaskID string
	Wallet string
	Intent swap.Intent
}

// maxWalletTokens 限制一次钱包查询附带的代币数量。
const maxWalletTokens = 10

// TokenBalance 是钱包持有的单个 ERC20 代币余额。
type TokenBalance struct {
	Token      string `json:"token"`
	Symbol     string `json:"symbol,omitempty"`
	Decimals   uint8  `json:"decimals"`
	Balance    string `json:"balance"`
	BalanceRaw string `json:"balance_raw"`
}

// WalletView 是钱包信息的展示结构。
type WalletView struct {
	Address    string         `json:"address"`
	Balance    string         `json:"balance"`
	BalanceWei string         `json:"balance_wei"`
	TxCount    uint64         `json:"tx_count"`
	ChainID    string         `json:"chain_id"`
	Network    string         `json:"network,omitempty"`
	Tokens     []TokenBalance `json:"tokens,omitempty"`
}

// Response 汇总一次调度的结果。Text 总是可直接展示给用户的单行或多行文本。
type Response struct {
	Action  Action                 `json:"action"`
	Text    string                 `json:"text"`
	Swap    *swap.Result           `json:"swap,omitempty"`
	Preview *swap.Preview          `json:"preview,omitempty"`
	Token   *dexscreener.TokenInfo `json:"token,omitempty"`
	Wallet  *WalletView            `json:"wallet,omitempty"`
}

// Agent 按请求调度兑换与查询动作，自身不持有任何可变的会话状态。
type Agent struct {
	engine       Engine
	wallets      wallet.Provider
	chain        web3.Client
	index        TokenIndex
	indexChain   string
	history      mysql.SwapRepository
	tokens       TokenReader
	explorerURL  string
	explorerName string
	log          *slog.Logger
	now          func() time.Time
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithChainClient 配置余额与钱包查询使用的链客户端。
func WithChainClient(client web3.Client) Option {
	return func(a *Agent) {
		a.chain = client
	}
}

// WithTokenIndex 配置代币行情索引及其链标识。
func WithTokenIndex(index TokenIndex, chain string) Option {
	return func(a *Agent) {
		a.index = index
		a.indexChain = chain
	}
}

// WithHistory 配置兑换历史仓库。
func WithHistory(repo mysql.SwapRepository) Option {
	return func(a *Agent) {
		a.history = repo
	}
}

// WithTokenReader 配置 ERC20 余额读取器。
func WithTokenReader(reader TokenReader) Option {
	return func(a *Agent) {
		a.tokens = reader
	}
}

// WithExplorer 配置交易链接使用的区块浏览器。
func WithExplorer(url, name string) Option {
	return func(a *Agent) {
		a.explorerURL = url
		a.explorerName = name
	}
}

// WithLogger 替换默认日志组件。
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

// New 创建一个 Agent。
func New(engine Engine, wallets wallet.Provider, opts ...Option) *Agent {
	ag := &Agent{
		engine:  engine,
		wallets: wallets,
		log:     logger.Named("agent"),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Execute 根据动作分发请求。兑换失败不会返回 error，而是体现在 Response.Swap 中。
func (a *Agent) Execute(ctx context.Context, req Request) (*Response, error) {
	switch req.Action {
	case ActionSwap:
		result, err := a.Swap(ctx, SwapRequest{TaskID: req.TaskID, Wallet: req.Wallet, Intent: req.Intent})
		if err != nil {
			return nil, err
		}
		return &Response{Action: req.Action, Text: a.LinkTransactions(result.Message), Swap: &result}, nil
	case ActionQuote:
		preview, err := a.Quote(ctx, req.Intent)
		if err != nil {
			return &Response{Action: req.Action, Text: swap.Render(err)}, err
		}
		return &Response{Action: req.Action, Text: preview.Describe(), Preview: &preview}, nil
	case ActionBalance:
		view, err := a.WalletInfo(ctx, a.accountFor(ctx, req), req.Tokens...)
		if err != nil {
			return nil, err
		}
		text := fmt.Sprintf("Wallet balance: %s ETH", view.Balance)
		for _, token := range view.Tokens {
			text += fmt.Sprintf("\n%s: %s", tokenLabel(token), token.Balance)
		}
		return &Response{Action: req.Action, Text: text, Wallet: &view}, nil
	case ActionWalletInfo:
		view, err := a.WalletInfo(ctx, a.accountFor(ctx, req), req.Tokens...)
		if err != nil {
			return nil, err
		}
		return &Response{Action: req.Action, Text: describeWallet(view), Wallet: &view}, nil
	case ActionTokenInfo:
		address := req.Address
		if address == "" {
			address = req.Intent.Token
		}
		info, err := a.TokenInfo(ctx, address)
		if err != nil {
			return nil, err
		}
		return &Response{Action: req.Action, Text: describeToken(info), Token: &info}, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的动作: %q", req.Action))
	}
}

// Swap 解析签名者并执行兑换，随后记录指标与历史。
// 只有在签名者无法解析等前置条件失败时才返回 error。
func (a *Agent) Swap(ctx context.Context, req SwapRequest) (swap.Result, error) {
	if a.engine == nil || a.wallets == nil {
		return swap.Result{}, xerrors.New(xerrors.CodeInitializationFailure, "兑换引擎或钱包未配置")
	}
	signer, err := a.wallets.Signer(ctx, req.Wallet)
	if err != nil {
		if stdErrors.Is(err, wallet.ErrUnknownWallet) {
			return swap.Result{}, xerrors.Wrap(xerrors.CodeNotFound, err, "钱包不存在",
				xerrors.WithMetadata("wallet", req.Wallet))
		}
		return swap.Result{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析钱包失败",
			xerrors.WithMetadata("wallet", req.Wallet))
	}

	started := a.now()
	result := a.engine.Execute(ctx, req.Intent, signer)
	metrics.ObserveSwap(string(req.Intent.Direction), result.Success, string(result.Code), a.now().Sub(started))

	a.record(ctx, req, signer.Address(), result)
	return result, nil
}

// Quote 返回只读的兑换预览。
func (a *Agent) Quote(ctx context.Context, intent swap.Intent) (swap.Preview, error) {
	if a.engine == nil {
		return swap.Preview{}, xerrors.New(xerrors.CodeInitializationFailure, "兑换引擎未配置")
	}
	return a.engine.Quote(ctx, intent)
}

// TokenInfo 查询代币行情概览。
func (a *Agent) TokenInfo(ctx context.Context, address string) (dexscreener.TokenInfo, error) {
	if a.index == nil {
		return dexscreener.TokenInfo{}, xerrors.New(xerrors.CodeInitializationFailure, "未配置行情索引")
	}
	address = strings.TrimSpace(address)
	if !web3.IsHexAddress(address) {
		return dexscreener.TokenInfo{}, xerrors.New(xerrors.CodeInvalidArgument, "代币地址格式不正确",
			xerrors.WithMetadata("token", address))
	}
	info, err := a.index.TokenInfo(ctx, a.indexChain, strings.ToLower(address))
	if err != nil {
		if stdErrors.Is(err, dexscreener.ErrNoPairs) {
			return dexscreener.TokenInfo{}, xerrors.Wrap(xerrors.CodeNotFound, err, "未找到代币交易对",
				xerrors.WithMetadata("token", address))
		}
		return dexscreener.TokenInfo{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "查询代币行情失败",
			xerrors.WithMetadata("token", address))
	}
	return info, nil
}

// WalletInfo 查询账户余额、交易计数与链 ID，并可附带若干 ERC20 代币余额。
func (a *Agent) WalletInfo(ctx context.Context, address string, tokens ...string) (WalletView, error) {
	if a.chain == nil {
		return WalletView{}, xerrors.New(xerrors.CodeInitializationFailure, "未配置链客户端")
	}
	address = strings.TrimSpace(address)
	if !web3.IsHexAddress(address) {
		return WalletView{}, xerrors.New(xerrors.CodeInvalidArgument, "钱包地址格式不正确",
			xerrors.WithMetadata("wallet", address))
	}
	tokenAddrs, err := a.parseTokens(tokens)
	if err != nil {
		return WalletView{}, err
	}
	info, err := a.chain.WalletInfo(ctx, common.HexToAddress(address))
	if err != nil {
		return WalletView{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "查询钱包信息失败",
			xerrors.WithMetadata("wallet", address))
	}
	view := WalletView{
		Address:    info.Address.Hex(),
		Balance:    web3.FormatEther(info.Balance),
		BalanceWei: "0",
		TxCount:    info.TxCount,
		Network:    info.Network,
	}
	if info.Balance != nil {
		view.BalanceWei = info.Balance.String()
	}
	if info.ChainID != nil {
		view.ChainID = info.ChainID.String()
	}
	for _, token := range tokenAddrs {
		holding, err := a.tokens.TokenHolding(ctx, token, info.Address)
		if err != nil {
			return WalletView{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "查询代币余额失败",
				xerrors.WithMetadata("wallet", address), xerrors.WithMetadata("token", token.Hex()))
		}
		view.Tokens = append(view.Tokens, TokenBalance{
			Token:      holding.Token.Hex(),
			Symbol:     holding.Symbol,
			Decimals:   holding.Decimals,
			Balance:    swap.FormatAmount(holding.Balance, holding.Decimals),
			BalanceRaw: holding.Balance.String(),
		})
	}
	return view, nil
}

func (a *Agent) parseTokens(tokens []string) ([]common.Address, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if a.tokens == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置代币余额读取器")
	}
	if len(tokens) > maxWalletTokens {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("一次最多查询 %d 个代币", maxWalletTokens))
	}
	addrs := make([]common.Address, 0, len(tokens))
	for _, raw := range tokens {
		raw = strings.TrimSpace(raw)
		if !web3.IsHexAddress(raw) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "代币地址格式不正确",
				xerrors.WithMetadata("token", raw))
		}
		addrs = append(addrs, common.HexToAddress(raw))
	}
	return addrs, nil
}

// ListHistory 返回最近的兑换历史，wallet 为空时返回全部钱包的记录。
func (a *Agent) ListHistory(ctx context.Context, wallet string, limit int) ([]mysql.SwapRecord, error) {
	if a.history == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置兑换历史仓库")
	}
	records, err := a.history.ListLatest(ctx, wallet, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询兑换历史失败")
	}
	return records, nil
}

// LinkTransactions 把消息中的交易哈希替换为区块浏览器链接。
func (a *Agent) LinkTransactions(message string) string {
	return swap.LinkTransactions(message, a.explorerURL, a.explorerName)
}

// accountFor 优先使用显式地址，否则回退到请求钱包对应的签名地址。
func (a *Agent) accountFor(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.Address) != "" {
		return req.Address
	}
	if web3.IsHexAddress(strings.TrimSpace(req.Wallet)) {
		return req.Wallet
	}
	if a.wallets != nil {
		if signer, err := a.wallets.Signer(ctx, req.Wallet); err == nil {
			return signer.Address().Hex()
		}
	}
	return req.Wallet
}

func (a *Agent) record(ctx context.Context, req SwapRequest, owner common.Address, result swap.Result) {
	if a.history == nil {
		return
	}
	record := &mysql.SwapRecord{
		RequestID:      result.RequestID,
		TaskID:         req.TaskID,
		Wallet:         owner.Hex(),
		Token:          strings.TrimSpace(req.Intent.Token),
		Direction:      string(req.Intent.Direction),
		AmountIn:       result.AmountIn,
		QuotedOut:      result.QuotedOut,
		MinAmountOut:   result.MinAmountOut,
		Success:        result.Success,
		State:          string(result.State),
		TxHash:         result.TxHash,
		ApprovalTxHash: result.ApprovalTxHash,
		ErrorCode:      string(result.Code),
		Message:        result.Message,
		Warnings:       result.Warnings,
		CreatedAt:      a.now().Unix(),
	}
	if err := a.history.Save(ctx, record); err != nil {
		// 交易可能已经上链，历史写入失败只记录日志。
		a.log.Error("保存兑换历史失败",
			slog.Any("error", err),
			slog.String("request_id", result.RequestID),
			slog.String("tx_hash", result.TxHash))
	}
}

func describeWallet(view WalletView) string {
	text := fmt.Sprintf("Address: %s\nBalance: %s ETH\nTransactions: %d\nChain ID: %s",
		view.Address, view.Balance, view.TxCount, view.ChainID)
	for _, token := range view.Tokens {
		text += fmt.Sprintf("\n%s: %s", tokenLabel(token), token.Balance)
	}
	return text
}

func tokenLabel(token TokenBalance) string {
	if token.Symbol != "" {
		return token.Symbol
	}
	return token.Token
}

func describeToken(info dexscreener.TokenInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", info.Name, info.Symbol)
	fmt.Fprintf(&b, "Price: $%s (%s native)\n", info.PriceUSD, info.PriceNative)
	fmt.Fprintf(&b, "Liquidity: $%.2f\n", info.LiquidityUSD)
	fmt.Fprintf(&b, "Market cap: $%.2f, FDV: $%.2f\n", info.MarketCap, info.FDV)
	fmt.Fprintf(&b, "Pair: %s on %s", info.PairAddress, info.DexID)
	if info.PairCreatedAt != nil {
		fmt.Fprintf(&b, "\nPair created: %s", info.PairCreatedAt.Format(time.RFC3339))
	}
	if info.URL != "" {
		fmt.Fprintf(&b, "\n%s", info.URL)
	}
	return b.String()
}
