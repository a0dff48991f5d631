package swap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"OpenMCP-Swap/internal/dexscreener"
	"OpenMCP-Swap/internal/wallet"
	"OpenMCP-Swap/internal/web3/contracts"
	"OpenMCP-Swap/pkg/logger"
)

var (
	testToken  = common.HexToAddress("0xAAAaAAAaAAAaAAAaAAAaAAAaAAAaAAAaAAAaAAAa")
	testPool   = common.HexToAddress("0xBBbbbBbbBBbbbBbbBBbbbBbbBBbbbBbbBBbbbBbb")
	testWallet = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
	testNow    = time.Unix(1_700_000_000, 0)
)

func TestMain(m *testing.M) {
	logger.Use(quietLogger())
	os.Exit(m.Run())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fakeIndex struct {
	pairs []dexscreener.Pair
	err   error
	calls int
	chain string
	token string
}

func (f *fakeIndex) Pairs(_ context.Context, chain, token string) ([]dexscreener.Pair, error) {
	f.calls++
	f.chain, f.token = chain, token
	return f.pairs, f.err
}

func indexWithPool() *fakeIndex {
	return &fakeIndex{pairs: []dexscreener.Pair{
		{PairAddress: testPool.Hex(), DexID: "uniswap", Labels: []string{"v3"}},
		{PairAddress: "0x00000000000000000000000000000000000000ee", DexID: "aerodrome"},
	}}
}

type approveCall struct {
	token   common.Address
	spender common.Address
	amount  *big.Int
}

type swapCall struct {
	value    *big.Int
	from     common.Address
	gasLimit uint64
	params   contracts.ExactInputSingleParams
}

type fakeChain struct {
	mu sync.Mutex

	decimals    uint8
	decimalsErr error
	quoteOut    *big.Int
	quoteErr    error
	approveErr  error
	swapErr     error

	decimalsCalls int
	quotes        []contracts.QuoteExactInputSingleParams
	approvals     []approveCall
	swaps         []swapCall
	order         []string
}

func (f *fakeChain) TokenDecimals(context.Context, common.Address) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decimalsCalls++
	return f.decimals, f.decimalsErr
}

func (f *fakeChain) QuoteExactInputSingle(_ context.Context, params contracts.QuoteExactInputSingleParams) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = append(f.quotes, params)
	f.order = append(f.order, "quote")
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quoteOut, nil
}

func (f *fakeChain) Approve(opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, approveCall{token: token, spender: spender, amount: amount})
	f.order = append(f.order, "approve")
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return types.NewTx(&types.LegacyTx{Nonce: opts.Nonce.Uint64(), To: &token, Data: []byte("approve")}), nil
}

func (f *fakeChain) RouterAddress() common.Address { return BaseRouter }

func (f *fakeChain) ExactInputSingle(opts *bind.TransactOpts, params contracts.ExactInputSingleParams) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swaps = append(f.swaps, swapCall{value: opts.Value, from: opts.From, gasLimit: opts.GasLimit, params: params})
	f.order = append(f.order, "swap")
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	router := BaseRouter
	return types.NewTx(&types.LegacyTx{Nonce: opts.Nonce.Uint64(), To: &router, Value: opts.Value, Data: []byte("swap")}), nil
}

type fakeSigner struct {
	address common.Address
	nonce   uint64
}

func (s *fakeSigner) Address() common.Address { return s.address }

func (s *fakeSigner) Transact(ctx context.Context, send wallet.SendFunc) (*types.Transaction, error) {
	opts := &bind.TransactOpts{From: s.address, Nonce: new(big.Int).SetUint64(s.nonce), Context: ctx}
	s.nonce++
	return send(opts)
}

type fakeWaiter struct {
	status uint64
	err    error
	calls  int
}

func (w *fakeWaiter) WaitMined(context.Context, *types.Transaction) (*types.Receipt, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	return &types.Receipt{Status: w.status, BlockNumber: big.NewInt(1)}, nil
}

type memoryCache struct {
	values map[common.Address]uint8
	err    error
}

func (m *memoryCache) Get(_ context.Context, token common.Address) (uint8, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	v, ok := m.values[token]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, token common.Address, decimals uint8) error {
	if m.values == nil {
		m.values = map[common.Address]uint8{}
	}
	m.values[token] = decimals
	return nil
}

var errBoom = errors.New("boom")

func assertBig(t *testing.T, want, got *big.Int) {
	t.Helper()
	if got == nil || want.Cmp(got) != 0 {
		t.Fatalf("want %s, got %v", want, got)
	}
}

func bigTen() *big.Int { return big.NewInt(10) }

func big2500000() *big.Int { return big.NewInt(2_500_000) }
