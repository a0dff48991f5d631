package swap

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "OpenMCP-Swap/internal/errors"
)

func newTestOrchestrator(t *testing.T, index LiquidityIndex, chain Chain, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithLogger(quietLogger())}, opts...)
	orchestrator, err := NewOrchestrator(DefaultConfig(), index, chain, opts...)
	require.NoError(t, err)
	return orchestrator
}

func TestExecuteBuyEndToEnd(t *testing.T) {
	index := indexWithPool()
	chain := &fakeChain{quoteOut: ether(500)}
	signer := &fakeSigner{address: testWallet}
	orchestrator := newTestOrchestrator(t, index, chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Buy}, signer)

	require.True(t, result.Success, result.Message)
	assert.Equal(t, StateCompleted, result.State)
	assert.NotEmpty(t, result.RequestID)
	assert.True(t, strings.HasPrefix(result.Message, "Successfully swapped ETH for tokens. Transaction: 0x"))
	assert.True(t, strings.HasSuffix(result.Message, result.TxHash))
	assert.Empty(t, result.ApprovalTxHash)
	assert.Empty(t, result.Warnings)

	assert.Empty(t, chain.approvals, "buys never approve")
	assert.Equal(t, 0, chain.decimalsCalls, "buys normalize with 18 decimals")
	assert.Equal(t, []string{"quote", "swap"}, chain.order)

	require.Len(t, chain.quotes, 1)
	assertBig(t, ether(1), chain.quotes[0].AmountIn)
	assert.Equal(t, BaseWETH, chain.quotes[0].TokenIn)
	assert.Equal(t, testToken, chain.quotes[0].TokenOut)

	require.Len(t, chain.swaps, 1)
	call := chain.swaps[0]
	assertBig(t, ether(1), call.value)
	assert.Equal(t, BaseWETH, call.params.TokenIn)
	assert.Equal(t, testToken, call.params.TokenOut)
	assertBig(t, ether(1), call.params.AmountIn)
	assertBig(t, ether(475), call.params.AmountOutMinimum)
	assertBig(t, Fee3000.BigInt(), call.params.Fee)
	assert.Equal(t, testWallet, call.params.Recipient)
	assert.Equal(t, testNow.Unix()+1200, call.params.Deadline.Int64())
	assert.Zero(t, call.params.SqrtPriceLimitX96.Sign())

	assert.Equal(t, ether(1).String(), result.AmountIn)
	assert.Equal(t, ether(500).String(), result.QuotedOut)
	assert.Equal(t, ether(475).String(), result.MinAmountOut)
}

func TestExecuteSellApprovesOnceBeforeSwap(t *testing.T) {
	chain := &fakeChain{decimals: 6, quoteOut: ether(2)}
	signer := &fakeSigner{address: testWallet}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "2.5", Direction: Sell}, signer)

	require.True(t, result.Success, result.Message)
	assert.True(t, strings.HasPrefix(result.Message, "Successfully swapped tokens for ETH. Transaction: 0x"))
	assert.Equal(t, []string{"quote", "approve", "swap"}, chain.order)
	assert.NotEmpty(t, result.ApprovalTxHash)
	assert.NotEqual(t, result.ApprovalTxHash, result.TxHash)

	require.Len(t, chain.approvals, 1)
	approval := chain.approvals[0]
	assert.Equal(t, testToken, approval.token)
	assert.Equal(t, BaseRouter, approval.spender)
	assertBig(t, big2500000(), approval.amount)

	require.Len(t, chain.swaps, 1)
	call := chain.swaps[0]
	assert.Nil(t, call.value, "sells attach no value")
	assert.Equal(t, testToken, call.params.TokenIn)
	assert.Equal(t, BaseWETH, call.params.TokenOut)
	assertBig(t, big2500000(), call.params.AmountIn)
	assertBig(t, ether(19).Div(ether(19), bigTen()), call.params.AmountOutMinimum)
	assert.Equal(t, uint64(2), signer.nonce, "approval and swap each take a nonce")
}

func TestExecuteSellReapprovesEveryTime(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1)}
	signer := &fakeSigner{address: testWallet}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	for i := 0; i < 2; i++ {
		result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, signer)
		require.True(t, result.Success, result.Message)
	}
	assert.Len(t, chain.approvals, 2)
}

func TestExecuteSellDecimalsFallbackWarns(t *testing.T) {
	chain := &fakeChain{decimalsErr: errBoom, quoteOut: ether(1)}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "3", Direction: Sell}, &fakeSigner{address: testWallet})

	require.True(t, result.Success, result.Message)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "assumed 18")
	assertBig(t, ether(3), chain.approvals[0].amount)
}

func TestExecutePoolNotFoundHasNoSideEffects(t *testing.T) {
	chain := &fakeChain{quoteOut: ether(1)}
	orchestrator := newTestOrchestrator(t, &fakeIndex{}, chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})

	assert.False(t, result.Success)
	assert.Empty(t, result.TxHash)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, CodePoolNotFound, result.Code)
	assert.Equal(t, "Failed to find a suitable pool", result.Message)
	assert.Empty(t, chain.order)
	assert.Equal(t, 0, chain.decimalsCalls)
}

func TestExecuteQuoteFailureStopsBeforeApproval(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteErr: errBoom}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})

	assert.False(t, result.Success)
	assert.Equal(t, CodeQuoteFailed, result.Code)
	assert.Equal(t, "Failed to get quote", result.Message)
	assert.Equal(t, []string{"quote"}, chain.order)
	assert.Empty(t, chain.approvals)
	assert.Empty(t, chain.swaps)
}

func TestExecuteApprovalFailureSkipsSwap(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1), approveErr: errBoom}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})

	assert.False(t, result.Success)
	assert.Equal(t, CodeApprovalFailed, result.Code)
	assert.Contains(t, result.Message, "boom")
	assert.Empty(t, chain.swaps)
}

func TestExecuteSwapFailureKeepsApproval(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1), swapErr: errBoom}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})

	assert.False(t, result.Success)
	assert.Empty(t, result.TxHash)
	assert.Equal(t, CodeSwapExecutionFailed, result.Code)
	assert.Equal(t, "Failed to execute swap: boom", result.Message)
	assert.NotEmpty(t, result.ApprovalTxHash)
	assert.Len(t, chain.approvals, 1)
}

func TestExecuteRejectsAmountsBeyondUint256(t *testing.T) {
	cases := map[string]struct {
		intent   Intent
		decimals uint8
	}{
		"buy": {
			intent: Intent{Token: testToken.Hex(), Direction: Buy,
				AmountIn: "115792089237316195423570985008687907853269984665640564039457.584007913129639937"},
		},
		"sell": {
			decimals: 6,
			intent: Intent{Token: testToken.Hex(), Direction: Sell,
				AmountIn: "115792089237316195423570985008687907853269984665640564039457584007913129.639937"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			chain := &fakeChain{decimals: tc.decimals, quoteOut: ether(1)}
			result := newTestOrchestrator(t, indexWithPool(), chain).Execute(context.Background(), tc.intent, &fakeSigner{address: testWallet})
			assert.False(t, result.Success)
			assert.Equal(t, CodeInvalidInput, result.Code)
			assert.Empty(t, chain.order, "nothing is quoted, approved or swapped")
		})
	}

	chain := &fakeChain{decimals: 6, quoteOut: ether(1)}
	result := newTestOrchestrator(t, indexWithPool(), chain).Execute(context.Background(), Intent{
		Token: testToken.Hex(), Direction: Sell,
		AmountIn: "115792089237316195423570985008687907853269984665640564039457584007913129.639935",
	}, &fakeSigner{address: testWallet})
	require.True(t, result.Success, result.Message)
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assertBig(t, maxUint256, chain.approvals[0].amount)
}

func TestExecuteRejectsInvalidInput(t *testing.T) {
	cases := map[string]Intent{
		"bad amount":    {Token: testToken.Hex(), AmountIn: "lots", Direction: Buy},
		"zero amount":   {Token: testToken.Hex(), AmountIn: "0", Direction: Buy},
		"huge exponent": {Token: testToken.Hex(), AmountIn: "1e100", Direction: Sell},
		"bad token":     {Token: "0x1234", AmountIn: "1", Direction: Buy},
		"no 0x prefix":  {Token: strings.TrimPrefix(testToken.Hex(), "0x"), AmountIn: "1", Direction: Buy},
		"bad direction": {Token: testToken.Hex(), AmountIn: "1", Direction: "hold"},
	}
	for name, intent := range cases {
		t.Run(name, func(t *testing.T) {
			index := indexWithPool()
			chain := &fakeChain{quoteOut: ether(1)}
			result := newTestOrchestrator(t, index, chain).Execute(context.Background(), intent, &fakeSigner{address: testWallet})
			assert.False(t, result.Success)
			assert.Equal(t, CodeInvalidInput, result.Code)
			assert.True(t, strings.HasPrefix(result.Message, "Invalid swap request: "))
			assert.Equal(t, 0, index.calls)
			assert.Empty(t, chain.order)
		})
	}

	result := newTestOrchestrator(t, indexWithPool(), &fakeChain{}).Execute(context.Background(),
		Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Buy}, nil)
	assert.Equal(t, CodeInvalidInput, result.Code)
}

func TestExecuteWaitsForApprovalReceipt(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1)}
	waiter := &fakeWaiter{status: types.ReceiptStatusFailed}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain, WithApprovalConfirmation(waiter))

	result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})
	assert.False(t, result.Success)
	assert.Equal(t, CodeApprovalFailed, result.Code)
	assert.Empty(t, chain.swaps)
	assert.Equal(t, 1, waiter.calls)

	waiter.status = types.ReceiptStatusSuccessful
	result = orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})
	assert.True(t, result.Success, result.Message)
	require.Len(t, chain.swaps, 1)
	assert.Zero(t, chain.swaps[0].gasLimit, "mined approvals leave gas to estimation")
}

func TestExecuteSellWithoutConfirmationFixesGasLimit(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1)}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	sell := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Sell}, &fakeSigner{address: testWallet})
	require.True(t, sell.Success, sell.Message)
	buy := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: Buy}, &fakeSigner{address: testWallet})
	require.True(t, buy.Success, buy.Message)

	require.Len(t, chain.swaps, 2)
	assert.Equal(t, uint64(DefaultSellGasLimit), chain.swaps[0].gasLimit)
	assert.Zero(t, chain.swaps[1].gasLimit, "buys need no allowance")
}

func TestQuotePreviewHasNoSideEffects(t *testing.T) {
	chain := &fakeChain{decimals: 6, quoteOut: ether(2)}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	preview, err := orchestrator.Quote(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "10", Direction: Sell})
	require.NoError(t, err)
	assert.Equal(t, testPool, preview.Pool)
	assert.Equal(t, uint8(6), preview.Decimals)
	assertBig(t, ether(2), preview.QuotedOut)
	assertBig(t, ether(19).Div(ether(19), bigTen()), preview.MinAmountOut)
	assert.Equal(t, []string{"quote"}, chain.order)
	assert.Equal(t, DefaultTolerancePerMille, preview.TolerancePerMille)
	assert.Contains(t, preview.Describe(), "10 tokens -> 2 ETH (min 1.9)")
	assert.Contains(t, preview.Describe(), "slippage 5%")

	_, err = orchestrator.Quote(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "-1", Direction: Sell})
	assert.True(t, xerrors.IsCode(err, CodeInvalidInput))
}

func TestExecuteIsSafeForConcurrentUse(t *testing.T) {
	chain := &fakeChain{decimals: 18, quoteOut: ether(1)}
	orchestrator := newTestOrchestrator(t, indexWithPool(), chain)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			direction := Buy
			if i%2 == 0 {
				direction = Sell
			}
			result := orchestrator.Execute(context.Background(), Intent{Token: testToken.Hex(), AmountIn: "1", Direction: direction},
				&fakeSigner{address: testWallet})
			assert.True(t, result.Success, result.Message)
		}(i)
	}
	wg.Wait()
	assert.Len(t, chain.swaps, 8)
	assert.Len(t, chain.approvals, 4)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "Failed to execute swap: boom", Render(errBoom))
	assert.Equal(t, "Failed to find a suitable pool", Render(poolNotFound(testToken, errBoom)))
	assert.Equal(t, "Failed to execute swap: approval failed: boom",
		Render(xerrors.Wrap(CodeApprovalFailed, errBoom, "")))
}
