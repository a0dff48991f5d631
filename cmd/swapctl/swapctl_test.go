package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/sdk/go/openswap"
)

const testToken = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

func TestParseIntent(t *testing.T) {
	intent, err := parseIntent([]string{"BuyToken", " 0.25 ", testToken})
	require.NoError(t, err)
	assert.Equal(t, swap.Buy, intent.Direction)
	assert.Equal(t, "0.25", intent.AmountIn)

	_, err = parseIntent([]string{"hold", "1", testToken})
	assert.Error(t, err)

	_, err = parseIntent([]string{"sell", "-3", testToken})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Invalid swap request"))

	_, err = parseIntent([]string{"sell", "3", "0x1234"})
	assert.Error(t, err)
}

func TestPreviewOfMatchesEngineSummary(t *testing.T) {
	intent := swap.Intent{Token: testToken, AmountIn: "1", Direction: swap.Buy}
	preview := previewOf(intent, openswap.Quote{
		Pool:              "0x0000000000000000000000000000000000000abc",
		FeeTier:           3000,
		Decimals:          18,
		AmountIn:          "1000000000000000000",
		QuotedOut:         "500000000000000000000",
		MinAmountOut:      "475000000000000000000",
		TolerancePerMille: 50,
	})
	assert.Equal(t, "475000000000000000000", preview.MinAmountOut.String())
	assert.Contains(t, preview.Describe(), "min 475000000000000000000")
	assert.Contains(t, preview.Describe(), "slippage 5%")
}

func TestUSD(t *testing.T) {
	assert.Equal(t, "$1,234,567.89", usd(1234567.891))
	assert.Equal(t, "$0.50", usd(0.5))
	assert.Equal(t, "$999.00", usd(999))
}
