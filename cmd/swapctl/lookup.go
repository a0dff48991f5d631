package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/sdk/go/openswap"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "token <address>",
		Short: "Show price, liquidity and market cap of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := resolveSettings(v)
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid token address %q", args[0])
			}
			client, err := s.client()
			if err != nil {
				return err
			}
			ctx, cancel := s.context(cmd.Context())
			defer cancel()

			var info openswap.TokenInfo
			err = withSpinner(s, "Looking up token...", func() error {
				info, err = client.TokenInfo(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}
			if s.JSON {
				return printJSON(info)
			}
			fmt.Println()
			color.Green("%s (%s)", info.Name, info.Symbol)
			printField("Address", info.Address)
			printField("Price", "$"+info.PriceUSD)
			printField("Price (native)", info.PriceNative+" ETH")
			printField("Liquidity", usd(info.LiquidityUSD))
			printField("Market cap", usd(info.MarketCap))
			printField("FDV", usd(info.FDV))
			printField("DEX", info.DexID)
			printField("Pair", info.PairAddress)
			if info.PairCreatedAt != nil {
				printField("Pair created", info.PairCreatedAt.Format(time.RFC3339))
			}
			if info.URL != "" {
				printField("Chart", color.CyanString(info.URL))
			}
			return nil
		},
	}
}

func newBalanceCmd(v *viper.Viper) *cobra.Command {
	var tokens []string
	cmd := &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the native and token balances of a wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := resolveSettings(v)
			address := s.Wallet
			if len(args) == 1 {
				address = args[0]
			}
			if !common.IsHexAddress(address) {
				return fmt.Errorf("a wallet address is required (argument or --wallet)")
			}
			for _, token := range tokens {
				if !common.IsHexAddress(token) {
					return fmt.Errorf("invalid token address %q", token)
				}
			}
			client, err := s.client()
			if err != nil {
				return err
			}
			ctx, cancel := s.context(cmd.Context())
			defer cancel()

			var info openswap.WalletInfo
			err = withSpinner(s, "Fetching balance...", func() error {
				info, err = client.WalletInfo(ctx, address, tokens...)
				return err
			})
			if err != nil {
				return err
			}
			if s.JSON {
				return printJSON(info)
			}
			fmt.Println()
			color.Green("Wallet balance: %s ETH", info.Balance)
			printField("Address", info.Address)
			printField("Transactions", strconv.FormatUint(info.TxCount, 10))
			printField("Chain ID", info.ChainID)
			for _, token := range info.Tokens {
				label := token.Symbol
				if label == "" {
					label = token.Token
				}
				printField(label, token.Balance)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tokens, "token", nil, "ERC20 token address to include (repeatable)")
	return cmd
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent swaps recorded by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := resolveSettings(v)
			client, err := s.client()
			if err != nil {
				return err
			}
			ctx, cancel := s.context(cmd.Context())
			defer cancel()

			records, err := client.History(ctx, s.Wallet, limit)
			if err != nil {
				return err
			}
			if s.JSON {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("\nNo swaps recorded yet.")
				return nil
			}
			fmt.Println()
			for _, record := range records {
				status := color.GreenString("ok")
				if !record.Success {
					status = color.RedString(record.ErrorCode)
				}
				fmt.Printf("  %s  %-4s %-12s %s  %s\n",
					time.Unix(record.CreatedAt, 0).Format("2006-01-02 15:04"),
					record.Direction, record.AmountIn, record.Token, status)
				if record.TxHash != "" {
					fmt.Printf("        %s\n", swap.LinkTransactions("Transaction: "+record.TxHash, s.ExplorerURL, s.ExplorerName))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of swaps to show")
	return cmd
}

// usd renders a dollar figure with thousands grouping.
func usd(value float64) string {
	rounded := decimal.NewFromFloat(value).Round(2)
	whole := rounded.Truncate(0).Abs().String()
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	frac := rounded.Sub(rounded.Truncate(0)).Abs().StringFixed(2)[1:]
	if rounded.IsNegative() {
		return "-$" + whole + frac
	}
	return "$" + whole + frac
}
