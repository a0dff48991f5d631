package main

import (
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"OpenMCP-Swap/internal/swap"
	"OpenMCP-Swap/sdk/go/openswap"
)

// parseIntent validates "<buy|sell> <amount> <token>" before any network call.
func parseIntent(args []string) (swap.Intent, error) {
	direction, err := swap.ParseDirection(args[0])
	if err != nil {
		return swap.Intent{}, err
	}
	if _, err := swap.ParseAmount(args[1]); err != nil {
		return swap.Intent{}, errors.New(swap.Render(err))
	}
	token := strings.TrimSpace(args[2])
	if !common.IsHexAddress(token) {
		return swap.Intent{}, fmt.Errorf("invalid token address %q", token)
	}
	return swap.Intent{Token: token, AmountIn: strings.TrimSpace(args[1]), Direction: direction}, nil
}

func newQuoteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <buy|sell> <amount> <token>",
		Short: "Preview a swap without sending any transaction",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := resolveSettings(v)
			intent, err := parseIntent(args)
			if err != nil {
				return err
			}
			client, err := s.client()
			if err != nil {
				return err
			}
			ctx, cancel := s.context(cmd.Context())
			defer cancel()

			var quote openswap.Quote
			err = withSpinner(s, "Fetching quote...", func() error {
				quote, err = client.Quote(ctx, intent.Token, intent.AmountIn, string(intent.Direction))
				return err
			})
			if err != nil {
				return err
			}
			if s.JSON {
				return printJSON(quote)
			}
			displayQuote(intent, quote)
			return nil
		},
	}
}

func newSwapCmd(v *viper.Viper) *cobra.Command {
	var (
		noConfirm bool
		noWait    bool
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "swap <buy|sell> <amount> <token>",
		Short: "Execute a swap between the native currency and a token",
		Long: `Quote, confirm and execute a single-pool Uniswap V3 swap.

"buy" spends <amount> ETH on the token, "sell" spends <amount> tokens for
ETH. Slippage is bounded to 5% below the quote and the transaction expires
20 minutes after submission.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := resolveSettings(v)
			intent, err := parseIntent(args)
			if err != nil {
				return err
			}
			client, err := s.client()
			if err != nil {
				return err
			}
			ctx, cancel := s.context(cmd.Context())
			defer cancel()

			if !s.JSON {
				var quote openswap.Quote
				err = withSpinner(s, "Fetching quote...", func() error {
					quote, err = client.Quote(ctx, intent.Token, intent.AmountIn, string(intent.Direction))
					return err
				})
				if err != nil {
					return err
				}
				displayQuote(intent, quote)
				if !noConfirm && !confirm("Proceed with swap?") {
					fmt.Println("\nSwap cancelled.")
					return nil
				}
			}

			var task openswap.Swap
			err = withSpinner(s, "Submitting swap...", func() error {
				task, err = client.SubmitSwap(ctx, openswap.SwapSubmission{
					Wallet:    s.Wallet,
					Token:     intent.Token,
					AmountIn:  intent.AmountIn,
					Direction: string(intent.Direction),
					Metadata:  map[string]any{"source": "swapctl"},
				})
				return err
			})
			if err != nil {
				return err
			}
			if noWait {
				if s.JSON {
					return printJSON(task)
				}
				fmt.Printf("\nSwap queued as %s\n", color.CyanString(task.ID))
				color.Cyan("  swapctl history --wallet %s\n", s.Wallet)
				return nil
			}

			err = withSpinner(s, "Waiting for the swap to settle...", func() error {
				task, err = client.WaitForSwap(ctx, task.ID, interval)
				return err
			})
			if err != nil {
				return err
			}
			if s.JSON {
				return printJSON(task)
			}
			return displaySwap(s, task)
		},
	}
	cmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return right after the swap is queued")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval while waiting")
	return cmd
}

func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// previewOf rebuilds the engine preview so the CLI prints the same summary
// as the daemon logs.
func previewOf(intent swap.Intent, quote openswap.Quote) swap.Preview {
	return swap.Preview{
		Token:             common.HexToAddress(intent.Token),
		Direction:         intent.Direction,
		Pool:              common.HexToAddress(quote.Pool),
		FeeTier:           swap.FeeTier(quote.FeeTier),
		Decimals:          quote.Decimals,
		AmountIn:          bigOf(quote.AmountIn.String()),
		QuotedOut:         bigOf(quote.QuotedOut.String()),
		MinAmountOut:      bigOf(quote.MinAmountOut.String()),
		TolerancePerMille: quote.TolerancePerMille,
		Warnings:          quote.Warnings,
	}
}

func bigOf(raw string) *big.Int {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return new(big.Int)
	}
	return value
}

func displayQuote(intent swap.Intent, quote openswap.Quote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))
	printField("Direction", color.YellowString(string(intent.Direction)))
	printField("Token", intent.Token)
	printField("Summary", previewOf(intent, quote).Describe())
	for _, warning := range quote.Warnings {
		color.Yellow("  Warning: %s", warning)
	}
	fmt.Println(strings.Repeat("=", 60))
}

func displaySwap(s settings, task openswap.Swap) error {
	fmt.Println()
	if task.Result == nil {
		color.Red("Swap %s %s: %s", task.ID, task.Status, task.LastError)
		return fmt.Errorf("swap %s did not complete", task.ID)
	}
	message := swap.LinkTransactions(task.Result.Message, s.ExplorerURL, s.ExplorerName)
	if task.Result.Success {
		color.Green("✓ %s", message)
	} else {
		color.Red("✗ %s", message)
	}
	if task.Result.ApprovalTxHash != "" {
		printField("Approval", swap.LinkTransactions("Transaction: "+task.Result.ApprovalTxHash, s.ExplorerURL, s.ExplorerName))
	}
	for _, warning := range task.Result.Warnings {
		color.Yellow("  Warning: %s", warning)
	}
	if !task.Result.Success {
		return fmt.Errorf("swap failed (%s)", task.Result.Code)
	}
	return nil
}
