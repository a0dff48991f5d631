package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"OpenMCP-Swap/sdk/go/openswap"
)

const (
	defaultAPIURL       = "http://127.0.0.1:8080"
	defaultExplorerURL  = "https://basescan.org"
	defaultExplorerName = "Basescan"
)

// settings is the resolved flag/env/file configuration of one invocation.
type settings struct {
	APIURL       string
	ExplorerURL  string
	ExplorerName string
	Wallet       string
	Timeout      time.Duration
	JSON         bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "swapctl",
		Short: "Swap tokens against WETH on Uniswap V3 through openswapd",
		Long: `swapctl talks to a running openswapd daemon to quote and execute
single-pool Uniswap V3 swaps between the native currency and an ERC20 token.

Examples:
  swapctl quote buy 0.1 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913
  swapctl swap sell 25 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913 --yes
  swapctl token 0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913
  swapctl balance 0xYourWallet`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadSettings(v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", defaultAPIURL, "Base URL of the openswapd REST API")
	flags.String("explorer-url", defaultExplorerURL, "Block explorer used for transaction links")
	flags.String("explorer-name", defaultExplorerName, "Display name of the block explorer")
	flags.String("wallet", "", "Wallet address that signs swaps (daemon default when empty)")
	flags.Duration("timeout", 5*time.Minute, "Overall timeout of the command")
	flags.BoolP("json", "j", false, "Output in JSON format")
	for key, flag := range map[string]string{
		"api_url":       "api-url",
		"explorer_url":  "explorer-url",
		"explorer_name": "explorer-name",
		"wallet":        "wallet",
		"timeout":       "timeout",
		"json":          "json",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newSwapCmd(v),
		newQuoteCmd(v),
		newTokenCmd(v),
		newBalanceCmd(v),
		newHistoryCmd(v),
	)
	return root
}

// loadSettings layers flags over OPENSWAP_* environment variables over an
// optional .swapctl.yaml in $HOME or the working directory.
func loadSettings(v *viper.Viper) error {
	v.SetConfigName(".swapctl")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")
	v.SetEnvPrefix("OPENSWAP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func resolveSettings(v *viper.Viper) settings {
	return settings{
		APIURL:       v.GetString("api_url"),
		ExplorerURL:  v.GetString("explorer_url"),
		ExplorerName: v.GetString("explorer_name"),
		Wallet:       v.GetString("wallet"),
		Timeout:      v.GetDuration("timeout"),
		JSON:         v.GetBool("json"),
	}
}

func (s settings) client() (*openswap.Client, error) {
	return openswap.NewClient(s.APIURL, nil)
}

func (s settings) context(parent context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.Timeout)
}

// withSpinner runs fn behind a terminal spinner unless JSON output is on.
func withSpinner(s settings, suffix string, fn func() error) error {
	if s.JSON {
		return fn()
	}
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " " + suffix
	sp.Start()
	defer sp.Stop()
	return fn()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "\nError: %v\n\n", err)
}

func printField(label, value string) {
	fmt.Printf("  %-18s %s\n", label+":", value)
}
