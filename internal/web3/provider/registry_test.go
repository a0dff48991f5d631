package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"OpenMCP-Swap/internal/config"
	"OpenMCP-Swap/internal/web3"
	"OpenMCP-Swap/internal/web3/ethereum"
)

func TestStaticRegistryDefaults(t *testing.T) {
	sim := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { _ = sim.Close() })

	client := ethereum.NewSimulatedClient("base", sim.Client())
	registry, err := NewStaticRegistry("", map[string]web3.Client{"base": client},
		map[string]web3.ChainDefinition{"base": {Explorer: "https://basescan.org", ExplorerName: "Basescan", IndexSlug: "base"}})
	if err != nil {
		t.Fatalf("NewStaticRegistry returned error: %v", err)
	}
	if registry.DefaultChain() != "base" {
		t.Fatalf("unexpected default chain %q", registry.DefaultChain())
	}
	if registry.Explorer() != "https://basescan.org" {
		t.Fatalf("unexpected explorer %q", registry.Explorer())
	}
	if registry.ExplorerName() != "Basescan" {
		t.Fatalf("unexpected explorer name %q", registry.ExplorerName())
	}
	got, err := registry.DefaultClient()
	if err != nil || got.Name() != "base" {
		t.Fatalf("unexpected default client %v, %v", got, err)
	}
	if _, ok := registry.Client("ethereum"); ok {
		t.Fatalf("unknown chain should not resolve")
	}
	if names := registry.Chains(); len(names) != 1 || names[0] != "base" {
		t.Fatalf("unexpected chains %v", names)
	}
}

func TestStaticRegistryRejectsUnknownDefault(t *testing.T) {
	sim := simulated.NewBackend(types.GenesisAlloc{})
	t.Cleanup(func() { _ = sim.Close() })

	_, err := NewStaticRegistry("ethereum", map[string]web3.Client{"base": ethereum.NewSimulatedClient("base", sim.Client())}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown default chain")
	}
	if _, err := NewStaticRegistry("", nil, nil); err == nil {
		t.Fatalf("expected error without clients")
	}
}

func TestNewRegistryRejectsUnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	content := "chains:\n  sol:\n    type: solana\n    rpc_url: http://127.0.0.1:8899\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write chains: %v", err)
	}
	if _, err := NewRegistry(context.Background(), config.Web3Config{ChainConfig: path}); err == nil {
		t.Fatalf("expected unsupported chain type error")
	}
	if _, err := NewRegistry(context.Background(), config.Web3Config{}); err == nil {
		t.Fatalf("expected error without any endpoint")
	}
}
