package chains

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRegistry = `[
  {
    "name": "ethereum",
    "full_name": "Ethereum Mainnet",
    "short_name": "eth",
    "rpc_url": "https://example.invalid/rpc",
    "subgraph_url": "https://example.invalid/subgraph",
    "subgraph_type": "uniswap_v3",
    "factory_address": "0x1F98431c8aD98523631AE4a59f267346ea31F984",
    "quoter_address": "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
    "native_token_address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
  }
]`

func writeRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supported_chains.json")
	if err := os.WriteFile(path, []byte(sampleRegistry), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeRegistry(t))
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	chain, err := reg.Get("ethereum")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if chain.ShortName != "eth" {
		t.Errorf("short name = %q, want eth", chain.ShortName)
	}
	if chain.NativeTokenAddress != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
		t.Errorf("native address should be lowercased, got %q", chain.NativeTokenAddress)
	}
}

func TestProviderURLEnvOverride(t *testing.T) {
	t.Setenv("ETH_PROVIDER_URL", "https://override.invalid/rpc")

	reg, err := LoadRegistry(writeRegistry(t))
	if err != nil {
		t.Fatal(err)
	}
	chain, _ := reg.Get("ethereum")
	if chain.RPCURL != "https://override.invalid/rpc" {
		t.Errorf("rpc url = %q, want the env override", chain.RPCURL)
	}
}

func TestGetUnknownChainFails(t *testing.T) {
	reg, err := LoadRegistry(writeRegistry(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("dogechain"); err == nil {
		t.Error("Get should fail for an unregistered chain")
	}
}
