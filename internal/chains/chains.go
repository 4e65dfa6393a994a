// Package chains holds the registry of chains the bot can trade on and the
// per-chain connection data (RPC endpoint, subgraph, factory and wrapped
// native token addresses).
package chains

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Chain describes one supported chain.
type Chain struct {
	Name               string `json:"name"`
	FullName           string `json:"full_name"`
	ShortName          string `json:"short_name"`
	RPCURL             string `json:"rpc_url"`
	SubgraphURL        string `json:"subgraph_url"`
	SubgraphType       string `json:"subgraph_type"`
	FactoryAddress     string `json:"factory_address"`
	QuoterAddress      string `json:"quoter_address"`
	NativeTokenAddress string `json:"native_token_address"`
	RiskAPIURL         string `json:"risk_api_url,omitempty"`
}

// Registry maps chain name to its connection data.
type Registry struct {
	chains map[string]Chain
}

// LoadRegistry reads the supported-chains JSON file. The RPC URL for each
// chain is overridable through the {SHORT_NAME}_PROVIDER_URL environment
// variable so endpoints with embedded API keys stay out of the file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supported chains: %w", err)
	}

	var list []Chain
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse supported chains: %w", err)
	}

	reg := &Registry{chains: make(map[string]Chain, len(list))}
	for _, c := range list {
		if env := os.Getenv(strings.ToUpper(c.ShortName) + "_PROVIDER_URL"); env != "" {
			c.RPCURL = env
		}
		c.NativeTokenAddress = strings.ToLower(c.NativeTokenAddress)
		reg.chains[c.Name] = c
	}
	return reg, nil
}

// Get returns the chain with the given name.
func (r *Registry) Get(name string) (Chain, error) {
	c, ok := r.chains[name]
	if !ok {
		return Chain{}, fmt.Errorf("unsupported chain %q", name)
	}
	return c, nil
}

// Names lists all registered chain names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}
