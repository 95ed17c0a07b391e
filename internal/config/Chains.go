/*

This file contains the per-chain endpoint configuration: the JSON-RPC node
used for on-chain pool reads and the CoinGecko asset platform used for token
price lookups, keyed by EVM chain ID.

Public llamarpc/official endpoints are configured as defaults so the service
works out of the box. They are rate limited; override per chain with the
matching *_RPC_URL variable for real traffic.

If a chain doesnt have an entry here it is simply not supported: pool requests
against it fail with a configuration error rather than guessing an endpoint.

*/

package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// ChainRPCs maps EVM chain ID to the JSON-RPC endpoint used for eth_call.
// Populated at startup by loadChainConfig; defaults below, env overrides win.
var ChainRPCs map[int]string

// defaultChainRPCs are the out-of-the-box public endpoints.
var defaultChainRPCs = map[int]string{
	1:     "https://eth.llamarpc.com",      // Ethereum
	10:    "https://optimism.llamarpc.com", // Optimism
	56:    "https://binance.llamarpc.com",  // BNB Chain
	137:   "https://polygon.llamarpc.com",  // Polygon
	8453:  "https://base.llamarpc.com",     // Base
	42161: "https://arbitrum.llamarpc.com", // Arbitrum One
	43114: "https://api.avax.network/ext/bc/C/rpc",
}

// ChainToPlatform maps EVM chain ID to the CoinGecko asset platform ID used
// by the token_price endpoints.
var ChainToPlatform = map[int]string{
	1:     "ethereum",
	10:    "optimistic-ethereum",
	56:    "binance-smart-chain",
	137:   "polygon-pos",
	8453:  "base",
	42161: "arbitrum-one",
	43114: "avalanche",
}

// ChainName maps EVM chain ID to a human-readable name for responses and logs.
var ChainName = map[int]string{
	1:     "Ethereum",
	10:    "Optimism",
	56:    "BNB Chain",
	137:   "Polygon",
	8453:  "Base",
	42161: "Arbitrum One",
	43114: "Avalanche",
}

// chainRPCEnvVars maps each supported chain to its override variable.
var chainRPCEnvVars = map[int]string{
	1:     "ETHEREUM_RPC_URL",
	10:    "OPTIMISM_RPC_URL",
	56:    "BSC_RPC_URL",
	137:   "POLYGON_RPC_URL",
	8453:  "BASE_RPC_URL",
	42161: "ARBITRUM_RPC_URL",
	43114: "AVALANCHE_RPC_URL",
}

// loadChainConfig seeds ChainRPCs from the defaults and applies any *_RPC_URL
// environment overrides.
// This function is called by LoadConfig() in General.go.
func loadChainConfig() error {
	log.Info().Msg("Loading chain endpoint configuration...")

	ChainRPCs = make(map[int]string, len(defaultChainRPCs))
	for chainID, url := range defaultChainRPCs {
		ChainRPCs[chainID] = url
	}

	for chainID, key := range chainRPCEnvVars {
		if value, exists := os.LookupEnv(key); exists && value != "" {
			ChainRPCs[chainID] = value
			log.Debug().Int("chainID", chainID).Str("url", value).Msg("Chain RPC endpoint overridden from environment")
		}
	}

	log.Debug().
		Int("chains", len(ChainRPCs)).
		Msg("Chain endpoint configuration loaded successfully.")

	return nil
}

// RPCForChain returns the JSON-RPC endpoint for a chain ID, or an error for
// unsupported chains.
func RPCForChain(chainID int) (string, error) {
	if url, ok := ChainRPCs[chainID]; ok {
		return url, nil
	}
	return "", fmt.Errorf("chain %d is not supported, no RPC endpoint configured", chainID)
}

// PlatformForChain returns the CoinGecko asset platform for a chain ID, or an
// error for unsupported chains.
func PlatformForChain(chainID int) (string, error) {
	if platform, ok := ChainToPlatform[chainID]; ok {
		return platform, nil
	}
	return "", fmt.Errorf("chain %d is not supported, no price platform configured", chainID)
}
