package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// chainNames maps chain IDs to their names
var chainNames = map[int64]string{
	1:        "ETHEREUM",
	137:      "POLYGON",
	42161:    "ARBITRUM",
	8453:     "BASE",
	11155111: "SEPOLIA",
	84532:    "BASE_SEPOLIA",
}

// usdcAddresses maps chain IDs to USDC contract addresses
var usdcAddresses = map[int64]string{
	1:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	137:      "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	42161:    "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	8453:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	11155111: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
	84532:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int64) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// GetUSDCAddress returns the USDC contract address for a given chain ID
func GetUSDCAddress(chainID int64) (common.Address, bool) {
	address, exists := usdcAddresses[chainID]
	if !exists {
		return common.Address{}, false
	}
	return common.HexToAddress(address), true
}

// GetTokenType returns the token name for a known address, "NATIVE" for the zero address,
// and an empty string otherwise
func GetTokenType(address string) string {
	if common.HexToAddress(address) == (common.Address{}) && common.IsHexAddress(address) {
		return "NATIVE"
	}

	address = strings.ToLower(address)
	for _, usdcAddress := range usdcAddresses {
		if strings.ToLower(usdcAddress) == address {
			return "USDC"
		}
	}

	return ""
}
