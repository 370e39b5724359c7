package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Environment pins the delegation-framework deployment on one chain. All
// redeem submissions go through the DelegationManager; smart accounts are
// counterfactual instances of the hybrid implementation behind the factory.
type Environment struct {
	ChainID              uint64
	DelegationManager    common.Address
	EntryPoint           common.Address
	AccountFactory       common.Address
	HybridImplementation common.Address
}

// environments holds the known deployments. The original deployment targets
// Monad testnet only; adding a chain means adding its row here.
var environments = map[uint64]Environment{
	10143: {
		ChainID:              10143,
		DelegationManager:    common.HexToAddress("0x739309deED0Ae184E66a427ACa432aE1D91d022e"),
		EntryPoint:           common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		AccountFactory:       common.HexToAddress("0x69Aa2f9fe1572F1B640E1bbc512f5c3a734fc77c"),
		HybridImplementation: common.HexToAddress("0xf4E57F579ad8169D0d4Da7AedF71AC3f83e8D2b4"),
	},
}

// EnvironmentFor resolves the delegation environment for a chain. An unknown
// chain is a bootstrap-fatal condition: the agent cannot address the
// delegation contracts it needs.
func EnvironmentFor(chainID uint64) (Environment, error) {
	env, ok := environments[chainID]
	if !ok {
		return Environment{}, fmt.Errorf("delegation contracts not configured for chain %d", chainID)
	}
	return env, nil
}
