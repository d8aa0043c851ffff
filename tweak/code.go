package tweak

import (
	"context"

	"github.com/MedGa-eth/foundry/chain"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

/*
TweakedCode produces replacement runtime bytecode for the cloned contract, suitable for substitution into a
simulated or forked execution environment in place of the on-chain code. Generation is a staged pipeline where
each stage is a hard precondition on the next:

 1. The project's configured chain id must match the chain the contract was cloned from. A mismatch fails with
    a ChainMismatchError before any compilation or network access.
 2. The current compile output's storage layout must be compatible with the layout recorded at clone time
    (see CheckStorageCompatibility). Any incompatibility aborts before the network is touched.
 3. Bytecode is generated in one of two modes. Quick mode returns the target artifact's compiled runtime
    bytecode as-is: no network access, with immutable values left as the compiler's placeholder zeros for the
    caller to patch. Full mode replays the recorded deployment against forked remote state, re-running the
    constructor with the recorded arguments and deployer so immutable values and other constructor-time
    effects are baked into the returned bytecode exactly as they were on chain.

The returned bytes are not persisted anywhere; injecting them into an execution environment is the caller's
responsibility.
*/
func (p *ClonedProject) TweakedCode(ctx context.Context, rpcConfig *chain.RPCConfig, quick bool) ([]byte, error) {
	// Stage 1: chain identity.
	if chainID := p.targetChainID(); chainID != p.Metadata.ChainID {
		return nil, &ChainMismatchError{Configured: chainID, Recorded: p.Metadata.ChainID}
	}

	// Stage 2: storage compatibility of the current source against the deployed contract.
	artifact, err := p.TargetArtifact()
	if err != nil {
		return nil, err
	}
	if artifact.StorageLayout == nil {
		return nil, errors.Errorf("compiled artifact for '%s' carries no storage layout; the compiler may be too old to emit one", p.Metadata.TargetContract)
	}
	if err = CheckStorageCompatibility(&p.Metadata.StorageLayout, artifact.StorageLayout); err != nil {
		return nil, err
	}

	// Stage 3: bytecode generation.
	if quick {
		return slices.Clone(artifact.RuntimeBytecode), nil
	}

	if rpcConfig == nil || rpcConfig.Endpoint == "" {
		return nil, &RPCError{Message: "full-mode bytecode generation requires an rpc endpoint"}
	}
	// Persist fetched remote state under the project root unless the caller chose a location.
	config := *rpcConfig
	if config.CacheDirectory == "" {
		config.CacheDirectory = p.Root
	}

	initCode := artifact.GetDeploymentMessageData(p.Metadata.ConstructorArguments)
	replayer := chain.NewDeploymentReplayer(config)
	return replayer.Replay(ctx, chain.Deployment{
		ChainID:             p.Metadata.ChainID,
		Deployer:            p.Metadata.Deployer,
		Address:             p.Metadata.Address,
		CreationTransaction: p.Metadata.CreationTransaction,
	}, initCode)
}
