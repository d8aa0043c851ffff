package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/MedGa-eth/foundry/chain/state"
	"github.com/MedGa-eth/foundry/chain/state/cache"
	"github.com/MedGa-eth/foundry/chain/state/rpc"
	"github.com/MedGa-eth/foundry/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// DefaultPoolSize is the number of RPC clients dialed when a pool size is not configured.
const DefaultPoolSize = 4

// replayGasLimit bounds constructor execution during deployment replay. Set to the mainnet block gas limit so any
// constructor that fit in a real block fits here.
const replayGasLimit = uint64(30_000_000)

// RPCConfig describes how to reach the remote chain a contract was cloned from.
type RPCConfig struct {
	// Endpoint is the JSON-RPC URL of an archive node for the chain the contract lives on.
	Endpoint string `json:"endpoint"`

	// PoolSize is the number of concurrent RPC clients to dial. Defaults to DefaultPoolSize when zero.
	PoolSize uint `json:"poolSize,omitempty"`

	// CacheDirectory is where fetched remote state is persisted between runs. Remote state caching is disabled
	// when empty.
	CacheDirectory string `json:"cacheDirectory,omitempty"`
}

// RPCError indicates the remote chain could not be queried, or returned data that does not describe the requested
// object.
type RPCError struct {
	Message string
	Err     error
}

func (e *RPCError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("rpc error: %s", e.Message)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// ReplayError indicates the recorded creation transaction could not be re-executed against the forked state.
type ReplayError struct {
	Message string
	Err     error
}

func (e *ReplayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deployment replay failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("deployment replay failed: %s", e.Message)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Deployment describes the on-chain creation of a contract being replayed.
type Deployment struct {
	// ChainID is the EIP-155 chain id of the remote chain.
	ChainID uint64

	// Deployer is the externally owned account which sent the creation transaction.
	Deployer common.Address

	// Address is the address the contract was deployed at.
	Address common.Address

	// CreationTransaction is the hash of the transaction which deployed the contract.
	CreationTransaction common.Hash
}

// rpcTransaction captures the fields of an eth_getTransactionByHash response used during replay.
type rpcTransaction struct {
	BlockNumber *hexutil.Big    `json:"blockNumber"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	Value       *hexutil.Big    `json:"value"`
}

// rpcBlockHeader captures the fields of an eth_getBlockByNumber response used to rebuild the block context.
type rpcBlockHeader struct {
	Number        *hexutil.Big   `json:"number"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	GasLimit      hexutil.Uint64 `json:"gasLimit"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
	Miner         common.Address `json:"miner"`
	Difficulty    *hexutil.Big   `json:"difficulty"`
	MixHash       common.Hash    `json:"mixHash"`
}

/*
DeploymentReplayer re-executes a contract's recorded creation transaction against forked remote state, substituting
new init bytecode for the original. The constructor runs over the state of the block preceding the creation, so
environment-dependent values (immutables read from other contracts, block attributes, constructor arguments) resolve
the same way they did at deployment time.
*/
type DeploymentReplayer struct {
	config RPCConfig
	logger *logging.Logger
}

// NewDeploymentReplayer creates a replayer which fetches remote state per the given RPC config.
func NewDeploymentReplayer(config RPCConfig) *DeploymentReplayer {
	return &DeploymentReplayer{
		config: config,
		logger: logging.GlobalLogger.NewSubLogger("module", "replay"),
	}
}

/*
Replay re-runs the deployment described by deployment, executing initCode in place of the original creation code,
and returns the runtime bytecode produced by the constructor. The replay happens on an in-memory fork pinned to the
parent block of the creation transaction; nothing is written to the remote chain.
*/
func (r *DeploymentReplayer) Replay(ctx context.Context, deployment Deployment, initCode []byte) ([]byte, error) {
	poolSize := r.config.PoolSize
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}
	clientPool, err := rpc.NewClientPool(r.config.Endpoint, poolSize)
	if err != nil {
		return nil, &RPCError{Message: fmt.Sprintf("could not connect to %s", r.config.Endpoint), Err: err}
	}

	// Locate the creation transaction and the block it was mined in.
	var tx *rpcTransaction
	err = clientPool.ExecuteRequestBlocking(ctx, &tx, "eth_getTransactionByHash", deployment.CreationTransaction)
	if err != nil {
		return nil, &RPCError{Message: "could not fetch creation transaction", Err: err}
	}
	if tx == nil || tx.BlockNumber == nil {
		return nil, &RPCError{Message: fmt.Sprintf("creation transaction %s not found on chain", deployment.CreationTransaction)}
	}
	if tx.To != nil {
		return nil, &ReplayError{Message: fmt.Sprintf("transaction %s is not a contract creation", deployment.CreationTransaction)}
	}
	if tx.From != deployment.Deployer {
		return nil, &ReplayError{Message: fmt.Sprintf("transaction %s was sent by %s, not the recorded deployer %s", deployment.CreationTransaction, tx.From, deployment.Deployer)}
	}

	var block *rpcBlockHeader
	err = clientPool.ExecuteRequestBlocking(ctx, &block, "eth_getBlockByNumber", tx.BlockNumber.String(), false)
	if err != nil || block == nil {
		return nil, &RPCError{Message: fmt.Sprintf("could not fetch block %s", tx.BlockNumber.String()), Err: err}
	}

	// Fork the chain at the parent of the creation block, so the constructor observes the same pre-state the
	// original deployment did.
	forkHeight := new(big.Int).Sub(block.Number.ToInt(), big.NewInt(1)).Uint64()
	stateCache, err := r.newStateCache(ctx, forkHeight)
	if err != nil {
		return nil, err
	}
	backend := state.NewRPCBackend(ctx, clientPool, forkHeight, stateCache)
	forkDB := NewForkStateDB(backend)

	r.logger.Debug(fmt.Sprintf("replaying deployment of %s at block %d", deployment.Address, forkHeight+1), nil)

	value := big.NewInt(0)
	if tx.Value != nil {
		value = tx.Value.ToInt()
	}
	runtimeCode, err := r.executeCreation(forkDB, block, deployment, initCode, value)
	if err != nil {
		return nil, err
	}
	// A backend failure leaves the EVM running over zeroed state, which can still "succeed". Surface it instead
	// of returning bytecode derived from bad state.
	if fetchErr := forkDB.FetchError(); fetchErr != nil {
		return nil, &RPCError{Message: "could not fetch remote state during replay", Err: fetchErr}
	}
	return runtimeCode, nil
}

func (r *DeploymentReplayer) newStateCache(ctx context.Context, height uint64) (cache.StateCache, error) {
	if r.config.CacheDirectory == "" {
		return cache.NewNonPersistentCache()
	}
	stateCache, err := cache.NewPersistentCache(ctx, r.config.CacheDirectory, r.config.Endpoint, height)
	if err != nil {
		return nil, &RPCError{Message: "could not open remote state cache", Err: err}
	}
	return stateCache, nil
}

// executeCreation runs the constructor inside an EVM configured to mirror the creation block.
func (r *DeploymentReplayer) executeCreation(forkDB *ForkStateDB, block *rpcBlockHeader, deployment Deployment, initCode []byte, value *big.Int) ([]byte, error) {
	chainConfig := newReplayChainConfig(deployment.ChainID)
	blockCtx := newReplayBlockContext(block)
	evm := vm.NewEVM(blockCtx, forkDB, chainConfig, vm.Config{})
	evm.SetTxContext(vm.TxContext{
		Origin:   deployment.Deployer,
		GasPrice: big.NewInt(0),
	})

	// The fork is pinned to the parent block, so the deployer's nonce may not yet be the one the creation
	// consumed (e.g. earlier transactions in the same block). Reconcile it against the known created address.
	nonce, err := creationNonce(deployment.Deployer, deployment.Address, forkDB.GetNonce(deployment.Deployer))
	if err != nil {
		return nil, err
	}
	forkDB.SetNonce(deployment.Deployer, nonce, 0)

	if value == nil {
		value = big.NewInt(0)
	}
	valueU256, _ := uint256.FromBig(value)
	if forkDB.GetBalance(deployment.Deployer).Cmp(valueU256) < 0 {
		// Gas is free here, but the constructor may still be payable. Top the deployer up rather than fail on
		// intra-block balance drift.
		forkDB.AddBalance(deployment.Deployer, valueU256, 0)
	}

	rules := chainConfig.Rules(blockCtx.BlockNumber, blockCtx.Random != nil, blockCtx.Time)
	precompiles := vm.ActivePrecompiledContracts(rules)
	precompileAddrs := make([]common.Address, 0, len(precompiles))
	for addr := range precompiles {
		precompileAddrs = append(precompileAddrs, addr)
	}
	forkDB.Prepare(rules, deployment.Deployer, blockCtx.Coinbase, nil, precompileAddrs, nil)

	ret, createdAddr, _, execErr := evm.Create(deployment.Deployer, initCode, replayGasLimit, valueU256)
	if execErr != nil {
		return nil, &ReplayError{Message: "constructor execution reverted", Err: execErr}
	}
	if createdAddr != deployment.Address {
		return nil, &ReplayError{Message: fmt.Sprintf("replay deployed to %s instead of %s", createdAddr, deployment.Address)}
	}
	return ret, nil
}

// creationNonce finds the deployer nonce which produces the recorded contract address, starting the search from the
// nonce observed at the fork height.
func creationNonce(deployer common.Address, contract common.Address, observed uint64) (uint64, error) {
	// The creation usually consumed the observed nonce. Scan forward a bounded window to absorb transactions
	// mined earlier in the creation block.
	for nonce := observed; nonce < observed+256; nonce++ {
		if crypto.CreateAddress(deployer, nonce) == contract {
			return nonce, nil
		}
	}
	return 0, &ReplayError{Message: fmt.Sprintf("contract %s was not directly created by %s", contract, deployer)}
}

// newReplayBlockContext rebuilds the EVM block context from the creation block's header.
func newReplayBlockContext(block *rpcBlockHeader) vm.BlockContext {
	blockCtx := vm.BlockContext{
		CanTransfer: canTransfer,
		Transfer:    transfer,
		GetHash:     getHashFn(),
		Coinbase:    block.Miner,
		GasLimit:    uint64(block.GasLimit),
		BlockNumber: block.Number.ToInt(),
		Time:        uint64(block.Timestamp),
		Difficulty:  block.Difficulty.ToInt(),
	}
	if block.BaseFeePerGas != nil {
		blockCtx.BaseFee = block.BaseFeePerGas.ToInt()
	}
	// Post-merge blocks carry zero difficulty and expose PREVRANDAO via the mix hash.
	if blockCtx.Difficulty == nil || blockCtx.Difficulty.Sign() == 0 {
		mixHash := block.MixHash
		blockCtx.Random = &mixHash
	}
	return blockCtx
}

// newReplayChainConfig builds a chain config with all mainline forks through Shanghai active, so modern constructor
// bytecode executes regardless of which chain the contract was cloned from.
func newReplayChainConfig(chainID uint64) *params.ChainConfig {
	shanghaiTime := uint64(0)
	return &params.ChainConfig{
		ChainID:                 new(big.Int).SetUint64(chainID),
		HomesteadBlock:          big.NewInt(0),
		DAOForkBlock:            nil,
		DAOForkSupport:          false,
		EIP150Block:             big.NewInt(0),
		EIP155Block:             big.NewInt(0),
		EIP158Block:             big.NewInt(0),
		ByzantiumBlock:          big.NewInt(0),
		ConstantinopleBlock:     big.NewInt(0),
		PetersburgBlock:         big.NewInt(0),
		IstanbulBlock:           big.NewInt(0),
		MuirGlacierBlock:        big.NewInt(0),
		BerlinBlock:             big.NewInt(0),
		LondonBlock:             big.NewInt(0),
		ArrowGlacierBlock:       big.NewInt(0),
		GrayGlacierBlock:        big.NewInt(0),
		MergeNetsplitBlock:      big.NewInt(0),
		ShanghaiTime:            &shanghaiTime,
		TerminalTotalDifficulty: big.NewInt(0),
	}
}

func canTransfer(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

func transfer(db vm.StateDB, sender, recipient common.Address, amount *uint256.Int) {
	db.SubBalance(sender, amount, 0)
	db.AddBalance(recipient, amount, 0)
}

// getHashFn serves BLOCKHASH lookups. Historical hashes are not fetched; a pseudo hash keeps execution
// deterministic, matching how constructors rarely (if ever) depend on them.
func getHashFn() func(n uint64) common.Hash {
	return func(n uint64) common.Hash {
		return common.BigToHash(new(big.Int).SetUint64(n))
	}
}
