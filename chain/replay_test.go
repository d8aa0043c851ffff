package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

// TestCreationNonce tests nonce reconciliation against the recorded contract address.
func TestCreationNonce(t *testing.T) {
	deployer := common.Address{0xaa}

	// The observed nonce is usually the one the creation consumed.
	contract := crypto.CreateAddress(deployer, 5)
	nonce, err := creationNonce(deployer, contract, 5)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, nonce)

	// Earlier transactions in the creation block shift the nonce past the one observed at the parent block.
	contract = crypto.CreateAddress(deployer, 8)
	nonce, err = creationNonce(deployer, contract, 5)
	assert.NoError(t, err)
	assert.EqualValues(t, 8, nonce)

	// A contract not created directly by the deployer (e.g. via a factory) is not replayable.
	_, err = creationNonce(deployer, common.Address{0xbb}, 5)
	assert.Error(t, err)
	var replayErr *ReplayError
	assert.ErrorAs(t, err, &replayErr)
}

// TestNewReplayBlockContext tests block context reconstruction for pre- and post-merge blocks.
func TestNewReplayBlockContext(t *testing.T) {
	// Pre-merge block: difficulty is non-zero and PREVRANDAO is unavailable.
	preMerge := &rpcBlockHeader{
		Number:     (*hexutil.Big)(big.NewInt(10_000_000)),
		Timestamp:  hexutil.Uint64(1600000000),
		GasLimit:   hexutil.Uint64(12_500_000),
		Miner:      common.Address{0x01},
		Difficulty: (*hexutil.Big)(big.NewInt(3_000_000_000)),
	}
	blockCtx := newReplayBlockContext(preMerge)
	assert.Nil(t, blockCtx.Random)
	assert.Equal(t, big.NewInt(10_000_000), blockCtx.BlockNumber)
	assert.EqualValues(t, 1600000000, blockCtx.Time)
	assert.EqualValues(t, 12_500_000, blockCtx.GasLimit)
	assert.Equal(t, common.Address{0x01}, blockCtx.Coinbase)

	// Post-merge block: zero difficulty, mix hash carries PREVRANDAO, base fee present.
	postMerge := &rpcBlockHeader{
		Number:        (*hexutil.Big)(big.NewInt(18_000_000)),
		Timestamp:     hexutil.Uint64(1700000000),
		GasLimit:      hexutil.Uint64(30_000_000),
		BaseFeePerGas: (*hexutil.Big)(big.NewInt(15_000_000_000)),
		Miner:         common.Address{0x02},
		Difficulty:    (*hexutil.Big)(big.NewInt(0)),
		MixHash:       common.Hash{0xde, 0xad},
	}
	blockCtx = newReplayBlockContext(postMerge)
	assert.NotNil(t, blockCtx.Random)
	assert.Equal(t, common.Hash{0xde, 0xad}, *blockCtx.Random)
	assert.Equal(t, big.NewInt(15_000_000_000), blockCtx.BaseFee)
}

// TestNewReplayChainConfig tests that the replay chain config activates modern forks under the recorded
// chain id.
func TestNewReplayChainConfig(t *testing.T) {
	config := newReplayChainConfig(137)
	assert.Equal(t, big.NewInt(137), config.ChainID)
	assert.NotNil(t, config.ShanghaiTime)
	assert.True(t, config.IsLondon(big.NewInt(1)))
	assert.True(t, config.IsShanghai(big.NewInt(1), 1))
}
