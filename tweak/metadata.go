package tweak

import (
	"encoding/json"
	"os"
	"path/filepath"

	compilationTypes "github.com/MedGa-eth/foundry/compilation/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// MetadataFileName is the conventional name of the clone descriptor file at a project root.
const MetadataFileName = ".clone.meta"

/*
CloneMetadata is the persisted descriptor of the on-chain contract a cloned project mirrors. It is written when
the project is cloned and is the ground truth for all later compatibility checks; it is never modified by a
recompile.
*/
type CloneMetadata struct {
	// Path is the source file declaring the target contract, relative to the project root.
	Path string `json:"path"`

	// TargetContract is the name of the contract to resolve in the compile output.
	TargetContract string `json:"targetContract"`

	// Address is the address the contract is deployed at on the remote chain.
	Address common.Address `json:"address"`

	// ChainID is the EIP-155 chain id of the chain the contract was cloned from.
	ChainID uint64 `json:"chainId"`

	// CreationTransaction is the hash of the transaction which deployed the contract.
	CreationTransaction common.Hash `json:"creationTransaction"`

	// Deployer is the account which sent the creation transaction.
	Deployer common.Address `json:"deployer"`

	// ConstructorArguments holds the ABI-encoded constructor arguments the contract was deployed with.
	ConstructorArguments hexutil.Bytes `json:"constructorArguments"`

	// StorageLayout is the storage layout the contract was compiled with at clone time. This is the baseline
	// every recompile is checked against.
	StorageLayout compilationTypes.StorageLayout `json:"storageLayout"`
}

// LoadCloneMetadata reads the clone descriptor file under the given project root. Returns an error wrapping
// ErrMetadataNotFound if the file does not exist, or a MetadataParseError if it cannot be decoded.
func LoadCloneMetadata(root string) (*CloneMetadata, error) {
	path := filepath.Join(root, MetadataFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMetadataNotFound, "at %s", path)
		}
		return nil, errors.WithStack(err)
	}

	var metadata CloneMetadata
	if err = json.Unmarshal(b, &metadata); err != nil {
		return nil, &MetadataParseError{Path: path, Err: err}
	}
	return &metadata, nil
}

// Save writes the descriptor to its conventional location under the given project root.
func (m *CloneMetadata) Save(root string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	err = os.WriteFile(filepath.Join(root, MetadataFileName), b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}
