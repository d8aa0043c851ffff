package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"golang.org/x/exp/slices"
)

// CompiledContract represents a single contract unit from a smart contract compilation.
type CompiledContract struct {
	// Abi describes a contract's application binary interface, a structure used to describe
	// information needed to interact with the contract such as constructor and function definitions
	// with input/output variable information, event declarations, and fallback and receive methods.
	Abi abi.ABI

	// InitBytecode describes the bytecode used to deploy a contract.
	InitBytecode []byte

	// RuntimeBytecode represents the rudimentary bytecode to be expected once the contract has been
	// successfully deployed. This may differ at runtime based on constructor arguments, immutables,
	// linked libraries, etc.
	RuntimeBytecode []byte

	// SrcMapsInit describes the source mappings to associate source file and bytecode segments in
	// InitBytecode.
	SrcMapsInit string

	// SrcMapsRuntime describes the source mappings to associate source file and bytecode segments
	// in RuntimeBytecode.
	SrcMapsRuntime string

	// StorageLayout describes the physical storage layout of the contract's state variables. It is
	// only populated when the compiler was asked to emit the storage-layout output.
	StorageLayout *StorageLayout
}

// GetDeploymentMessageData creates contract deployment message data for the given contract, given
// the raw ABI-encoded constructor arguments recorded for the original deployment. This data can be
// set in transaction/message "data" fields to indicate the packed init bytecode and constructor
// argument data to use.
func (c *CompiledContract) GetDeploymentMessageData(constructorArgs []byte) []byte {
	initBytecodeWithArgs := slices.Clone(c.InitBytecode)
	initBytecodeWithArgs = append(initBytecodeWithArgs, constructorArgs...)
	return initBytecodeWithArgs
}

// ParseABIFromInterface parses a generic object into an abi.ABI and returns it, or an error if one
// occurs.
func ParseABIFromInterface(i any) (*abi.ABI, error) {
	var (
		result abi.ABI
		err    error
	)

	// If it's a string, just parse it. Otherwise, we assume it's an interface and serialize it into
	// a string.
	if s, ok := i.(string); ok {
		result, err = abi.JSON(strings.NewReader(s))
		if err != nil {
			return nil, err
		}
	} else {
		var b []byte
		b, err = json.Marshal(i)
		if err != nil {
			return nil, err
		}
		result, err = abi.JSON(strings.NewReader(string(b)))
		if err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// ParseStorageLayoutFromInterface parses a generic object into a StorageLayout and returns it, or
// an error if one occurs. Compiler outputs embed the layout either as a JSON string or as an
// already-decoded object depending on the platform.
func ParseStorageLayoutFromInterface(i any) (*StorageLayout, error) {
	var layout StorageLayout
	if s, ok := i.(string); ok {
		if err := json.Unmarshal([]byte(s), &layout); err != nil {
			return nil, fmt.Errorf("could not parse storage layout: %v", err)
		}
	} else {
		b, err := json.Marshal(i)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &layout); err != nil {
			return nil, fmt.Errorf("could not parse storage layout: %v", err)
		}
	}
	return &layout, nil
}
