package tweak

import (
	"fmt"
	"strings"

	"github.com/MedGa-eth/foundry/chain"
	"github.com/pkg/errors"
)

// ErrMetadataNotFound indicates a project root does not contain a clone descriptor file.
var ErrMetadataNotFound = errors.New("no clone metadata found")

// RPCError indicates a remote chain query failed. Produced only in full bytecode-generation mode.
type RPCError = chain.RPCError

// ReplayError indicates deployment replay could not be completed deterministically. Produced only in full
// bytecode-generation mode.
type ReplayError = chain.ReplayError

// MetadataParseError indicates the clone descriptor file exists but does not match the expected schema.
type MetadataParseError struct {
	// Path is the location of the malformed descriptor file.
	Path string

	// Err is the underlying decoding failure.
	Err error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("could not parse clone metadata at %s: %v", e.Path, e.Err)
}

func (e *MetadataParseError) Unwrap() error {
	return e.Err
}

// CompileError indicates the underlying compiler failed, carrying its diagnostics output.
type CompileError struct {
	// Diagnostics is the raw compiler output produced by the failed invocation.
	Diagnostics string

	// Err is the underlying failure.
	Err error
}

func (e *CompileError) Error() string {
	if e.Diagnostics != "" {
		return fmt.Sprintf("compilation failed: %v\n%s", e.Err, e.Diagnostics)
	}
	return fmt.Sprintf("compilation failed: %v", e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ArtifactNotFoundError indicates the compile output does not contain the contract recorded in the clone
// metadata.
type ArtifactNotFoundError struct {
	// ContractName is the target contract which could not be resolved.
	ContractName string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("compiled output does not contain the target contract '%s'", e.ContractName)
}

// ChainMismatchError indicates the project is configured for a different chain than the one the contract was
// cloned from.
type ChainMismatchError struct {
	// Configured is the chain id the project configuration names.
	Configured uint64

	// Recorded is the chain id in the clone metadata.
	Recorded uint64
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("project is configured for chain %d but the contract was cloned from chain %d", e.Configured, e.Recorded)
}

// IncompatibleStorageError indicates the current compile output's storage layout diverges from the layout the
// contract was deployed with. It carries every violation found, not just the first.
type IncompatibleStorageError struct {
	// Violations enumerates each storage variable whose physical position or encoding changed.
	Violations []StorageViolation
}

func (e *IncompatibleStorageError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("storage layout is incompatible with the deployed contract (%d violation(s)):", len(e.Violations)))
	for _, v := range e.Violations {
		b.WriteString("\n\t- ")
		b.WriteString(v.String())
	}
	return b.String()
}
