package platforms

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/MedGa-eth/foundry/compilation/types"
	"github.com/MedGa-eth/foundry/utils"
)

// SolcCompilationConfig invokes the system solc binary directly against a single target source
// file or directory.
type SolcCompilationConfig struct {
	// Target describes the source path provided to solc.
	Target string `json:"target"`

	// EmitStorageLayout describes whether the storage-layout output should be requested from solc
	// in addition to the standard outputs. Requires solc >= 0.5.13.
	EmitStorageLayout bool `json:"emitStorageLayout,omitempty"`
}

// NewSolcCompilationConfig returns a SolcCompilationConfig for the provided target.
func NewSolcCompilationConfig(target string) *SolcCompilationConfig {
	return &SolcCompilationConfig{
		Target: target,
	}
}

func (s *SolcCompilationConfig) Platform() string {
	return "solc"
}

// GetTarget returns the target for compilation
func (s *SolcCompilationConfig) GetTarget() string {
	return s.Target
}

// SetTarget sets the new target for compilation
func (s *SolcCompilationConfig) SetTarget(newTarget string) {
	s.Target = newTarget
}

// EnableStorageLayout requests the storage-layout combined-json output.
func (s *SolcCompilationConfig) EnableStorageLayout() {
	s.EmitStorageLayout = true
}

// GetSystemSolcVersion obtains the version of the system-installed solc binary.
func GetSystemSolcVersion() (*semver.Version, error) {
	// Run solc --version to obtain our compiler version.
	out, err := exec.Command("solc", "--version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("error while executing solc:\nOUTPUT:\n%s\nERROR: %s\n", string(out), err.Error())
	}

	// Parse the compiler version out of the output
	exp := regexp.MustCompile(`\d+\.\d+\.\d+`)
	versionStr := exp.FindString(string(out))
	if versionStr == "" {
		return nil, errors.New("could not parse solc version using 'solc --version'")
	}

	// Parse our semver string and return it
	return semver.NewVersion(versionStr)
}

// supportsStorageLayoutOutput indicates whether the given solc version supports the
// "storage-layout" combined-json selector, introduced in solc 0.5.13.
func supportsStorageLayoutOutput(v *semver.Version) bool {
	if v.Major() > 0 {
		return true
	}
	if v.Minor() > 5 {
		return true
	}
	return v.Minor() == 5 && v.Patch() >= 13
}

// getSolcOutputOptions determines what combined-json output options should be provided to solc
// given its version.
func (s *SolcCompilationConfig) getSolcOutputOptions(v *semver.Version) (string, error) {
	outputOptions := "abi,bin,bin-runtime,srcmap,srcmap-runtime"
	if s.EmitStorageLayout {
		if !supportsStorageLayoutOutput(v) {
			return "", fmt.Errorf("solc %s does not support the storage-layout output, version 0.5.13 or later is required", v.String())
		}
		outputOptions += ",storage-layout"
	}
	return outputOptions, nil
}

// Compile invokes solc against the configured target and parses the combined-json output into a
// Compilation. Returns the compilation, solc's stderr text, or an error.
func (s *SolcCompilationConfig) Compile() ([]types.Compilation, string, error) {
	// Obtain our solc version string
	v, err := GetSystemSolcVersion()
	if err != nil {
		return nil, "", err
	}

	// Determine which compiler options we need.
	outputOptions, err := s.getSolcOutputOptions(v)
	if err != nil {
		return nil, "", err
	}

	// Create our command
	cmd := exec.Command("solc", s.Target, "--combined-json", outputOptions)
	cmdStdout, cmdStderr, cmdCombined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return nil, "", fmt.Errorf("error while executing solc:\n%s\n\nCommand Output:\n%s\n", err.Error(), string(cmdCombined))
	}

	// Our compilation succeeded, load the JSON
	var results struct {
		Contracts map[string]solcCombinedJsonContract `json:"contracts"`
		Version   string                              `json:"version"`
	}
	err = json.Unmarshal(cmdStdout, &results)
	if err != nil {
		return nil, "", fmt.Errorf("could not parse solc combined-json output: %v", err)
	}

	// Create a compilation unit out of this.
	compilation := types.NewCompilation()

	// Parse our contracts from solc output
	for name, contract := range results.Contracts {
		// Split our name which should be of form "filename:contractname"
		nameSplit := strings.Split(name, ":")
		sourcePath := strings.Join(nameSplit[0:len(nameSplit)-1], ":")
		contractName := nameSplit[len(nameSplit)-1]

		// Convert the abi structure to our parsed abi type
		contractAbi, err := types.ParseABIFromInterface(contract.Abi)
		if err != nil {
			continue
		}

		// Decode our init and runtime bytecode
		initBytecode, err := hex.DecodeString(strings.TrimPrefix(contract.Bin, "0x"))
		if err != nil {
			return nil, "", fmt.Errorf("unable to parse init bytecode for contract '%s'\n", contractName)
		}
		runtimeBytecode, err := hex.DecodeString(strings.TrimPrefix(contract.BinRuntime, "0x"))
		if err != nil {
			return nil, "", fmt.Errorf("unable to parse runtime bytecode for contract '%s'\n", contractName)
		}

		// Parse the storage layout, if it was requested and emitted.
		var storageLayout *types.StorageLayout
		if contract.StorageLayout != nil {
			storageLayout, err = types.ParseStorageLayoutFromInterface(contract.StorageLayout)
			if err != nil {
				return nil, "", fmt.Errorf("unable to parse storage layout for contract '%s': %v", contractName, err)
			}
		}

		// If we don't have an artifact for this source file, create it.
		if _, ok := compilation.SourcePathToArtifact[sourcePath]; !ok {
			compilation.SourcePathToArtifact[sourcePath] = types.SourceArtifact{
				Contracts: make(map[string]types.CompiledContract),
			}
		}

		// Construct our compiled contract
		compilation.SourcePathToArtifact[sourcePath].Contracts[contractName] = types.CompiledContract{
			Abi:             *contractAbi,
			InitBytecode:    initBytecode,
			RuntimeBytecode: runtimeBytecode,
			SrcMapsInit:     contract.SrcMap,
			SrcMapsRuntime:  contract.SrcMapRuntime,
			StorageLayout:   storageLayout,
		}
	}

	return []types.Compilation{*compilation}, string(cmdStderr), nil
}

// solcCombinedJsonContract mirrors the per-contract structure of solc's combined-json output.
// Depending on the solc version, "abi" and "storage-layout" may be JSON strings or objects, so
// they are decoded generically and parsed afterwards.
type solcCombinedJsonContract struct {
	Abi           any    `json:"abi"`
	Bin           string `json:"bin"`
	BinRuntime    string `json:"bin-runtime"`
	SrcMap        string `json:"srcmap"`
	SrcMapRuntime string `json:"srcmap-runtime"`
	StorageLayout any    `json:"storage-layout"`
}
