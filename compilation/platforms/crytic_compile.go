package platforms

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/MedGa-eth/foundry/compilation/types"
	"github.com/MedGa-eth/foundry/utils"
)

// CryticCompileCompilationConfig invokes crytic-compile to drive whichever build framework the
// target project uses, consuming its solc-export build artifacts.
type CryticCompileCompilationConfig struct {
	// Target describes the project path passed to crytic-compile.
	Target string `json:"target"`

	// BuildDirectory describes the directory crytic-compile writes artifacts to. If empty, the
	// conventional "crytic-export" directory under the target is used.
	BuildDirectory string `json:"buildDirectory,omitempty"`

	// Args describes additional arguments passed through to crytic-compile.
	Args []string `json:"args,omitempty"`

	// EmitStorageLayout describes whether storage layouts are required in the build artifacts.
	EmitStorageLayout bool `json:"emitStorageLayout,omitempty"`
}

// NewCryticCompileCompilationConfig returns a CryticCompileCompilationConfig for the given target.
func NewCryticCompileCompilationConfig(target string) *CryticCompileCompilationConfig {
	return &CryticCompileCompilationConfig{
		Target: target,
	}
}

func (c *CryticCompileCompilationConfig) Platform() string {
	return "crytic-compile"
}

// GetTarget returns the target for compilation
func (c *CryticCompileCompilationConfig) GetTarget() string {
	return c.Target
}

// SetTarget sets the new target for compilation
func (c *CryticCompileCompilationConfig) SetTarget(newTarget string) {
	c.Target = newTarget
}

// EnableStorageLayout requests storage layouts in the exported build artifacts.
func (c *CryticCompileCompilationConfig) EnableStorageLayout() {
	c.EmitStorageLayout = true
}

// Compile runs crytic-compile against the configured target and parses its solc-export artifacts
// into a Compilation. Returns the compilation, the command's combined output, or an error.
func (c *CryticCompileCompilationConfig) Compile() ([]types.Compilation, string, error) {
	// Execute crytic-compile with the solc export format so artifacts carry per-contract outputs.
	args := append([]string{c.Target, "--export-format", "solc"}, c.Args...)
	cmd := exec.Command("crytic-compile", args...)
	_, _, cmdCombined, err := utils.RunCommandWithOutputAndError(cmd)
	if err != nil {
		return nil, "", fmt.Errorf("error while executing crytic-compile:\nOUTPUT:\n%s\nERROR: %s\n", string(cmdCombined), err.Error())
	}

	// Find all exported artifacts.
	buildDirectory := c.BuildDirectory
	if buildDirectory == "" {
		buildDirectory = filepath.Join(c.Target, "crytic-export")
	}
	matches, err := filepath.Glob(filepath.Join(buildDirectory, "*.json"))
	if err != nil {
		return nil, "", err
	}

	// Create a compilation unit out of this.
	compilation := types.NewCompilation()

	// Loop for each artifact to parse our compilations.
	for i := 0; i < len(matches); i++ {
		// Read the compiled JSON file data
		b, err := os.ReadFile(matches[i])
		if err != nil {
			return nil, "", err
		}

		// Parse the JSON
		var export struct {
			Contracts map[string]struct {
				Abi           any    `json:"abi"`
				Bin           string `json:"bin"`
				BinRuntime    string `json:"bin-runtime"`
				SrcMap        string `json:"srcmap"`
				SrcMapRuntime string `json:"srcmap-runtime"`
				StorageLayout any    `json:"storage-layout"`
			} `json:"contracts"`
		}
		err = json.Unmarshal(b, &export)
		if err != nil {
			return nil, "", fmt.Errorf("could not parse crytic-compile artifact '%s': %v", matches[i], err)
		}

		for name, contract := range export.Contracts {
			sourcePath, contractName := splitCombinedName(name)

			// Convert the abi structure to our parsed abi type
			contractAbi, err := types.ParseABIFromInterface(contract.Abi)
			if err != nil {
				continue
			}

			initBytecode, err := utils.HexStringToBytes(contract.Bin)
			if err != nil {
				return nil, "", fmt.Errorf("unable to parse init bytecode for contract '%s'\n", contractName)
			}
			runtimeBytecode, err := utils.HexStringToBytes(contract.BinRuntime)
			if err != nil {
				return nil, "", fmt.Errorf("unable to parse runtime bytecode for contract '%s'\n", contractName)
			}

			var storageLayout *types.StorageLayout
			if contract.StorageLayout != nil {
				storageLayout, err = types.ParseStorageLayoutFromInterface(contract.StorageLayout)
				if err != nil {
					return nil, "", fmt.Errorf("unable to parse storage layout for contract '%s': %v", contractName, err)
				}
			} else if c.EmitStorageLayout {
				return nil, "", fmt.Errorf("crytic-compile artifact for contract '%s' does not contain a storage layout", contractName)
			}

			// If we don't have an artifact for this source file, create it.
			if _, ok := compilation.SourcePathToArtifact[sourcePath]; !ok {
				compilation.SourcePathToArtifact[sourcePath] = types.SourceArtifact{
					Contracts: make(map[string]types.CompiledContract),
				}
			}

			// Add our contract to the source artifact
			compilation.SourcePathToArtifact[sourcePath].Contracts[contractName] = types.CompiledContract{
				Abi:             *contractAbi,
				InitBytecode:    initBytecode,
				RuntimeBytecode: runtimeBytecode,
				SrcMapsInit:     contract.SrcMap,
				SrcMapsRuntime:  contract.SrcMapRuntime,
				StorageLayout:   storageLayout,
			}
		}
	}

	return []types.Compilation{*compilation}, string(cmdCombined), nil
}

// splitCombinedName splits a "filename:contractname" key into its source path and contract name
// components. Colons may appear in the path portion, so the split is taken at the last separator.
func splitCombinedName(name string) (string, string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[:i], name[i+1:]
		}
	}
	return "", name
}
