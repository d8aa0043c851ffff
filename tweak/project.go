package tweak

import (
	"path/filepath"
	"sync"

	"github.com/MedGa-eth/foundry/compilation"
	compilationTypes "github.com/MedGa-eth/foundry/compilation/types"
	"github.com/MedGa-eth/foundry/logging"
	"github.com/MedGa-eth/foundry/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// compilerFunc invokes a compilation and returns its results and raw output. It exists so tests can stand in
// for the external compiler toolchain.
type compilerFunc func(config *compilation.CompilationConfig) ([]compilationTypes.Compilation, string, error)

/*
ClonedProject is a local, recompilable mirror of a deployed on-chain contract: a source tree rooted at an
absolute directory, a project configuration, and the clone metadata describing the original deployment. A
project compiles at most once per instance; the compile output and the resolved target artifact are both
memoized, and the metadata is immutable after load.
*/
type ClonedProject struct {
	// Root is the absolute path of the project directory. It is the project's identity.
	Root string

	// Config describes how the project is compiled and which chain it targets.
	Config *ProjectConfig

	// Metadata is the persisted descriptor of the original on-chain contract.
	Metadata *CloneMetadata

	// compiler performs the actual compilation. Defaults to the configured platform's Compile.
	compiler compilerFunc

	// cacheLock serializes the compile-and-memoize sequence. It is held across the whole check, compute and
	// store so concurrent callers never trigger a duplicate compile, while a failed compile leaves the cache
	// unpopulated and retryable.
	cacheLock    sync.Mutex
	compilations []compilationTypes.Compilation
	compiled     bool
	artifact     *compilationTypes.CompiledContract

	logger *logging.Logger
}

// LoadClonedProject loads the cloned project at the given root directory. The root must be an absolute path,
// and must contain a clone descriptor file; a project configuration file is optional.
func LoadClonedProject(root string) (*ClonedProject, error) {
	if !filepath.IsAbs(root) {
		return nil, errors.Errorf("project root '%s' must be an absolute path", root)
	}
	if !utils.DirectoryExists(root) {
		return nil, errors.Errorf("project root '%s' is not a directory", root)
	}

	config, err := LoadProjectConfig(root)
	if err != nil {
		return nil, err
	}

	metadata, err := LoadCloneMetadata(root)
	if err != nil {
		return nil, err
	}

	return &ClonedProject{
		Root:     root,
		Config:   config,
		Metadata: metadata,
		compiler: func(config *compilation.CompilationConfig) ([]compilationTypes.Compilation, string, error) {
			return config.Compile()
		},
		logger: logging.GlobalLogger.NewSubLogger("module", "tweak"),
	}, nil
}

/*
Compile compiles the project with storage-layout emission enabled and returns the resulting compilations. The
compilation runs at most once per instance; subsequent calls return the memoized result. A failed compilation
returns a CompileError carrying the compiler diagnostics and leaves the cache unpopulated, so a later call
retries.
*/
func (p *ClonedProject) Compile() ([]compilationTypes.Compilation, error) {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()
	return p.compileLocked()
}

// compileLocked performs the memoized compile. Callers must hold cacheLock.
func (p *ClonedProject) compileLocked() ([]compilationTypes.Compilation, error) {
	if p.compiled {
		return p.compilations, nil
	}

	if err := p.Config.Compilation.WithStorageLayout(); err != nil {
		return nil, err
	}

	p.logger.Info("compiling cloned project at " + p.Root)
	compilations, rawOutput, err := p.compiler(p.Config.Compilation)
	if err != nil {
		return nil, &CompileError{Diagnostics: rawOutput, Err: err}
	}

	p.compilations = compilations
	p.compiled = true
	return p.compilations, nil
}

/*
TargetArtifact resolves the compiled artifact for the contract named by the clone metadata. The compile output
is searched in lexicographic source-path order (and contract-name order within a source file) so resolution is
deterministic when multiple files declare a contract with the target name; the first match is memoized. Returns
an ArtifactNotFoundError naming the contract if no artifact matches.
*/
func (p *ClonedProject) TargetArtifact() (*compilationTypes.CompiledContract, error) {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()

	if p.artifact != nil {
		return p.artifact, nil
	}

	compilations, err := p.compileLocked()
	if err != nil {
		return nil, err
	}

	for i := range compilations {
		sourcePaths := make([]string, 0, len(compilations[i].SourcePathToArtifact))
		for sourcePath := range compilations[i].SourcePathToArtifact {
			sourcePaths = append(sourcePaths, sourcePath)
		}
		slices.Sort(sourcePaths)

		for _, sourcePath := range sourcePaths {
			sourceArtifact := compilations[i].SourcePathToArtifact[sourcePath]
			contractNames := make([]string, 0, len(sourceArtifact.Contracts))
			for contractName := range sourceArtifact.Contracts {
				contractNames = append(contractNames, contractName)
			}
			slices.Sort(contractNames)

			for _, contractName := range contractNames {
				if contractName == p.Metadata.TargetContract {
					contract := sourceArtifact.Contracts[contractName]
					p.artifact = &contract
					return p.artifact, nil
				}
			}
		}
	}

	return nil, &ArtifactNotFoundError{ContractName: p.Metadata.TargetContract}
}

// targetChainID returns the chain id the project is configured for, with a zero config value inheriting the
// chain id recorded at clone time.
func (p *ClonedProject) targetChainID() uint64 {
	if p.Config.ChainID == 0 {
		return p.Metadata.ChainID
	}
	return p.Config.ChainID
}
