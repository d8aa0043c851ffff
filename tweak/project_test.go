package tweak

import (
	"testing"

	"github.com/MedGa-eth/foundry/compilation"
	compilationTypes "github.com/MedGa-eth/foundry/compilation/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCompiler is a stand-in for the external compiler toolchain which returns fixed results and counts
// its invocations.
type countingCompiler struct {
	calls        int
	compilations []compilationTypes.Compilation
	rawOutput    string
	err          error
}

func (c *countingCompiler) compile(config *compilation.CompilationConfig) ([]compilationTypes.Compilation, string, error) {
	c.calls++
	if c.err != nil {
		return nil, c.rawOutput, c.err
	}
	return c.compilations, c.rawOutput, nil
}

// testCompilation builds a compile output mapping each source path to a single contract with the given
// runtime bytecode and the test metadata's storage layout.
func testCompilation(contracts map[string]struct {
	name    string
	runtime []byte
}) compilationTypes.Compilation {
	result := compilationTypes.NewCompilation()
	recordedLayout := testMetadata().StorageLayout
	for sourcePath, contract := range contracts {
		layout := recordedLayout
		result.SourcePathToArtifact[sourcePath] = compilationTypes.SourceArtifact{
			Contracts: map[string]compilationTypes.CompiledContract{
				contract.name: {
					InitBytecode:    append([]byte{0xf0}, contract.runtime...),
					RuntimeBytecode: contract.runtime,
					StorageLayout:   &layout,
				},
			},
		}
	}
	return *result
}

// newTestProject creates a cloned project in a temp dir with the test metadata and the given stub compiler.
func newTestProject(t *testing.T, compiler *countingCompiler) *ClonedProject {
	root := t.TempDir()
	require.NoError(t, testMetadata().Save(root))

	project, err := LoadClonedProject(root)
	require.NoError(t, err)
	project.compiler = compiler.compile
	return project
}

// TestLoadClonedProjectRelativeRoot tests that a relative root path is rejected.
func TestLoadClonedProjectRelativeRoot(t *testing.T) {
	_, err := LoadClonedProject("some/relative/path")
	assert.Error(t, err)
	assert.ErrorContains(t, err, "absolute")
}

// TestLoadClonedProjectNoMetadata tests that a root without a descriptor fails with ErrMetadataNotFound.
func TestLoadClonedProjectNoMetadata(t *testing.T) {
	_, err := LoadClonedProject(t.TempDir())
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataNotFound)
}

// TestCompileOnce tests that repeated Compile calls invoke the compiler exactly once and return identical
// output.
func TestCompileOnce(t *testing.T) {
	compiler := &countingCompiler{
		compilations: []compilationTypes.Compilation{testCompilation(map[string]struct {
			name    string
			runtime []byte
		}{
			"src/Token.sol": {name: "Token", runtime: []byte{0x60, 0x80}},
		})},
	}
	project := newTestProject(t, compiler)

	first, err := project.Compile()
	require.NoError(t, err)
	second, err := project.Compile()
	require.NoError(t, err)

	assert.Equal(t, 1, compiler.calls)
	assert.Equal(t, first, second)
}

// TestCompileRetryAfterFailure tests that a failed compile is not cached, so a later call retries.
func TestCompileRetryAfterFailure(t *testing.T) {
	compiler := &countingCompiler{
		rawOutput: "ParserError: expected ';'",
		err:       errors.New("exit status 1"),
	}
	project := newTestProject(t, compiler)

	_, err := project.Compile()
	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Contains(t, compileErr.Diagnostics, "ParserError")

	// Fix the compiler and retry.
	compiler.err = nil
	compiler.compilations = []compilationTypes.Compilation{testCompilation(map[string]struct {
		name    string
		runtime []byte
	}{
		"src/Token.sol": {name: "Token", runtime: []byte{0x60, 0x80}},
	})}

	_, err = project.Compile()
	assert.NoError(t, err)
	assert.Equal(t, 2, compiler.calls)
}

// TestTargetArtifactNotFound tests that a compile output lacking the target contract fails with an error
// naming it.
func TestTargetArtifactNotFound(t *testing.T) {
	compiler := &countingCompiler{
		compilations: []compilationTypes.Compilation{testCompilation(map[string]struct {
			name    string
			runtime []byte
		}{
			"src/Other.sol": {name: "Other", runtime: []byte{0x01}},
		})},
	}
	project := newTestProject(t, compiler)

	_, err := project.TargetArtifact()
	require.Error(t, err)
	var notFoundErr *ArtifactNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "Token", notFoundErr.ContractName)
	assert.ErrorContains(t, err, "Token")
}

// TestTargetArtifactCached tests that repeated resolutions return the identical cached artifact without
// recompiling.
func TestTargetArtifactCached(t *testing.T) {
	compiler := &countingCompiler{
		compilations: []compilationTypes.Compilation{testCompilation(map[string]struct {
			name    string
			runtime []byte
		}{
			"src/Token.sol": {name: "Token", runtime: []byte{0x60, 0x80}},
		})},
	}
	project := newTestProject(t, compiler)

	first, err := project.TargetArtifact()
	require.NoError(t, err)
	second, err := project.TargetArtifact()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, compiler.calls)
}

// TestTargetArtifactDeterministicOrder tests that when multiple source files declare a contract with the
// target name, the lexicographically first source path wins.
func TestTargetArtifactDeterministicOrder(t *testing.T) {
	compiler := &countingCompiler{
		compilations: []compilationTypes.Compilation{testCompilation(map[string]struct {
			name    string
			runtime []byte
		}{
			"src/z/Token.sol": {name: "Token", runtime: []byte{0xff}},
			"src/a/Token.sol": {name: "Token", runtime: []byte{0xaa}},
		})},
	}
	project := newTestProject(t, compiler)

	artifact, err := project.TargetArtifact()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, artifact.RuntimeBytecode)
}
