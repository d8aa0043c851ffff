package compilation

import (
	"testing"

	"github.com/MedGa-eth/foundry/compilation/platforms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSupportedPlatforms tests that the registered platforms are reported as supported.
func TestSupportedPlatforms(t *testing.T) {
	supported := GetSupportedCompilationPlatforms()
	assert.Contains(t, supported, "solc")
	assert.Contains(t, supported, "crytic-compile")
	assert.True(t, IsSupportedCompilationPlatform("solc"))
	assert.False(t, IsSupportedCompilationPlatform("no-such-platform"))
}

// TestNewCompilationConfigUnsupportedPlatform tests that an unknown platform identifier is rejected.
func TestNewCompilationConfigUnsupportedPlatform(t *testing.T) {
	_, err := NewCompilationConfig("no-such-platform")
	assert.Error(t, err)
}

// TestCompilationConfigTargetRoundTrip tests target updates through the generic config wrapper.
func TestCompilationConfigTargetRoundTrip(t *testing.T) {
	config, err := NewCompilationConfig("solc")
	require.NoError(t, err)

	require.NoError(t, config.SetTarget("/tmp/project/contract.sol"))
	target, err := config.GetTarget()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/project/contract.sol", target)
}

// TestCompilationConfigWithStorageLayout tests that enabling storage layout emission survives the
// serialize/deserialize cycle of the generic config wrapper.
func TestCompilationConfigWithStorageLayout(t *testing.T) {
	config, err := NewCompilationConfig("solc")
	require.NoError(t, err)

	require.NoError(t, config.WithStorageLayout())

	platformConfig, err := config.GetPlatformConfig()
	require.NoError(t, err)
	solcConfig, ok := platformConfig.(*platforms.SolcCompilationConfig)
	require.True(t, ok)
	assert.True(t, solcConfig.EmitStorageLayout)
}
