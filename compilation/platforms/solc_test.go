package platforms

import (
	"testing"

	"github.com/Masterminds/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSupportsStorageLayoutOutput tests the solc version gate for the storage-layout output.
func TestSupportsStorageLayoutOutput(t *testing.T) {
	for versionStr, expected := range map[string]bool{
		"0.4.26": false,
		"0.5.12": false,
		"0.5.13": true,
		"0.5.17": true,
		"0.6.0":  true,
		"0.8.24": true,
		"1.0.0":  true,
	} {
		v, err := semver.NewVersion(versionStr)
		require.NoError(t, err)
		assert.Equal(t, expected, supportsStorageLayoutOutput(v), "version %s", versionStr)
	}
}

// TestGetSolcOutputOptions tests combined-json selector construction with and without storage layout.
func TestGetSolcOutputOptions(t *testing.T) {
	config := NewSolcCompilationConfig("contract.sol")
	v := semver.MustParse("0.8.24")

	options, err := config.getSolcOutputOptions(v)
	require.NoError(t, err)
	assert.NotContains(t, options, "storage-layout")

	config.EnableStorageLayout()
	options, err = config.getSolcOutputOptions(v)
	require.NoError(t, err)
	assert.Contains(t, options, "storage-layout")

	// Requesting the layout from a pre-0.5.13 compiler is an error rather than silently dropping it.
	_, err = config.getSolcOutputOptions(semver.MustParse("0.5.12"))
	assert.Error(t, err)
}
