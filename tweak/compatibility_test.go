package tweak

import (
	"testing"

	compilationTypes "github.com/MedGa-eth/foundry/compilation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// layout builds a storage layout from (label, slot, offset, type) tuples over a fixed type table.
func layout(vars ...compilationTypes.StorageVariable) *compilationTypes.StorageLayout {
	return &compilationTypes.StorageLayout{
		Storage: vars,
		Types: map[string]compilationTypes.StorageTypeDescriptor{
			"t_uint256": {Encoding: "inplace", Label: "uint256", NumberOfBytes: "32"},
			"t_uint128": {Encoding: "inplace", Label: "uint128", NumberOfBytes: "16"},
			"t_bytes":   {Encoding: "bytes", Label: "bytes", NumberOfBytes: "32"},
		},
	}
}

// TestStorageCompatibilityIdentical tests that an unchanged layout passes.
func TestStorageCompatibilityIdentical(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	assert.NoError(t, CheckStorageCompatibility(recorded, current))
}

// TestStorageCompatibilityMoved tests that a relocated variable fails, naming it with both positions.
func TestStorageCompatibilityMoved(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(compilationTypes.StorageVariable{Label: "a", Slot: "1", Offset: 0, Type: "t_uint256"})

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	require.Len(t, incompatibleErr.Violations, 1)
	assert.Equal(t, "a", incompatibleErr.Violations[0].Label)
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "slot 0 offset 0")
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "slot 1 offset 0")
}

// TestStorageCompatibilityAppend tests that appending a new variable at an unused slot passes.
func TestStorageCompatibilityAppend(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(
		compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"},
		compilationTypes.StorageVariable{Label: "b", Slot: "1", Offset: 0, Type: "t_uint256"},
	)
	assert.NoError(t, CheckStorageCompatibility(recorded, current))
}

// TestStorageCompatibilityRemoved tests that a deleted variable fails as missing.
func TestStorageCompatibilityRemoved(t *testing.T) {
	recorded := layout(
		compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"},
		compilationTypes.StorageVariable{Label: "b", Slot: "1", Offset: 0, Type: "t_uint256"},
	)
	current := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	require.Len(t, incompatibleErr.Violations, 1)
	assert.Equal(t, "b", incompatibleErr.Violations[0].Label)
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "missing")
}

// TestStorageCompatibilityResized tests that a changed byte size at an unchanged position fails.
func TestStorageCompatibilityResized(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint128"})

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	require.Len(t, incompatibleErr.Violations, 1)
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "byte size")
}

// TestStorageCompatibilityReencoded tests that a changed encoding at an unchanged position fails.
func TestStorageCompatibilityReencoded(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_bytes"})

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	require.Len(t, incompatibleErr.Violations, 1)
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "encoding")
}

// TestStorageCompatibilityConflict tests that a new variable occupying a recorded position fails as a
// conflict.
func TestStorageCompatibilityConflict(t *testing.T) {
	recorded := layout(compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"})
	current := layout(compilationTypes.StorageVariable{Label: "intruder", Slot: "0", Offset: 0, Type: "t_uint256"})

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	require.Len(t, incompatibleErr.Violations, 1)
	assert.Equal(t, "a", incompatibleErr.Violations[0].Label)
	assert.Contains(t, incompatibleErr.Violations[0].Reason, "intruder")
}

// TestStorageCompatibilityExhaustive tests that all violations are reported at once rather than stopping at
// the first.
func TestStorageCompatibilityExhaustive(t *testing.T) {
	recorded := layout(
		compilationTypes.StorageVariable{Label: "a", Slot: "0", Offset: 0, Type: "t_uint256"},
		compilationTypes.StorageVariable{Label: "b", Slot: "1", Offset: 0, Type: "t_uint256"},
		compilationTypes.StorageVariable{Label: "c", Slot: "2", Offset: 0, Type: "t_uint256"},
	)
	current := layout(
		// "a" moved, "b" resized, "c" removed.
		compilationTypes.StorageVariable{Label: "a", Slot: "3", Offset: 0, Type: "t_uint256"},
		compilationTypes.StorageVariable{Label: "b", Slot: "1", Offset: 0, Type: "t_uint128"},
	)

	err := CheckStorageCompatibility(recorded, current)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	assert.Len(t, incompatibleErr.Violations, 3)

	labels := make([]string, 0, len(incompatibleErr.Violations))
	for _, violation := range incompatibleErr.Violations {
		labels = append(labels, violation.Label)
	}
	assert.Contains(t, labels, "a")
	assert.Contains(t, labels, "b")
	assert.Contains(t, labels, "c")
}

// TestStorageCompatibilityPackedOffsets tests that variables packed at distinct offsets of one slot are
// tracked independently.
func TestStorageCompatibilityPackedOffsets(t *testing.T) {
	recorded := layout(
		compilationTypes.StorageVariable{Label: "lo", Slot: "0", Offset: 0, Type: "t_uint128"},
		compilationTypes.StorageVariable{Label: "hi", Slot: "0", Offset: 16, Type: "t_uint128"},
	)
	current := layout(
		compilationTypes.StorageVariable{Label: "lo", Slot: "0", Offset: 0, Type: "t_uint128"},
		compilationTypes.StorageVariable{Label: "hi", Slot: "0", Offset: 16, Type: "t_uint128"},
	)
	assert.NoError(t, CheckStorageCompatibility(recorded, current))

	// Swapping the packing order moves both variables.
	swapped := layout(
		compilationTypes.StorageVariable{Label: "hi", Slot: "0", Offset: 0, Type: "t_uint128"},
		compilationTypes.StorageVariable{Label: "lo", Slot: "0", Offset: 16, Type: "t_uint128"},
	)
	err := CheckStorageCompatibility(recorded, swapped)
	require.Error(t, err)
	var incompatibleErr *IncompatibleStorageError
	require.ErrorAs(t, err, &incompatibleErr)
	assert.Len(t, incompatibleErr.Violations, 2)
}
